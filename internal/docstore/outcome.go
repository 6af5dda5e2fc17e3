package docstore

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Outcome classifies one document-store write or read so handlers branch on
// type instead of inspecting SDK error text.
type Outcome int

const (
	// OK is an unconditional success.
	OK Outcome = iota
	// ConditionalFailed means the write's precondition did not hold: the id
	// already existed for a create, or was absent for an update or delete.
	ConditionalFailed
	// NotFound means a read matched no item.
	NotFound
	// Failed is any other backend failure.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case ConditionalFailed:
		return "conditional-failed"
	case NotFound:
		return "not-found"
	default:
		return "failed"
	}
}

// classify maps an SDK error to an Outcome. Only the conditional-check
// failure is distinguished; everything else is an opaque failure.
func classify(err error) Outcome {
	if err == nil {
		return OK
	}
	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return ConditionalFailed
	}
	return Failed
}
