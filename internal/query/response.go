package query

import "encoding/json"

// Error kinds carried in the "error" field of an error envelope.
const (
	errKindUnsupportedRequest  = "unsupported-request"
	errKindUnsupportedConnType = "unsupported-connection-type"
	errKindRequest             = "request-error"
	errKindUnsupportedService  = "unsupported-service"
	errKindNotImplemented      = "not-implemented"
	errKindQuery               = "query-error"
	errKindInternalServer      = "internal-server-error"
	errKindItemNotFound        = "item-not-found"
	errKindItemAlreadyExists   = "item-already-exists"
	errKindDisabledForSecurity = "disabled-for-security"
)

// envelope serializes a response document. Marshal failures degrade to a
// fixed error envelope; the caller always gets well-formed text.
func envelope(doc map[string]any) string {
	out, err := json.Marshal(doc)
	if err != nil {
		return `{"status":"error","error":"` + errKindInternalServer + `"}`
	}
	return string(out)
}

func responseOK(payload map[string]any) string {
	doc := map[string]any{"status": "ok"}
	for key, value := range payload {
		doc[key] = value
	}
	return envelope(doc)
}

func responseCreated(payload map[string]any) string {
	doc := map[string]any{"status": "created"}
	for key, value := range payload {
		doc[key] = value
	}
	return envelope(doc)
}

func responseError(kind string) string {
	return envelope(map[string]any{"status": "error", "error": kind})
}

func responseErrorMessage(kind, message string) string {
	doc := map[string]any{"status": "error", "error": kind}
	if message != "" {
		doc["errorMessage"] = message
	}
	return envelope(doc)
}

func errUnsupportedRequest() string  { return responseError(errKindUnsupportedRequest) }
func errUnsupportedConnType() string { return responseError(errKindUnsupportedConnType) }
func errRequest() string             { return responseError(errKindRequest) }
func errNotImplemented() string      { return responseError(errKindNotImplemented) }
func errQuery() string               { return responseError(errKindQuery) }
func errInternalServer() string      { return responseError(errKindInternalServer) }
func errItemNotFound() string        { return responseError(errKindItemNotFound) }
func errItemAlreadyExists() string   { return responseError(errKindItemAlreadyExists) }
func errDisabledForSecurity() string { return responseError(errKindDisabledForSecurity) }
func errUnsupportedService(msg string) string {
	return responseErrorMessage(errKindUnsupportedService, msg)
}
