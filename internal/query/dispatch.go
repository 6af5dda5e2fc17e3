package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"idvault/internal/config"
	"idvault/internal/logging"
)

// Execute runs one raw command document against the configured backends and
// always returns a response envelope; nothing escapes, including panics.
func Execute(ctx context.Context, cfg *config.Config, log *logging.Logger, raw string) string {
	start := time.Now()
	requestID := uuid.NewString()
	service, verb, response := dispatch(ctx, cfg, log, raw, requestID)
	commandDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	commandCounter.WithLabelValues(service, verb, envelopeStatus(response)).Inc()
	return response
}

func dispatch(ctx context.Context, cfg *config.Config, log *logging.Logger, raw, requestID string) (service, verb, response string) {
	service, verb = "none", "none"
	response = errRequest()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("request %s: query panic: %v", requestID, r)
			response = errUnsupportedService(fmt.Sprint(r))
		}
	}()

	if cfg == nil || cfg.ConnectionType != config.ConnectionTypeV1 {
		connectionType := ""
		if cfg != nil {
			connectionType = cfg.ConnectionType
		}
		log.Infof("request %s: connection type %q is not supported", requestID, connectionType)
		return service, verb, errUnsupportedConnType()
	}

	cmd, err := ParseCommand([]byte(raw))
	if err != nil {
		log.Errorf("request %s: %v", requestID, err)
		return service, verb, errUnsupportedRequest()
	}

	if log.Debug() {
		if serialized, err := json.Marshal(cmd); err == nil {
			log.Debugf("request %s: command %s", requestID, serialized)
		}
	}

	name, ok := cmd.GetString("service")
	if !ok || name == "" {
		return service, verb, errRequest()
	}
	service = name
	if q, ok := cmd.GetString("query"); ok && q != "" {
		verb = q
	}

	switch name {
	case "business":
		return service, verb, executeBusiness(ctx, cfg, cmd, log)
	case "people":
		return service, verb, executePeople(ctx, cfg, cmd, log)
	case "relation":
		return service, verb, executeRelation(ctx, cfg, cmd, log)
	}
	return service, verb, errRequest()
}

// envelopeStatus extracts the status field for the metrics label.
func envelopeStatus(response string) string {
	var doc struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(response), &doc); err != nil || doc.Status == "" {
		return "unknown"
	}
	return doc.Status
}
