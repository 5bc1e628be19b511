package integration

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/xside/xside-server/internal/models"
)

// LogSubject is the wildcard subject accepted telemetry logs are
// published on; the middle token is the module id.
const LogSubject = "telemetry.module.*.log"

// Events publishes accepted telemetry logs for downstream consumers
type Events struct {
	nc *nats.Conn
}

// NewEvents creates a publisher on an established NATS connection
func NewEvents(nc *nats.Conn) *Events {
	return &Events{nc: nc}
}

// PublishLog publishes one stored log
func (e *Events) PublishLog(log *models.Log) error {
	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	subject := fmt.Sprintf("telemetry.module.%s.log", log.ModuleID)
	if err := e.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish log event: %w", err)
	}

	return nil
}
