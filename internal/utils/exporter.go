package utils

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"

	"github.com/texas38923/node-mongo-api/internal/models"
)

// ConsoleExporter writes audit records to the process log. It is used when no
// message broker is configured.
type ConsoleExporter struct{}

func (ConsoleExporter) Export(_ context.Context, logs []models.AuditLog) (int, error) {
	for _, log := range logs {
		grip.Info(message.Fields{
			"message":     "audit record",
			"audit_id":    log.ID.Hex(),
			"timestamp":   log.Timestamp,
			"entity":      log.Entity,
			"action":      log.Action,
			"document_id": log.DocumentID,
			"data":        models.Normalize(log.Data),
		})
	}
	return len(logs), nil
}
