// Package queue publishes audit events to RabbitMQ.
package queue

import (
	"time"

	"github.com/texas38923/node-mongo-api/internal/models"
)

// AuditEvent is the message body published for every exported audit record.
type AuditEvent struct {
	AuditID    string      `json:"audit_id"`
	Entity     string      `json:"entity"`
	Action     string      `json:"action"`
	DocumentID string      `json:"document_id,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	OccurredAt string      `json:"occurred_at"`
}

func NewAuditEvent(log models.AuditLog) AuditEvent {
	return AuditEvent{
		AuditID:    log.ID.Hex(),
		Entity:     log.Entity,
		Action:     log.Action,
		DocumentID: log.DocumentID,
		Data:       models.Normalize(log.Data),
		OccurredAt: log.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
