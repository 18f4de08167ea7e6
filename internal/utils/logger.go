package utils

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/texas38923/node-mongo-api/internal/models"
)

// Logger records write operations in the audit collection. A Logger without
// a collection drops every record.
type Logger struct {
	Collection *mongo.Collection
}

func (l *Logger) Log(ctx context.Context, entity, action, documentID string, data any) error {
	if l == nil || l.Collection == nil {
		return nil
	}

	log := models.AuditLog{
		Timestamp:  time.Now().UTC(),
		Entity:     entity,
		Action:     action,
		DocumentID: documentID,
		Data:       data,
		Exported:   false,
	}
	_, err := l.Collection.InsertOne(ctx, log)
	return errors.Wrapf(err, "writing %s audit record for %s", action, entity)
}
