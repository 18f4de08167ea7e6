package daemon

import (
	"context"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/texas38923/node-mongo-api/internal/models"
)

const (
	defaultInterval  = 30 * time.Second
	defaultBatchSize = 500
)

// Exporter ships audit records somewhere outside the database. It returns how
// many leading records were shipped before any error.
type Exporter interface {
	Export(ctx context.Context, logs []models.AuditLog) (int, error)
}

type LogExporter struct {
	Coll      *mongo.Collection
	Exporter  Exporter
	Interval  time.Duration
	BatchSize int64
}

// Start runs the export loop until ctx is cancelled. The returned channel is
// closed once the loop has exited.
func (l *LogExporter) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	interval := l.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := l.ExportOnce(ctx)
				grip.Error(message.WrapError(err, message.Fields{
					"message":  "exporting audit logs",
					"exported": n,
				}))
				grip.InfoWhen(n > 0, message.Fields{
					"message":  "exported audit logs",
					"exported": n,
				})
			}
		}
	}()

	return done
}

// ExportOnce ships one batch of unexported records, oldest first, and marks
// the shipped ones as exported.
func (l *LogExporter) ExportOnce(ctx context.Context) (int, error) {
	batch := l.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(batch)
	cursor, err := l.Coll.Find(ctx, bson.M{"exported": false}, opts)
	if err != nil {
		return 0, errors.Wrap(err, "finding unexported audit logs")
	}

	var logs []models.AuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return 0, errors.Wrap(err, "decoding audit logs")
	}
	if len(logs) == 0 {
		return 0, nil
	}

	n, exportErr := l.Exporter.Export(ctx, logs)
	if n > len(logs) {
		n = len(logs)
	}
	if n > 0 {
		ids := make([]primitive.ObjectID, 0, n)
		for _, log := range logs[:n] {
			ids = append(ids, log.ID)
		}
		if _, err := l.Coll.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": ids}},
			bson.M{"$set": bson.M{"exported": true}},
		); err != nil {
			return n, errors.Wrap(err, "marking audit logs exported")
		}
	}

	return n, errors.Wrap(exportErr, "exporting audit logs")
}
