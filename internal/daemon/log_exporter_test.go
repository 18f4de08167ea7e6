package daemon_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/texas38923/node-mongo-api/internal/constants"
	"github.com/texas38923/node-mongo-api/internal/daemon"
	"github.com/texas38923/node-mongo-api/internal/models"
)

type recordingExporter struct {
	got   []models.AuditLog
	limit int
}

func (e *recordingExporter) Export(_ context.Context, logs []models.AuditLog) (int, error) {
	if e.limit > 0 && e.limit < len(logs) {
		e.got = append(e.got, logs[:e.limit]...)
		return e.limit, errors.New("broker went away")
	}
	e.got = append(e.got, logs...)
	return len(logs), nil
}

func auditDoc(action string) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "timestamp", Value: time.Now().UTC()},
		{Key: "entity", Value: models.BookEntity},
		{Key: "action", Value: action},
		{Key: "document_id", Value: primitive.NewObjectID().Hex()},
		{Key: "data", Value: bson.D{{Key: "title", Value: "A"}}},
		{Key: "exported", Value: false},
	}
}

func TestLogExporter_ExportOnce(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("exports and marks every record", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		exporter := &recordingExporter{}
		l := daemon.LogExporter{Coll: mt.Coll, Exporter: exporter}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, auditDoc(constants.Create), auditDoc(constants.Delete)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}),
		)

		n, err := l.ExportOnce(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, 2, n)
		require.Len(mt, exporter.got, 2)
		assert.Equal(mt, constants.Create, exporter.got[0].Action)
		assert.Equal(mt, constants.Delete, exporter.got[1].Action)
	})

	mt.Run("nothing to export", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		exporter := &recordingExporter{}
		l := daemon.LogExporter{Coll: mt.Coll, Exporter: exporter}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		n, err := l.ExportOnce(context.Background())
		require.NoError(mt, err)
		assert.Zero(mt, n)
		assert.Empty(mt, exporter.got)
	})

	mt.Run("partial export marks only shipped records", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		exporter := &recordingExporter{limit: 1}
		l := daemon.LogExporter{Coll: mt.Coll, Exporter: exporter}

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, auditDoc(constants.Create), auditDoc(constants.Update)),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		n, err := l.ExportOnce(context.Background())
		assert.Error(mt, err)
		assert.Equal(mt, 1, n)
		assert.Len(mt, exporter.got, 1)
	})

	mt.Run("find failure", func(mt *mtest.T) {
		l := daemon.LogExporter{Coll: mt.Coll, Exporter: &recordingExporter{}}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))

		n, err := l.ExportOnce(context.Background())
		assert.Error(mt, err)
		assert.Zero(mt, n)
	})
}

func TestLogExporter_StartStops(t *testing.T) {
	l := daemon.LogExporter{Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	done := l.Start(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exporter did not stop after cancellation")
	}
}
