package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/texas38923/node-mongo-api/internal/constants"
	"github.com/texas38923/node-mongo-api/internal/models"
	"github.com/texas38923/node-mongo-api/internal/utils"
)

func TestLogger_Log(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("writes an unexported record", func(mt *mtest.T) {
		logger := utils.Logger{Collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := logger.Log(context.Background(), models.BookEntity, constants.Create, "abc", bson.D{{Key: "title", Value: "A"}})
		assert.NoError(mt, err)
	})

	mt.Run("insert failure is returned", func(mt *mtest.T) {
		logger := utils.Logger{Collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))

		err := logger.Log(context.Background(), models.BookEntity, constants.Delete, "abc", nil)
		assert.Error(mt, err)
	})
}

func TestLogger_NoCollection(t *testing.T) {
	var logger utils.Logger
	assert.NoError(t, logger.Log(context.Background(), models.BookEntity, constants.Update, "abc", nil))

	var nilLogger *utils.Logger
	assert.NoError(t, nilLogger.Log(context.Background(), models.BookEntity, constants.Update, "abc", nil))
}
