package db

import (
	"context"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Connect opens a client and verifies it with a ping against the primary.
// No caller should bind a listener until this returns without error.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging mongodb")
	}

	grip.Info(message.Fields{
		"message": "connected to mongodb",
		"hosts":   options.Client().ApplyURI(uri).Hosts,
	})

	return client, nil
}

func GetCollection(client *mongo.Client, dbName, collName string) *mongo.Collection {
	return client.Database(dbName).Collection(collName)
}

// Disconnect closes the client, logging rather than returning failures.
func Disconnect(ctx context.Context, client *mongo.Client) {
	if client == nil {
		return
	}
	grip.Warning(message.WrapError(client.Disconnect(ctx), message.Fields{
		"message": "disconnecting from mongodb",
	}))
}
