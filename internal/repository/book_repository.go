// Package repository holds the MongoDB access for book documents. Handlers
// depend on it through a small interface so that request validation can be
// tested without a database.
package repository

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/texas38923/node-mongo-api/internal/models"
)

// BookRepo runs every book operation against a single collection.
type BookRepo struct {
	coll *mongo.Collection
}

func NewBookRepo(coll *mongo.Collection) *BookRepo {
	return &BookRepo{coll: coll}
}

// List returns every document ordered by author ascending. The result set is
// not paginated and is held entirely in memory.
func (r *BookRepo) List(ctx context.Context) ([]models.Book, error) {
	if r.coll == nil {
		return nil, models.ErrNotConnected
	}

	opts := options.Find().SetSort(bson.D{{Key: models.FieldAuthor, Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "finding books")
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding books")
	}

	books := make([]models.Book, 0, len(docs))
	for _, doc := range docs {
		books = append(books, models.NewBook(doc))
	}
	return books, nil
}

// Get returns the document with the given id, or nil when none matches.
func (r *BookRepo) Get(ctx context.Context, id primitive.ObjectID) (models.Book, error) {
	if r.coll == nil {
		return nil, models.ErrNotConnected
	}

	var doc bson.M
	err := r.coll.FindOne(ctx, bson.M{models.FieldID: id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding book %s", id.Hex())
	}
	return models.NewBook(doc), nil
}

// Create inserts doc as-is. The driver assigns an ObjectID when doc has no _id.
func (r *BookRepo) Create(ctx context.Context, doc bson.D) (models.InsertAck, error) {
	if r.coll == nil {
		return models.InsertAck{}, models.ErrNotConnected
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return models.InsertAck{}, errors.Wrap(err, "inserting book")
	}
	return models.InsertAck{
		Acknowledged: true,
		InsertedID:   models.Normalize(res.InsertedID),
	}, nil
}

// Delete removes at most one document. A missing document is not an error.
func (r *BookRepo) Delete(ctx context.Context, id primitive.ObjectID) (models.DeleteAck, error) {
	if r.coll == nil {
		return models.DeleteAck{}, models.ErrNotConnected
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{models.FieldID: id})
	if err != nil {
		return models.DeleteAck{}, errors.Wrapf(err, "deleting book %s", id.Hex())
	}
	return models.DeleteAck{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

// Update merges fields into the matching document with $set. Fields that are
// not named keep their stored values.
func (r *BookRepo) Update(ctx context.Context, id primitive.ObjectID, fields bson.D) (models.UpdateAck, error) {
	if r.coll == nil {
		return models.UpdateAck{}, models.ErrNotConnected
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{models.FieldID: id},
		bson.D{{Key: "$set", Value: fields}},
	)
	if err != nil {
		return models.UpdateAck{}, errors.Wrapf(err, "updating book %s", id.Hex())
	}
	return models.UpdateAck{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    models.Normalize(res.UpsertedID),
	}, nil
}

// Ping reports whether the backing deployment is reachable.
func (r *BookRepo) Ping(ctx context.Context) error {
	if r.coll == nil {
		return models.ErrNotConnected
	}
	return errors.Wrap(r.coll.Database().Client().Ping(ctx, nil), "pinging mongodb")
}
