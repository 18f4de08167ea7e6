package models

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	BookEntity = "book"

	FieldID     = "_id"
	FieldAuthor = "author"
)

var (
	ErrInvalidID    = errors.New("not a valid doc id")
	ErrInvalidBody  = errors.New("invalid request body")
	ErrEmptyUpdate  = errors.New("no update fields provided")
	ErrImmutableID  = errors.New("_id cannot be modified")
	ErrNotConnected = errors.New("database is not connected")
)

// Book is a schema-less book document. Apart from _id, which storage assigns
// on insert, every field is whatever the client sent.
type Book map[string]interface{}

// NewBook converts a decoded BSON document into a Book whose nested values
// serialize as plain JSON objects and arrays.
func NewBook(doc bson.M) Book {
	return Book(Normalize(doc).(map[string]interface{}))
}

// ParseID decodes a client-supplied identifier. It accepts exactly 24 hex
// characters, or exactly 12 bytes used as the raw ObjectID.
func ParseID(s string) (primitive.ObjectID, error) {
	switch len(s) {
	case 24:
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return primitive.NilObjectID, ErrInvalidID
		}
		return id, nil
	case 12:
		var id primitive.ObjectID
		copy(id[:], s)
		return id, nil
	default:
		return primitive.NilObjectID, ErrInvalidID
	}
}

// IsValidID reports whether s can be used as a document identifier.
func IsValidID(s string) bool {
	_, err := ParseID(s)
	return err == nil
}

// DecodeDocument parses a relaxed extended JSON object, keeping field order.
// The whole body must be a single object; a repeated key keeps its first
// position and takes its last value.
func DecodeDocument(body []byte) (bson.D, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidBody
	}
	// UnmarshalExtJSON stops after the first value and ignores the rest.
	if !json.Valid(trimmed) {
		return nil, ErrInvalidBody
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(trimmed, false, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalidBody, err.Error())
	}
	return lastWins(doc), nil
}

func lastWins(doc bson.D) bson.D {
	out := make(bson.D, 0, len(doc))
	seen := make(map[string]int, len(doc))
	for _, e := range doc {
		e.Value = collapse(e.Value)
		if i, ok := seen[e.Key]; ok {
			out[i].Value = e.Value
			continue
		}
		seen[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}

func collapse(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		return lastWins(t)
	case bson.A:
		for i := range t {
			t[i] = collapse(t[i])
		}
		return t
	default:
		return v
	}
}

// DecodeUpdate parses the fields of a partial update. The result is never
// empty and never touches _id.
func DecodeUpdate(body []byte) (bson.D, error) {
	doc, err := DecodeDocument(body)
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, ErrEmptyUpdate
	}
	for _, e := range doc {
		if e.Key == FieldID {
			return nil, ErrImmutableID
		}
	}
	return doc, nil
}

// IsClientError reports whether err was caused by bad client input.
func IsClientError(err error) bool {
	switch errors.Cause(err) {
	case ErrInvalidID, ErrInvalidBody, ErrEmptyUpdate, ErrImmutableID:
		return true
	}
	return false
}

// Normalize rewrites BSON container types into maps and slices so that
// encoding/json renders them as objects and arrays.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
