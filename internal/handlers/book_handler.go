package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/texas38923/node-mongo-api/internal/constants"
	"github.com/texas38923/node-mongo-api/internal/models"
	"github.com/texas38923/node-mongo-api/internal/utils"
)

const (
	DefaultTimeout = 5 * time.Second

	// 100KB, the usual default for JSON request bodies
	maxBodyBytes = 100 << 10
)

// BookStore is the storage a BookHandler needs. Every method performs exactly
// one database operation.
type BookStore interface {
	List(ctx context.Context) ([]models.Book, error)
	Get(ctx context.Context, id primitive.ObjectID) (models.Book, error)
	Create(ctx context.Context, doc bson.D) (models.InsertAck, error)
	Delete(ctx context.Context, id primitive.ObjectID) (models.DeleteAck, error)
	Update(ctx context.Context, id primitive.ObjectID, fields bson.D) (models.UpdateAck, error)
}

type BookHandler struct {
	Store       BookStore
	AuditLogger utils.Logger
	Timeout     time.Duration
}

func NewBookHandler(store BookStore, logger utils.Logger, timeout time.Duration) *BookHandler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BookHandler{
		Store:       store,
		AuditLogger: logger,
		Timeout:     timeout,
	}
}

// GET /books
func (h *BookHandler) GetBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storageContext()
	defer cancel()

	books, err := h.Store.List(ctx)
	if err != nil {
		h.serverError(w, r, "could not fetch the documents", err)
		return
	}

	utils.JSON(w, books, http.StatusOK)
}

// GET /books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.storageContext()
	defer cancel()

	book, err := h.Store.Get(ctx, id)
	if err != nil {
		h.serverError(w, r, "could not fetch the document", err)
		return
	}

	// a missing document is rendered as null
	utils.JSON(w, book, http.StatusOK)
}

// POST /books
func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	doc, err := models.DecodeDocument(body)
	if err != nil {
		utils.JSONError(w, models.ErrInvalidBody.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.storageContext()
	defer cancel()

	ack, err := h.Store.Create(ctx, doc)
	if err != nil {
		h.serverError(w, r, "could not create new doc", err)
		return
	}

	h.audit(ctx, constants.Create, idString(ack.InsertedID), doc)

	utils.JSON(w, ack, http.StatusCreated)
}

// DELETE /books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.storageContext()
	defer cancel()

	ack, err := h.Store.Delete(ctx, id)
	if err != nil {
		h.serverError(w, r, "could not delete the doc", err)
		return
	}

	if ack.DeletedCount > 0 {
		h.audit(ctx, constants.Delete, id.Hex(), nil)
	}

	utils.JSON(w, ack, http.StatusOK)
}

// PATCH /books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	body, ok := readBody(w, r)
	if !ok {
		return
	}

	fields, err := models.DecodeUpdate(body)
	if err != nil {
		utils.JSONError(w, errors.Cause(err).Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := h.storageContext()
	defer cancel()

	ack, err := h.Store.Update(ctx, id, fields)
	if err != nil {
		h.serverError(w, r, "could not update the doc", err)
		return
	}

	if ack.MatchedCount > 0 {
		h.audit(ctx, constants.Update, id.Hex(), fields)
	}

	utils.JSON(w, ack, http.StatusOK)
}

// storageContext is detached from the request: a client that goes away does
// not abort a storage call that is already running.
func (h *BookHandler) storageContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.Timeout)
}

func (h *BookHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	grip.Error(message.WrapError(err, message.Fields{
		"message": msg,
		"method":  r.Method,
		"path":    r.URL.Path,
	}))
	utils.JSONError(w, msg, http.StatusInternalServerError)
}

func (h *BookHandler) audit(ctx context.Context, action, documentID string, data any) {
	grip.Warning(message.WrapError(
		h.AuditLogger.Log(ctx, models.BookEntity, action, documentID, data),
		message.Fields{
			"message":     "audit record was not written",
			"action":      action,
			"document_id": documentID,
		},
	))
}

func parseID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := models.ParseID(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, err.Error(), http.StatusBadRequest)
		return primitive.NilObjectID, false
	}
	return id, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		utils.JSONError(w, models.ErrInvalidBody.Error(), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func idString(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}
