package router

import (
	"io"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"

	bookhandlers "github.com/texas38923/node-mongo-api/internal/handlers"
	"github.com/texas38923/node-mongo-api/internal/middleware"
	"github.com/texas38923/node-mongo-api/internal/utils"
)

type Config struct {
	Books       *bookhandlers.BookHandler
	Health      *bookhandlers.HealthHandler
	RateLimiter *middleware.RateLimiter

	// AccessLog receives combined-format access logs. Defaults to stdout.
	AccessLog io.Writer
}

// New builds the HTTP surface: the five book routes plus /healthz, wrapped
// in access logging and panic recovery.
func New(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	if cfg.Health != nil {
		r.HandleFunc("/healthz", cfg.Health.Health).Methods(http.MethodGet)
	}

	books := r.PathPrefix("/books").Subrouter()
	books.Use(middleware.JSONMiddleware)
	books.Use(cfg.RateLimiter.Middleware)

	books.HandleFunc("", cfg.Books.GetBooks).Methods(http.MethodGet)
	books.HandleFunc("", cfg.Books.AddBook).Methods(http.MethodPost)
	books.HandleFunc("/{id}", cfg.Books.GetBook).Methods(http.MethodGet)
	books.HandleFunc("/{id}", cfg.Books.DeleteBook).Methods(http.MethodDelete)
	books.HandleFunc("/{id}", cfg.Books.UpdateBook).Methods(http.MethodPatch)

	out := cfg.AccessLog
	if out == nil {
		out = os.Stdout
	}

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(panicLogger{}),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(handlers.CombinedLoggingHandler(out, r))
}

type panicLogger struct{}

func (panicLogger) Println(v ...interface{}) {
	grip.Critical(message.Fields{
		"message": "recovered from panic in http handler",
		"panic":   v,
	})
}
