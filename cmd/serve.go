package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/texas38923/node-mongo-api/configs"
	"github.com/texas38923/node-mongo-api/internal/daemon"
	"github.com/texas38923/node-mongo-api/internal/db"
	"github.com/texas38923/node-mongo-api/internal/handlers"
	"github.com/texas38923/node-mongo-api/internal/middleware"
	"github.com/texas38923/node-mongo-api/internal/models"
	"github.com/texas38923/node-mongo-api/internal/queue"
	"github.com/texas38923/node-mongo-api/internal/repository"
	"github.com/texas38923/node-mongo-api/internal/router"
	"github.com/texas38923/node-mongo-api/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The listener must not start unless the database is reachable.
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer db.Disconnect(context.Background(), client)

	repo := repository.NewBookRepo(db.GetCollection(client, cfg.DBName, cfg.BooksCollection))

	exportCtx, cancelExport := context.WithCancel(context.Background())
	defer cancelExport()

	var auditLogger utils.Logger
	var exporterDone <-chan struct{}
	if cfg.AuditEnabled {
		auditColl := db.GetCollection(client, cfg.DBName, models.AuditCollection)
		auditLogger = utils.Logger{Collection: auditColl}

		exporter, closeExporter := newAuditExporter(cfg)
		defer closeExporter()

		logExporter := &daemon.LogExporter{
			Coll:     auditColl,
			Exporter: exporter,
			Interval: cfg.AuditExportInterval,
		}
		exporterDone = logExporter.Start(exportCtx)
	}

	redisClient, err := db.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		grip.Warning(message.WrapError(err, message.Fields{
			"message": "rate limiting disabled",
		}))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	handler := router.New(router.Config{
		Books:       handlers.NewBookHandler(repo, auditLogger, cfg.RequestTimeout),
		Health:      &handlers.HealthHandler{DB: repo},
		RateLimiter: middleware.NewRateLimiter(redisClient, cfg.RateLimitRequests, cfg.RateLimitWindow),
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		grip.Info(message.Fields{
			"message":    "app is listening",
			"port":       cfg.Port,
			"database":   cfg.DBName,
			"collection": cfg.BooksCollection,
			"version":    Version,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "serving http")
		}
	case <-ctx.Done():
	}

	grip.Infof("shutting down, waiting up to %s", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down http server")
	}

	cancelExport()
	if exporterDone != nil {
		<-exporterDone
	}

	grip.Info("server shut down")
	return nil
}

// newAuditExporter publishes to RabbitMQ when a broker is configured and
// otherwise writes audit records to the log.
func newAuditExporter(cfg configs.Config) (daemon.Exporter, func()) {
	if cfg.AMQPURL == "" {
		return utils.ConsoleExporter{}, func() {}
	}

	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	grip.Warning(message.WrapError(publisher.Connect(), message.Fields{
		"message": "rabbitmq unavailable at startup, will retry on export",
		"queue":   cfg.AMQPQueue,
	}))

	return publisher, func() {
		grip.Warning(message.WrapError(publisher.Close(), message.Fields{
			"message": "closing audit publisher",
		}))
	}
}
