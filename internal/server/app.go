// Package server initializes and runs the document service: PostgreSQL
// document storage, S3 attachment storage and the public HTTP API, with
// graceful shutdown on OS signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hseops/fieldsafe/internal/logging"
	"github.com/hseops/fieldsafe/internal/server/blob"
	"github.com/hseops/fieldsafe/internal/server/config"
	"github.com/hseops/fieldsafe/internal/server/httpapi"
	"github.com/hseops/fieldsafe/internal/server/storage"
	"gopkg.in/natefinch/lumberjack.v2"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	storage *storage.Storage
	api     *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	var out io.Writer = os.Stdout
	if c.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(out, nil)))

	st, err := storage.Open(context.Background(), c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	blobs, err := blob.New(c)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	api := httpapi.NewServer(st.Documents, blobs, logger, []byte(c.SecretKey), c.TokenValidityDuration)

	return &App{config: c, logger: logger, storage: st, api: api}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.api.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.storage.Close(); err != nil {
		app.logger.Error(ctx, "closing storage", "error", err)
	}
}
