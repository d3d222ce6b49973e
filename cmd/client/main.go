package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hseops/fieldsafe/internal/client/cli"
	"github.com/hseops/fieldsafe/internal/client/config"
	"github.com/hseops/fieldsafe/internal/logging"
)

func main() {

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())

}
