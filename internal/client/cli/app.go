package cli

import (
	"bufio"
	"context"
	"log"
	"os"
	"time"

	"github.com/hseops/fieldsafe/internal/client/attach"
	"github.com/hseops/fieldsafe/internal/client/config"
	"github.com/hseops/fieldsafe/internal/client/lifecycle"
	"github.com/hseops/fieldsafe/internal/client/remote"
	"github.com/hseops/fieldsafe/internal/client/store"
	syncx "github.com/hseops/fieldsafe/internal/client/sync"
	"github.com/hseops/fieldsafe/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config    *config.Config
	store     *store.Store
	remote    *remote.HTTPStore
	engine    *syncx.Engine
	lifecycle *lifecycle.Manager
	attach    *attach.Channel
	userName  string
	Mode      Mode
	reader    *bufio.Reader
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {

	ctx := context.Background()

	st, err := store.Open(ctx, c.DatabasePath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	rem := remote.NewHTTPStore(c.ServerURL)

	return &App{
		config:    c,
		store:     st,
		remote:    rem,
		engine:    syncx.New(st, rem, logger),
		lifecycle: lifecycle.New(st, logger),
		attach:    attach.New(st, rem, logger),
		Mode:      ModeOffline,
		reader:    bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.store.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.remote.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
				}
			} else {
				if a.Mode != ModeOnline {
					a.setMode(ModeOnline)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
