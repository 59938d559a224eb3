package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/nextshape/internal/client/config"
	"github.com/dmitrijs2005/nextshape/internal/client/events"
	"github.com/dmitrijs2005/nextshape/internal/client/guard"
	"github.com/dmitrijs2005/nextshape/internal/client/models"
	"github.com/dmitrijs2005/nextshape/internal/client/records"
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/metadata"
	recordsrepo "github.com/dmitrijs2005/nextshape/internal/client/repositories/records"
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/sessions"
	"github.com/dmitrijs2005/nextshape/internal/client/repositories/snapshot"
	"github.com/dmitrijs2005/nextshape/internal/client/session"
	"github.com/dmitrijs2005/nextshape/internal/client/storage"
	"github.com/dmitrijs2005/nextshape/internal/client/transport"
	"github.com/dmitrijs2005/nextshape/internal/client/working"
	"github.com/dmitrijs2005/nextshape/internal/common"
	"github.com/dmitrijs2005/nextshape/internal/logging"
)

const workingRecordKey = "working.record"

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config   *config.Config
	log      logging.Logger
	db       *sql.DB
	registry *prometheus.Registry

	session *session.Store
	guard   *guard.Guard
	working *working.Store
	records *records.Store

	reader *bufio.Reader
	out    io.Writer

	mu       sync.Mutex
	location string
	Mode     Mode
}

// NewApp opens the local database, builds the transport and the stores and
// restores the persisted session. Log output goes to logOut.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, logOut)
	if err != nil {
		return nil, err
	}

	db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	api, err := transport.NewHTTPClient(transport.Options{
		BaseURL:    c.APIBaseURL,
		Timeout:    c.RequestTimeout,
		AuthMode:   c.AuthMode,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:   c,
		log:      logger,
		db:       db,
		registry: reg,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		location: common.LandingPath,
	}

	bus := events.NewBus()
	a.session = session.NewStore(session.Options{
		API:       api,
		Repo:      sessions.NewSQLiteRepository(db),
		Bus:       bus,
		Navigator: a,
		Logger:    logger,
		AuthMode:  c.AuthMode,
	})
	api.SetHooks(a.session)

	a.guard = guard.New(guard.Routes, a.session)

	a.working = working.NewStore(working.Options{
		API:       api,
		Snapshots: snapshot.NewJSON[models.WorkingRecord](metadata.NewSQLiteRepository(db), workingRecordKey),
		Logger:    logger,
	})
	a.working.Subscribe(bus)

	a.records = records.NewStore(records.Options{
		API:    api,
		Cache:  recordsrepo.NewSQLiteRepository(db),
		Logger: logger,
	})
	a.records.Subscribe(bus)

	if err := a.session.Restore(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Run starts the session probe when configured and blocks in the REPL until
// the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to NextShape CLI (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.config.SessionProbeInterval > 0 {
		go a.StartSessionWatcher(ctx, a.config.SessionProbeInterval)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn(context.Background(), "close database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

// Navigate moves the REPL to path. The session store calls it on teardown.
func (a *App) Navigate(ctx context.Context, path string) {
	a.mu.Lock()
	changed := a.location != path
	a.location = path
	a.mu.Unlock()

	if changed {
		a.log.Debug(ctx, "navigate", "path", path)
		fmt.Fprintf(a.out, "-> %s\n", path)
	}
}

func (a *App) currentLocation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.location
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(context.Background(), "connectivity changed", "mode", string(mode))
	}
}

func (a *App) getStatus() string {
	s := a.currentLocation()
	if id := a.session.Identity(); id != nil {
		s = id.Email + " " + s
	}
	a.mu.Lock()
	mode := a.Mode
	a.mu.Unlock()
	if mode != "" {
		s = s + " " + string(mode)
	}
	return fmt.Sprintf("(%s)", s)
}

// StartSessionWatcher checks the session with the server every interval while
// logged in. An invalid session is torn down by the session store; network
// failures only switch the connectivity mode.
func (a *App) StartSessionWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probeSession(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) probeSession(ctx context.Context) {
	if !a.isLoggedIn() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	ok, err := a.session.CheckAuthentication(ctx)
	switch {
	case err != nil:
		a.log.Warn(ctx, "session probe failed", "error", err)
		a.setMode(ModeOffline)
	case !ok:
		a.setMode(ModeOnline)
		fmt.Fprintln(a.out, "Your session has ended, please log in again.")
	default:
		a.setMode(ModeOnline)
	}
}
