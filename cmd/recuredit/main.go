package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyp0633/recuredit/editor"
	sessionmemory "github.com/cyp0633/recuredit/editor/memory"
	"github.com/cyp0633/recuredit/editor/natsstore"
	"github.com/cyp0633/recuredit/internal/config"
	"github.com/cyp0633/recuredit/internal/logging"
	"github.com/cyp0633/recuredit/recurrence"
	"github.com/cyp0633/recuredit/server"
	"github.com/cyp0633/recuredit/server/auth"
	authmemory "github.com/cyp0633/recuredit/server/auth/memory"
	"github.com/cyp0633/recuredit/storage"
	objectmemory "github.com/cyp0633/recuredit/storage/memory"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	addr := flag.String("addr", "", "listen address, overrides configuration")
	debug := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	logger := logging.Init(*debug)

	if err := run(*configPath, *addr, logger); err != nil {
		logger.Error("recuredit failed", logging.ErrKey, err)
		os.Exit(1)
	}
}

func run(configPath, addr string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}

	engineConfig, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	engine := recurrence.NewEngineWithConfig(engineConfig,
		recurrence.WithLogger(logger.With("component", "recurrence")))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, closeSessions, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	objects := objectmemory.New()
	if err := seedObjects(ctx, objects); err != nil {
		return err
	}

	ed := editor.New(engine, sessions,
		editor.WithLogger(logger.With("component", "editor")),
		editor.WithObjectStore(objects),
		editor.WithExpansionCache(cfg.Sessions.ExpansionCache, cfg.Sessions.TTL))

	var handler http.Handler = server.NewRouter(ed, server.WithLogger(logger.With("component", "http")))
	if cfg.Auth.Enabled() {
		users := authmemory.New(authmemory.WithLogger(logger.With("component", "auth")))
		for username, password := range cfg.Auth.Users {
			if err := users.AddUser(username, password); err != nil {
				return err
			}
		}
		handler = auth.Middleware(users, cfg.Auth.Realm)(handler)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting recuredit server",
			"addr", cfg.Addr,
			"session_backend", cfg.Sessions.Backend,
			"timezone", cfg.Timezone,
			"fixed_horizon", cfg.Horizon.Fixed,
			"auth", cfg.Auth.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (editor.SessionStore, func(), error) {
	storeLogger := logger.With("component", "sessions")

	switch cfg.Sessions.Backend {
	case config.BackendNATS:
		store, nc, err := natsstore.Connect(ctx, cfg.Sessions.NATSURL, cfg.Sessions.Bucket, cfg.Sessions.TTL,
			natsstore.WithLogger(storeLogger))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := nc.Drain(); err != nil {
				logger.Warn("failed to drain nats connection", logging.ErrKey, err)
			}
		}, nil
	case config.BackendMemory:
		store := sessionmemory.New(sessionmemory.Config{
			TTL:             cfg.Sessions.TTL,
			MaxEntries:      cfg.Sessions.MaxEntries,
			CleanupInterval: cfg.Sessions.CleanupInterval,
		}, sessionmemory.WithLogger(storeLogger))
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}

// seedObjects stores a sample recurring event so object sessions can be tried out
// at /users/demo/objects/standup/sessions.
func seedObjects(ctx context.Context, objects *objectmemory.Store) error {
	start := time.Now().UTC().Truncate(24 * time.Hour).Add(9 * time.Hour)

	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, uuid.NewString())
	event.Props.SetText(ical.PropSummary, "Daily standup")
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	if err := recurrence.ApplyRuleText(event, "RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"); err != nil {
		return err
	}

	_, err := objects.PutObject(ctx, &storage.CalendarObject{
		UserID:    "demo",
		ID:        "standup",
		Component: event,
	})
	return err
}
