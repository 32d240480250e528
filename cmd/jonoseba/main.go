// Command jonoseba is the terminal client for the JonoSeba citizen
// services portal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/jonoseba/portal/internal/api"
	"github.com/jonoseba/portal/internal/app"
	"github.com/jonoseba/portal/internal/credential"
	"github.com/jonoseba/portal/internal/model"
	"github.com/jonoseba/portal/internal/notify"
	"github.com/jonoseba/portal/internal/realtime"
	"github.com/jonoseba/portal/internal/store"
	appsync "github.com/jonoseba/portal/internal/sync"
)

func main() {
	configPath := pflag.StringP("config", "c", model.DefaultConfigPath(), "path to config.yaml")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "jonoseba:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file.
	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	log.SetFlags(0)
	log.SetOutput(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := store.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	sess, err := credential.OpenSession(model.ConfigDir())
	if err != nil {
		return err
	}
	account := restoreSession(sess, logger)

	timeout := time.Duration(cfg.API.TimeoutSec) * time.Second
	client := api.NewClient(cfg.API.BaseURL, sess.Token, timeout, api.WithLogger(logger))

	notes := notify.New(api.NewNotifications(client),
		notify.WithPersister(db),
		notify.WithLogger(logger),
		notify.WithTimeout(timeout),
		notify.WithServerDelete(cfg.Notifications.DeleteOnServer),
	)
	if err := notes.Load(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("starting without the cached notification list")
	}

	interval := time.Duration(cfg.Notifications.PollIntervalSec) * time.Second
	poller := appsync.New(notes, interval, logger)

	var listener *realtime.Listener
	if cfg.API.WebsocketURL != "" {
		listener = realtime.NewListener(cfg.API.WebsocketURL, sess.Token, notes, realtime.WithLogger(logger))
	}

	m := app.New(app.Deps{
		Config:      cfg,
		Client:      client,
		Store:       notes,
		Credentials: sess,
		Poller:      poller,
		Listener:    listener,
		Cache:       store.NewQueryCache(db, time.Duration(cfg.Cache.StaleSec)*time.Second),
		Local:       db,
		Login: func(ctx context.Context, email, password string) (*api.Session, error) {
			return api.Login(ctx, client, email, password)
		},
		Logger:  logger,
		Account: account,
		Email:   os.Getenv("JONOSEBA_EMAIL"),
	})

	logger.Info().Str("api", cfg.API.BaseURL).Bool("signed_in", account != nil).Msg("starting")
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// restoreSession returns the account of a stored, unexpired token. Expired
// or unreadable tokens are removed from the keyring.
func restoreSession(sess *credential.Session, logger zerolog.Logger) *app.Account {
	token, err := sess.Load()
	if errors.Is(err, credential.ErrNoSession) {
		return nil
	}
	if err != nil {
		logger.Warn().Err(err).Msg("reading stored session")
		return nil
	}

	claims, err := credential.ParseClaims(token)
	if err != nil || claims.Expired(time.Now()) {
		logger.Info().Err(err).Msg("discarding stored session")
		if err := sess.Clear(); err != nil {
			logger.Warn().Err(err).Msg("clearing stored session")
		}
		return nil
	}
	return &app.Account{Name: claims.Name, Role: model.UserRole(claims.Role)}
}

func newLogger(cfg model.LogConfig) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = io.Discard
	closeFn := func() {}
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	writer := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closeFn, nil
}
