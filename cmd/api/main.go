// Briefly is a personalized news backend.
//
// It fronts the GNews search API with caching and query expansion, and
// keeps per-user topics and favorited articles behind token auth.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/briefly/internal/api"
	"github.com/jdholdren/briefly/internal/briefly"
	"github.com/jdholdren/briefly/internal/gnews"
	"github.com/jdholdren/briefly/internal/jsonstore"
	"github.com/jdholdren/briefly/internal/newscache"
	"github.com/jdholdren/briefly/internal/sqlite"
	"github.com/jdholdren/briefly/internal/token"
	"github.com/jdholdren/briefly/logger"
)

const defaultJWTSecret = "dev-secret-change-me"

type config struct {
	Port int `env:"PORT, default=8080"`

	// Where user data lives. DATABASE switches storage to sqlite at the
	// given path; otherwise DATA_FILE names a JSON document.
	DataFile string `env:"DATA_FILE, default=data/users.json"`
	Database string `env:"DATABASE"`

	GNewsAPIKey string `env:"GNEWS_API_KEY"`

	JWTSecret     string `env:"JWT_SECRET, default=dev-secret-change-me"`
	JWTExpireDays int    `env:"JWT_EXPIRE_DAYS, default=30"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*"`
	Environment    string `env:"ENVIRONMENT, default=development"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	// Start the application
	if err := run(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	slog.Info("running", "port", cfg.Port, "environment", cfg.Environment)

	if cfg.Environment == "production" && cfg.JWTSecret == defaultJWTSecret {
		slog.Warn("JWT_SECRET is the development default; set a real secret")
	}
	if cfg.GNewsAPIKey == "" {
		slog.Warn("GNEWS_API_KEY is not set; news searches will fail")
	}

	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}

	var (
		tokens = token.NewService(cfg.JWTSecret, time.Duration(cfg.JWTExpireDays)*24*time.Hour)
		pager  = newscache.New(gnews.New(cfg.GNewsAPIKey))
	)

	s := api.NewServer(api.ServerConfig{
		Port:            cfg.Port,
		AllowedOrigins:  strings.Split(cfg.AllowedOrigins, ","),
		Environment:     cfg.Environment,
		GNewsConfigured: cfg.GNewsAPIKey != "",
	}, repo, tokens, pager)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Start the server
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}

func openRepo(cfg config) (briefly.Repository, error) {
	if cfg.Database != "" {
		dbx, err := sqlite.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("error opening database: %s", err)
		}
		// Migrate, always
		if err := sqlite.Migrate(dbx); err != nil {
			return nil, fmt.Errorf("error migrating: %s", err)
		}

		slog.Info("using sqlite storage", "path", cfg.Database)
		return sqlite.New(dbx), nil
	}

	store, err := jsonstore.Open(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("error opening data file: %s", err)
	}

	slog.Info("using json file storage", "path", cfg.DataFile)
	return store, nil
}
