// Command listening-log serves the Spotify listening-history collector.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/justestif/go-spotify-listening-log/internal/config"
	"github.com/justestif/go-spotify-listening-log/internal/db"
	"github.com/justestif/go-spotify-listening-log/internal/logging"
	"github.com/justestif/go-spotify-listening-log/internal/spotify"
	"github.com/justestif/go-spotify-listening-log/internal/sync"
	"github.com/justestif/go-spotify-listening-log/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		logging.Info().Msg("database schema up to date")
	}

	client := spotify.NewClient(spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		APIBaseURL:   cfg.Spotify.APIBaseURL,
		TokenURL:     cfg.Spotify.TokenURL,
		RecentLimit:  cfg.Spotify.RecentLimit,
		HTTPClient:   &http.Client{Timeout: cfg.Spotify.Timeout},
	})

	metrics := sync.NewMetrics(prometheus.DefaultRegisterer)
	service := sync.New(client, sync.NewStore(database),
		sync.WithConcurrency(cfg.Sync.Concurrency),
		sync.WithMetrics(metrics),
	)

	server := web.NewServer(web.ServerConfig{
		Addr:             cfg.Server.Addr,
		RedirectURI:      cfg.Server.RedirectURI,
		ClientID:         cfg.Spotify.ClientID,
		ClientSecret:     cfg.Spotify.ClientSecret,
		CollectRateLimit: cfg.Sync.CollectRateLimit,
		Syncer:           service,
		Accounts:         database.Accounts(),
		Status:           database,
		History:          database,
		Gatherer:         prometheus.DefaultGatherer,
	})

	return server.Run()
}
