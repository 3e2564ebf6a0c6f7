package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/config"
	"github.com/jfmyers9/orochi/internal/history"
	"github.com/jfmyers9/orochi/internal/pager"
	"github.com/jfmyers9/orochi/internal/playback"
	"github.com/jfmyers9/orochi/internal/player"
	"github.com/jfmyers9/orochi/internal/shell"
	"github.com/jfmyers9/orochi/pkg/eighttracks"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	historyMaxCommands = 1000
	historyMaxAge      = 180 * 24 * time.Hour
)

func runShell(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("8tracks API key not configured. Set api_key in %s or OROCHI_API_KEY", cfg.Path())
	}

	// Determine data directory
	dir := dataDir
	if dir == "" {
		dir = config.GetDataDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Log to a file so the prompt stays readable
	path := logFile
	if path == "" {
		path = filepath.Join(dir, "debug.log")
	}
	logger := setupLogger(path, logLevel)

	logger.Info().
		Str("version", version).
		Str("data_dir", dir).
		Str("player", cfg.Player).
		Msg("Starting orochi")

	client, err := eighttracks.NewClient(eighttracks.Config{
		APIKey:  cfg.APIKey,
		Timeout: time.Duration(cfg.HTTPTimeout) * time.Second,
		Logger:  catalog.LogAdapter{Logger: logger},
	})
	if err != nil {
		return fmt.Errorf("failed to create 8tracks client: %w", err)
	}
	cat := catalog.NewEightTracks(client, logger)

	pg := pager.New(cat, cfg.ResultsPerPage, logger)

	opts := playback.DefaultOptions()
	opts.Volume = cfg.Volume
	ctrl := playback.New(cat, newPlayer(cfg, logger), pg, opts, logger)

	// History is optional; the shell works without it
	store, err := history.NewStore(filepath.Join(dir, "history.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("History disabled")
		store = nil
	} else {
		defer closeHistory(store, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := shell.New(shell.Options{
		Catalog:    cat,
		Pager:      pg,
		Controller: ctrl,
		Config:     cfg,
		History:    store,
		In:         os.Stdin,
		Out:        os.Stdout,
		DataDir:    dir,
		Logger:     logger,
	})
	if err := sh.Run(ctx); err != nil {
		return fmt.Errorf("shell error: %w", err)
	}

	logger.Info().Msg("Stopped")
	return nil
}

// newPlayer creates the configured player backend
func newPlayer(cfg *config.Config, logger zerolog.Logger) player.Player {
	resolver := player.NewResolver(nil, time.Duration(cfg.HTTPTimeout)*time.Second, logger)

	switch cfg.Player {
	case "mpd":
		return player.NewMPD(player.MPDConfig{
			Addr:     net.JoinHostPort(cfg.MPDHost, strconv.Itoa(cfg.MPDPort)),
			Password: cfg.MPDPassword,
			Resolver: resolver,
		}, logger)
	default:
		return player.NewMPlayer(player.MPlayerConfig{
			Path:      cfg.MPlayerPath,
			ExtraArgs: cfg.ExtraArgs(),
			Resolver:  resolver,
		}, logger)
	}
}

// closeHistory trims old entries and closes the store
func closeHistory(store *history.Store, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	removed, err := store.Cleanup(ctx, historyMaxCommands, historyMaxAge)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to clean up history")
	} else if removed > 0 {
		logger.Debug().Int64("removed", removed).Msg("Cleaned up history")
	}

	if err := store.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close history")
	}
}
