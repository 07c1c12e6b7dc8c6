// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/skoipy/skoipy/internal/app/generator"
	"github.com/skoipy/skoipy/internal/app/player"
	"github.com/skoipy/skoipy/internal/app/registry"
	"github.com/skoipy/skoipy/internal/app/resolver"
	"github.com/skoipy/skoipy/internal/discord"
	"github.com/skoipy/skoipy/internal/infra/config"
	"github.com/skoipy/skoipy/internal/infra/logger"
	"github.com/skoipy/skoipy/internal/infra/sheets"
	"github.com/skoipy/skoipy/internal/infra/skoipy"
	"github.com/skoipy/skoipy/internal/infra/spotify"
	"github.com/skoipy/skoipy/internal/infra/store"
	"github.com/skoipy/skoipy/internal/infra/tracking"
	"github.com/skoipy/skoipy/internal/infra/youtube"
)

var (
	app        = kingpin.New("skoipy", "Skoipy Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run the bot (defer ensures shutdown hooks are called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// run executes the main bot logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	spotifyClient, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	ytClient := youtube.New()
	sheetsClient := sheets.New()

	trk := tracking.New(tracking.Config{
		Token:   cfg.Tracking.Token,
		Enabled: cfg.Tracking.Enabled,
	})
	defer trk.Close()

	var skoipyClient generator.PlaylistGenerator
	if cfg.Skoipy.Enabled {
		skoipyClient = skoipy.New()
	}

	audioSettings, err := discord.DecodeSettings(cfg.Audio.Settings)
	if err != nil {
		return err
	}

	expander := generator.NewExpander(spotifyClient, ytClient, sheetsClient)
	notifier := discord.NewGuildNotifier()
	refill := generator.NewRefill(st, sheetsClient, skoipyClient, expander, trk, notifier)

	bot, err := discord.NewBot(cfg.Discord.Token, discord.Options{
		Store:    st,
		Expander: expander,
		Refill:   refill,
		Notifier: notifier,
		Resolver: resolver.New(ytClient, youtube.NewSearch()),
		Tracker:  trk,
		Audio:    audioSettings,
		Playback: player.Config{MaxTrackDuration: cfg.Playback.MaxTrackDuration()},
		Sessions: registry.Config{
			ReapInterval: cfg.Sessions.ReapInterval(),
			IdleTimeout:  cfg.Sessions.IdleTimeout(),
		},
	})
	if err != nil {
		return err
	}

	if err := bot.Open(); err != nil {
		return fmt.Errorf("failed to connect to Discord: %w", err)
	}
	defer func() {
		if err := bot.Close(ctx); err != nil {
			zlog.Warn().Msgf("Gateway close failed: %v", err)
		}
	}()

	reapCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go bot.Registry().Run(reapCtx)

	zlog.Info().Msg("Skoipy online")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	zlog.Info().Msgf("Received signal %v, shutting down", s)

	return nil
}
