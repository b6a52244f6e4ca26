package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jellycord/internal/command"
	"jellycord/internal/command/music"
	"jellycord/internal/config"
	"jellycord/internal/discord"
	"jellycord/internal/jellyfin"
	"jellycord/internal/logging"
	"jellycord/internal/metrics"
	"jellycord/internal/remote"
	"jellycord/internal/session"
	"jellycord/internal/status"
	"jellycord/internal/storage"
	"jellycord/internal/voice"
	"jellycord/pkg/cmd"
	"jellycord/pkg/jobmgr"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const remoteSocketJob = "remote-socket"

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logrus.NewEntry(logger))
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	log.Info("Starting jellycord")
	metrics.Register()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.New(cfg.StoragePath, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("Failed to close storage")
		}
	}()

	client, err := jellyfin.New(jellyfin.Options{
		URL:         cfg.JellyfinURL,
		Token:       cfg.JellyfinToken,
		UserID:      cfg.JellyfinUserID,
		DeviceID:    cfg.JellyfinDeviceID,
		ClientName:  cfg.JellyfinClientName,
		MaxBitrate:  cfg.JellyfinMaxBitrate,
		RequestRate: cfg.JellyfinRequestRate,
		CacheTTL:    cfg.JellyfinCacheTTL,
		Log:         log,
	})
	if err != nil {
		return err
	}

	jobs := jobmgr.NewManager(ctx, log)
	registry := cmd.NewRegistry()

	bot, err := discord.New(discord.Options{
		Token:             cfg.DiscordToken,
		InitSlashCommands: cfg.InitSlashCommands,
		CommandCachePath:  cfg.CommandCachePath,
		Registry:          registry,
		Log:               log,
	})
	if err != nil {
		return err
	}

	sessions := session.NewManager(ctx, session.Options{
		Catalog: client,
		Store:   store,
		Source:  voice.FFmpeg{Path: cfg.FFmpegPath, Log: log},
		Link: func(guildID string) session.Link {
			return voice.NewConnection(bot.Session(), guildID, log)
		},
		Reporter: func(state jellyfin.PlaybackState, log *logrus.Entry) session.Reporter {
			return jellyfin.NewReporter(client, state, log)
		},
		ReportInterval: cfg.ProgressReportInterval,
		Jobs:           jobs,
		Log:            log,
	})
	defer sessions.Shutdown()

	mws := []cmd.Middleware{command.WithGuildOnly(), command.WithCommandLogger(store)}
	registerCommands(registry, store, &music.Player{
		Sessions: sessions,
		Catalog:  client,
		Voice:    bot,
		Views:    music.NewViews(jobs, cfg.PlaylistViewTimeout, cfg.PlaylistViewRefresh, cfg.PlaylistPageSize, log),
	}, mws...)

	listener := remote.NewListener(client, sessions, log)
	socket := jellyfin.NewSocket(client, listener, log)
	if err := jobs.Start(remoteSocketJob, socket.Run); err != nil {
		return fmt.Errorf("start remote control: %w", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- bot.Run(ctx) }()
	go func() { errCh <- status.New(sessions, jobs, log).Run(ctx, cfg.StatusAddr) }()

	var firstErr error
	for range 2 {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			if firstErr == nil {
				firstErr = err
			}
			log.WithError(err).Error("Component stopped")
		}
		cancel()
	}

	jobs.Wait()
	log.Info("jellycord exited")
	return firstErr
}
