package main

import (
	"context"
	"hash/fnv"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/focuslabs/focusbot/internal/activity"
	"github.com/focuslabs/focusbot/internal/audio"
	"github.com/focuslabs/focusbot/internal/broadcast"
	"github.com/focuslabs/focusbot/internal/config"
	"github.com/focuslabs/focusbot/internal/dialog"
	"github.com/focuslabs/focusbot/internal/health"
	"github.com/focuslabs/focusbot/internal/metrics"
	"github.com/focuslabs/focusbot/internal/mgmt"
	"github.com/focuslabs/focusbot/internal/scheduler"
	"github.com/focuslabs/focusbot/internal/stats"
	"github.com/focuslabs/focusbot/internal/store"
	"github.com/focuslabs/focusbot/internal/transport"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("ENVIRONMENT") == "" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("db_path", cfg.DBPath).
		Str("mgmt_addr", cfg.MgmtListenAddr).
		Bool("telegram_enabled", cfg.TelegramEnabled()).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting focusbot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	mts := metrics.New()

	checker := health.NewChecker(logger)
	checker.Register("db", func(_ context.Context) health.Status {
		if err := st.Ping(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	catalog, err := audio.Load(cfg.AudioCatalog)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.AudioCatalog).Msg("failed to load audio catalog")
	}
	if catalog.Len() > 0 {
		logger.Info().Int("tracks", catalog.Len()).Msg("audio catalog loaded")
	}

	// One chat transport at a time: Telegram when configured, Slack as
	// the alternative. Without either the bot runs mgmt-only.
	inbound := make(chan transport.Inbound, cfg.InboundBuffer)
	var chat transport.Transport
	var source transport.Source
	switch {
	case cfg.TelegramEnabled():
		tg := transport.NewTelegram(cfg.TelegramBotToken, inbound, logger,
			transport.TelegramWithPollTimeout(cfg.TelegramPollSecs))
		chat, source = tg, tg
	case cfg.SlackEnabled():
		sl := transport.NewSlack(cfg.SlackBotToken, cfg.SlackAppToken, cfg.SlackChannels(), inbound, logger)
		chat, source = sl, sl
	default:
		logger.Warn().Msg("no chat transport configured, running mgmt-only")
	}

	adminIDs := make(map[string]bool)
	for _, id := range cfg.AdminUsers() {
		adminIDs[id] = true
	}

	var sender *dialog.Sender
	if chat != nil {
		sender = dialog.NewSender(st, chat, mts, adminIDs, logger)
	}

	// The scheduler callback closes over the manager; jobs only fire
	// after Start, by which time the manager exists.
	var manager *activity.Manager
	sched := scheduler.New(st, func(ctx context.Context, p scheduler.Payload) {
		manager.AutoFinish(ctx, p)
	}, logger)

	var notifier activity.Notifier
	if sender != nil {
		notifier = sender
	}
	opts := []activity.Option{}
	if !cfg.IsProduction() {
		opts = append(opts, activity.WithCountdown(cfg.DevCountdown))
	}
	manager = activity.NewManager(st, sched, notifier, mts, logger, opts...)

	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	var wg sync.WaitGroup

	if sender != nil {
		interp := dialog.NewInterpreter(st, manager, stats.NewReporter(st), sender, sender, catalog, mts, logger)

		// Shard inbound messages by user so each user's turns stay
		// ordered while different users proceed in parallel.
		workers := cfg.TurnWorkers
		if workers < 1 {
			workers = 1
		}
		shards := make([]chan transport.Inbound, workers)
		for i := range shards {
			shards[i] = make(chan transport.Inbound, cfg.InboundBuffer)
			wg.Add(1)
			go func(ch <-chan transport.Inbound) {
				defer wg.Done()
				for in := range ch {
					interp.HandleInbound(ctx, in)
				}
			}(shards[i])
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				for _, ch := range shards {
					close(ch)
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case in := <-inbound:
					shards[shardFor(in.UserID, workers)] <- in
				}
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := source.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("transport", source.Name()).Msg("transport stopped")
				cancel()
			}
		}()

		broadcaster := broadcast.New(st, sender, cfg.BroadcastWorkers, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = broadcaster.Run(ctx)
		}()
	}

	// Keep the pending-jobs gauge current.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := sched.PendingCount(); err == nil {
					mts.JobsPending.Set(float64(n))
				}
			}
		}
	}()

	var answerer mgmt.ContactAnswerer
	if sender != nil {
		answerer = sender
	}
	mgmtServer := mgmt.NewServer(mgmt.ServerConfig{
		ListenAddr: cfg.MgmtListenAddr,
		Auth: mgmt.AuthConfig{
			Mode:      cfg.MgmtAuthMode,
			APIKey:    cfg.MgmtAPIKey,
			JWTSecret: cfg.MgmtJWTSecret,
		},
		CORSOrigins: cfg.MgmtCORSOrigins,
	}, st, checker, mts, answerer, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mgmtServer.Start(); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("management API stopped")
			cancel()
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	if err := mgmtServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("management API shutdown failed")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("shutdown timed out, exiting anyway")
	}
	logger.Info().Msg("bye")
}

func shardFor(userID string, workers int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(workers))
}
