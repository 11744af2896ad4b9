package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weatherbot/database"
	"weatherbot/dialog"
	"weatherbot/metrics"
	"weatherbot/render"
	"weatherbot/report"
	"weatherbot/session"
	"weatherbot/sink"
	"weatherbot/state"
	"weatherbot/telegram"
	"weatherbot/weather"

	backend "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() error {
	var (
		cfg = state.State.Config
		err error
	)

	if cfg.DebugMode {
		developmentConfig := zap.NewDevelopmentConfig()
		developmentConfig.OutputPaths = append(developmentConfig.OutputPaths, "debug.log")
		state.State.Logger, err = developmentConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize development logger: %s", err)
		}
		state.State.Logger = state.State.Logger.Named("weatherbot_dev")
	} else {
		productionConfig := zap.NewProductionConfig()
		state.State.Logger, err = productionConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize production logger: %s", err)
		}
		state.State.Logger = state.State.Logger.Named("weatherbot")
	}

	state.State.Logger.Debug("loaded config file and started logger",
		zap.String("config_path", cfg.Path),
		zap.Bool("development_mode", cfg.DebugMode),
	)
	state.State.Logger.Sync()
	return nil
}

func setupDatabase() error {
	db, err := database.Connect()
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}

	state.State.Database = db
	if err = database.AutoMigrate(); err != nil {
		return fmt.Errorf("could not migrate database tables: %w", err)
	}
	return nil
}

// conversationBackend picks redis when it is configured and in-process
// structures otherwise.
func conversationBackend(ctx context.Context) (dialog.Store, *session.Locker, render.Sink, *backend.Client, error) {
	var (
		cfg    = state.State.Config
		logger = state.State.Logger
	)

	if cfg.Redis.Address == "" {
		logger.Info("no redis configured, conversations are kept in memory")
		return session.NewMemoryStore(),
			session.NewLocker(session.WithLockerLogger(logger)),
			sink.NewLogSink(logger),
			nil, nil
	}

	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, nil, fmt.Errorf("could not reach redis at %s: %w", cfg.Redis.Address, err)
	}

	store := session.NewRedisStore(client,
		session.WithPrefix(cfg.Redis.Prefix),
		session.WithTTL(cfg.Redis.SessionTTL),
	)
	locker := session.NewLocker(
		session.WithDistributedLocker(
			session.NewRedisLocker(client, cfg.Redis.Prefix, session.WithRedisLockerLogger(logger)),
			cfg.Redis.LockTTL,
		),
		session.WithLockerLogger(logger),
	)
	return store, locker, sink.NewRedisSink(client, cfg.Redis.Channel), client, nil
}

func runBot() error {
	if err := setupLogger(); err != nil {
		return err
	}
	var (
		cfg    = state.State.Config
		logger = state.State.Logger
	)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create local location for time
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	locLoc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		logger.Error("failed to set time zone",
			zap.String("time_zone", cfg.TimeZone),
			zap.Error(err),
		)
		return err
	}
	state.State.LocalLocation = locLoc

	if err = setupDatabase(); err != nil {
		logger.Error("failed to set up database", zap.Error(err))
		return err
	}

	store, locker, externalSink, redisClient, err := conversationBackend(ctx)
	if err != nil {
		logger.Error("failed to set up conversation storage", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var logo []byte
	if cfg.Telegram.LogoPath != "" {
		logo, err = os.ReadFile(cfg.Telegram.LogoPath)
		if err != nil {
			logger.Warn("failed to read logo, greeting without it",
				zap.String("path", cfg.Telegram.LogoPath),
				zap.Error(err),
			)
		}
	}

	weatherOpts := []weather.Option{
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithUserAgent(cfg.Weather.UserAgent),
		weather.WithTimeout(cfg.Weather.Timeout),
		weather.WithRetries(cfg.Weather.Retries, time.Second),
		weather.WithMaxDays(cfg.Weather.MaxDays),
		weather.WithLogger(logger.Named("weather")),
	}
	if cfg.Proxy != "" {
		proxyUrl, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy %q: %w", cfg.Proxy, err)
		}
		weatherOpts = append(weatherOpts, weather.WithProxy(proxyUrl))
	}

	var (
		registry = dialog.MustNewRegistry(dialog.DefaultCommands()...)
		storage  = database.NewStorage(state.State.Database)
		stats    = metrics.New()
		library  = &dialog.Library{
			Registry: registry,
			Storage:  storage,
			Weather:  weather.NewClient(weatherOpts...),
			Tables:   report.NewRenderer(),
			Logo:     logo,
			LogLimit: cfg.Dialog.LogLimit,
			Now:      func() time.Time { return time.Now().In(state.State.LocalLocation) },
		}
	)

	engine, err := dialog.NewEngine(registry, library.Flows(), store, locker,
		dialog.WithHooks(stats.Hooks(logger)),
		dialog.WithLogger(logger.Named("dialog")),
	)
	if err != nil {
		logger.Error("failed to build the conversation engine", zap.Error(err))
		return err
	}

	pipeline := render.New(registry, engine,
		render.WithSink(externalSink),
		render.WithScales(storage),
		render.WithLogger(logger.Named("render")),
		render.WithRowWidth(cfg.Dialog.ButtonWidth, cfg.Dialog.ScalePenalty),
		render.WithMaxDepth(cfg.Dialog.MaxSelfCommands),
	)

	if err = telegram.NewTelegramClient(); err != nil {
		logger.Error("failed to initialize telegram client", zap.Error(err))
		return err
	}

	bot := telegram.NewBot(engine, pipeline,
		telegram.NewBotDeliverer(state.State.TelegramBot, telegram.WithDelivererLogger(logger.Named("deliver"))), locker,
		telegram.WithObserver(stats),
		telegram.WithBotLogger(logger.Named("telegram")),
		telegram.WithDebounceWindow(cfg.Telegram.DebounceWindow),
	)
	telegram.AddTelegramHandlers(bot, registry)

	if err = telegram.RegisterBotCommands(state.State.TelegramBot, state.State.TelegramCommands...); err != nil {
		logger.Error("failed to set my commands",
			zap.Error(err),
		)
	}

	if cfg.Metrics.Address != "" {
		checks := map[string]metrics.HealthFunc{
			"database": func(ctx context.Context) error {
				sqlDb, err := state.State.Database.DB()
				if err != nil {
					return err
				}
				return sqlDb.PingContext(ctx)
			},
		}
		if redisClient != nil {
			checks["redis"] = func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, metrics.NewHandler(stats, checks), logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	state.State.StartTime = time.Now().UTC()

	if err = telegram.StartPolling(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if err = telegram.SendStartupMessage(); err != nil {
		logger.Warn("failed to send startup message", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := state.State.TelegramUpdater.Stop(); err != nil {
			logger.Warn("failed to stop the updater", zap.Error(err))
		}
	}()

	state.State.TelegramUpdater.Idle()

	bot.Stop()
	pipeline.Wait()
	return nil
}
