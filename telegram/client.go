package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"weatherbot/state"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"go.uber.org/zap"
)

// NewTelegramClient creates the bot, its dispatcher and its updater and
// stores them in state.State.
func NewTelegramClient() error {
	var (
		cfg    = state.State.Config
		logger = state.State.Logger
	)

	httpClient := http.Client{}
	if cfg.Proxy != "" {
		proxyUrl, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy %q : %w", cfg.Proxy, err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxyUrl)
		httpClient.Transport = transport
	}

	bot, err := gotgbot.NewBot(cfg.Telegram.BotToken, &gotgbot.BotOpts{
		BotClient: &gotgbot.BaseBotClient{
			Client: httpClient,
			DefaultRequestOpts: &gotgbot.RequestOpts{
				Timeout: gotgbot.DefaultTimeout,
				APIURL:  cfg.Telegram.ApiUrl,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("could not initialize telegram bot : %w", err)
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			logger.Error("telegram handler returned an error",
				zap.Int64("update_id", ctx.UpdateId),
				zap.Error(err),
			)
			return ext.DispatcherActionNoop
		},
		Panic: func(b *gotgbot.Bot, ctx *ext.Context, r interface{}) {
			logger.Error("telegram handler panicked",
				zap.Int64("update_id", ctx.UpdateId),
				zap.Any("panic", r),
			)
		},
		MaxRoutines: cfg.Telegram.MaxRoutines,
	})

	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{
		UnhandledErrFunc: func(err error) {
			logger.Warn("telegram polling error", zap.Error(err))
		},
	})

	state.State.TelegramBot = bot
	state.State.TelegramDispatcher = dispatcher
	state.State.TelegramUpdater = updater

	logger.Info("successfully logged into telegram",
		zap.Int64("id", bot.Id),
		zap.String("username", bot.Username),
	)
	logger.Sync()

	return nil
}

// StartPolling starts the long-poll loop, retrying with a fixed backoff
// until it starts or ctx is cancelled.
func StartPolling(ctx context.Context) error {
	var (
		cfg     = state.State.Config
		logger  = state.State.Logger
		bot     = state.State.TelegramBot
		updater = state.State.TelegramUpdater
		backoff = cfg.Telegram.PollingBackoff
	)
	if backoff <= 0 {
		backoff = 10 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := updater.StartPolling(bot, &ext.PollingOpts{
			DropPendingUpdates: true,
			GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
				Timeout: 9,
				RequestOpts: &gotgbot.RequestOpts{
					Timeout: 10 * time.Second,
				},
			},
		})
		if err == nil {
			logger.Info("started polling for telegram updates")
			return nil
		}

		logger.Error("failed to start polling, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// SendStartupMessage tells the owner that the bot is running.
func SendStartupMessage() error {
	cfg := state.State.Config
	if cfg.Telegram.SkipStartupMessage || cfg.Telegram.OwnerID == 0 {
		return nil
	}
	_, err := state.State.TelegramBot.SendMessage(cfg.Telegram.OwnerID,
		"Successfully started weatherbot", &gotgbot.SendMessageOpts{})
	return err
}
