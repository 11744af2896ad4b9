package telegram

import (
	"context"
	"strconv"
	"sync"
	"time"

	"weatherbot/debounce"
	"weatherbot/dialog"
	"weatherbot/render"

	"go.uber.org/zap"
)

const apologyText = "Sorry, something went wrong. Please try again later."

// Bot ties the transport to the conversation engine. Fragments are
// debounced per chat, and each logical message runs engine, rendering and
// delivery under the chat's lock so that actions reach the chat in order.
type Bot struct {
	engine    Engine
	renderer  Renderer
	deliverer Deliverer
	locker    dialog.Locker
	observer  Observer
	logger    *zap.Logger
	window    time.Duration

	debouncer *debounce.Debouncer

	namesMu sync.RWMutex
	names   map[int64]string
}

type BotOption func(*Bot)

func WithObserver(observer Observer) BotOption {
	return func(b *Bot) {
		b.observer = observer
	}
}

func WithBotLogger(logger *zap.Logger) BotOption {
	return func(b *Bot) {
		b.logger = logger
	}
}

func WithDebounceWindow(window time.Duration) BotOption {
	return func(b *Bot) {
		b.window = window
	}
}

func NewBot(engine Engine, renderer Renderer, deliverer Deliverer, locker dialog.Locker, opts ...BotOption) *Bot {
	b := &Bot{
		engine:    engine,
		renderer:  renderer,
		deliverer: deliverer,
		locker:    locker,
		logger:    zap.NewNop(),
		window:    debounce.DefaultWindow,
		names:     make(map[int64]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.debouncer = debounce.New(b.window, b.process)
	return b
}

// Receive buffers a typed fragment from user.
func (b *Bot) Receive(user dialog.User, text string) {
	b.remember(user)
	b.debouncer.Push(user.ID, text)
}

// ReceiveNow processes text without waiting for more fragments, after
// whatever was already buffered for user.
func (b *Bot) ReceiveNow(user dialog.User, text string) {
	b.remember(user)
	b.debouncer.Immediate(user.ID, text)
}

// Stop processes everything still buffered and waits for it.
func (b *Bot) Stop() {
	b.debouncer.Stop()
}

func (b *Bot) remember(user dialog.User) {
	if user.Name == "" {
		return
	}
	b.namesMu.Lock()
	b.names[user.ID] = user.Name
	b.namesMu.Unlock()
}

func (b *Bot) user(chatID int64) dialog.User {
	b.namesMu.RLock()
	defer b.namesMu.RUnlock()
	return dialog.User{ID: chatID, Name: b.names[chatID]}
}

func (b *Bot) process(chatID int64, text string) {
	var (
		ctx     = context.Background()
		logger  = b.logger.With(zap.Int64("chat_id", chatID))
		user    = b.user(chatID)
		started = time.Now()
	)
	defer logger.Sync()

	if b.observer != nil {
		b.observer.MessageReceived()
	}

	err := b.locker.WithLock(ctx, "updates:"+strconv.FormatInt(chatID, 10), func(ctx context.Context) error {
		answer, err := b.engine.Handle(ctx, user, text)
		if err != nil {
			logger.Error("failed to handle message",
				zap.String("text", text),
				zap.Error(err),
			)
			answer = dialog.Answer{dialog.Plain(apologyText)}
		}

		for _, action := range b.renderer.Render(ctx, user, answer) {
			if err := b.deliverer.Deliver(ctx, chatID, action); err != nil {
				logger.Warn("failed to deliver action",
					zap.String("action", render.Name(action)),
					zap.Error(err),
				)
				if b.observer != nil {
					b.observer.DeliveryFailed(render.Name(action))
				}
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to lock chat", zap.Error(err))
		return
	}

	if b.observer != nil {
		b.observer.TransitionDone(started)
	}
}
