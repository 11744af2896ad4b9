package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"weatherbot/dialog"
	"weatherbot/render"
	"weatherbot/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu     sync.Mutex
	inputs []string
	users  []dialog.User
	answer func(text string) (dialog.Answer, error)
}

func (f *fakeEngine) Handle(_ context.Context, user dialog.User, text string) (dialog.Answer, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, text)
	f.users = append(f.users, user)
	f.mu.Unlock()
	if f.answer != nil {
		return f.answer(text)
	}
	return dialog.Answer{dialog.Plain("echo: " + text)}, nil
}

func (f *fakeEngine) Start(context.Context, dialog.User, string, string) (dialog.Answer, error) {
	return nil, nil
}

type delivered struct {
	chatID int64
	action render.Action
}

type fakeDeliverer struct {
	mu   sync.Mutex
	got  []delivered
	fail map[string]bool
	sent chan struct{}
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{fail: map[string]bool{}, sent: make(chan struct{}, 64)}
}

func (f *fakeDeliverer) Deliver(_ context.Context, chatID int64, action render.Action) error {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		f.sent <- struct{}{}
	}()
	if f.fail[render.Name(action)] {
		return errors.New("Bad Request: chat not found")
	}
	f.got = append(f.got, delivered{chatID, action})
	return nil
}

func (f *fakeDeliverer) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.got {
		if text, ok := d.action.(render.SendText); ok {
			out = append(out, text.Text)
		}
	}
	return out
}

func (f *fakeDeliverer) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d actions delivered", i, n)
		}
	}
}

type fakeObserver struct {
	mu       sync.Mutex
	received int
	failed   []string
	done     int
}

func (f *fakeObserver) MessageReceived() {
	f.mu.Lock()
	f.received++
	f.mu.Unlock()
}

func (f *fakeObserver) DeliveryFailed(action string) {
	f.mu.Lock()
	f.failed = append(f.failed, action)
	f.mu.Unlock()
}

func (f *fakeObserver) TransitionDone(time.Time) {
	f.mu.Lock()
	f.done++
	f.mu.Unlock()
}

func newTestBot(engine *fakeEngine, deliverer *fakeDeliverer, opts ...BotOption) *Bot {
	registry := dialog.MustNewRegistry(dialog.DefaultCommands()...)
	pipeline := render.New(registry, engine)
	opts = append([]BotOption{WithDebounceWindow(30 * time.Millisecond)}, opts...)
	return NewBot(engine, pipeline, deliverer, session.NewLocker(), opts...)
}

func TestBotDebouncesFragments(t *testing.T) {
	engine := &fakeEngine{}
	deliverer := newFakeDeliverer()
	bot := newTestBot(engine, deliverer)
	defer bot.Stop()

	user := dialog.User{ID: 5, Name: "Anna"}
	bot.Receive(user, "Saint")
	bot.Receive(user, "Petersburg")

	deliverer.wait(t, 1)
	assert.Equal(t, []string{"Saint\nPetersburg"}, engine.inputs)
	assert.Equal(t, "Anna", engine.users[0].Name)
	assert.Equal(t, []string{"echo: Saint\nPetersburg"}, deliverer.texts())
}

func TestBotReceiveNowSkipsTheWindow(t *testing.T) {
	engine := &fakeEngine{}
	deliverer := newFakeDeliverer()
	bot := newTestBot(engine, deliverer, WithDebounceWindow(time.Hour))
	defer bot.Stop()

	user := dialog.User{ID: 5}
	bot.Receive(user, "typed")
	bot.ReceiveNow(user, "flow_help")

	assert.Equal(t, []string{"typed", "flow_help"}, engine.inputs)
	assert.Equal(t, []string{"echo: typed", "echo: flow_help"}, deliverer.texts())
}

func TestBotDeliversActionsInOrder(t *testing.T) {
	engine := &fakeEngine{answer: func(string) (dialog.Answer, error) {
		return dialog.Answer{
			dialog.Image{Data: []byte{1}, Name: "logo.png"},
			dialog.Plain("Choose:"),
			dialog.Labels("Yes", "No"),
			dialog.Document{Data: []byte{2}, Filename: "a.xlsx"},
		}, nil
	}}
	deliverer := newFakeDeliverer()
	bot := newTestBot(engine, deliverer)
	defer bot.Stop()

	bot.ReceiveNow(dialog.User{ID: 9}, "hi")

	require.Len(t, deliverer.got, 3)
	assert.Equal(t, "image", render.Name(deliverer.got[0].action))
	assert.Equal(t, "text", render.Name(deliverer.got[1].action))
	assert.Equal(t, "document", render.Name(deliverer.got[2].action))
	assert.Equal(t, int64(9), deliverer.got[2].chatID)
}

func TestBotApologisesOnEngineFailure(t *testing.T) {
	engine := &fakeEngine{answer: func(string) (dialog.Answer, error) {
		return nil, errors.New("redis: connection refused")
	}}
	deliverer := newFakeDeliverer()
	bot := newTestBot(engine, deliverer)
	defer bot.Stop()

	bot.ReceiveNow(dialog.User{ID: 1}, "hello")

	assert.Equal(t, []string{apologyText}, deliverer.texts())
}

func TestBotCountsDeliveryFailures(t *testing.T) {
	engine := &fakeEngine{answer: func(string) (dialog.Answer, error) {
		return dialog.Answer{
			dialog.Document{Data: []byte{2}, Filename: "a.xlsx"},
			dialog.Plain("after"),
		}, nil
	}}
	deliverer := newFakeDeliverer()
	deliverer.fail["document"] = true
	observer := &fakeObserver{}
	bot := newTestBot(engine, deliverer, WithObserver(observer))
	defer bot.Stop()

	bot.ReceiveNow(dialog.User{ID: 1}, "hello")

	assert.Equal(t, []string{"after"}, deliverer.texts())
	assert.Equal(t, 1, observer.received)
	assert.Equal(t, []string{"document"}, observer.failed)
	assert.Equal(t, 1, observer.done)
}
