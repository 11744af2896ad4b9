package telegram

import (
	"context"
	"time"

	"weatherbot/dialog"
	"weatherbot/render"
)

const (
	DispatcherCommandHandlerGroup  = 0
	DispatcherCallbackHandlerGroup = 1
	DispatcherMessageHandlerGroup  = 2
)

// Engine runs one conversation transition for a logical message.
type Engine interface {
	Handle(ctx context.Context, user dialog.User, text string) (dialog.Answer, error)
}

// Renderer turns an answer into the actions to deliver.
type Renderer interface {
	Render(ctx context.Context, user dialog.User, answer dialog.Answer) []render.Action
}

// Deliverer performs one presentation action in a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, action render.Action) error
}

// Observer is told about received messages, delivery failures and how long
// a transition took. *metrics.Metrics implements it.
type Observer interface {
	MessageReceived()
	DeliveryFailed(action string)
	TransitionDone(started time.Time)
}
