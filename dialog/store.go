package dialog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoConversation is returned by a Store when the user has no active flow.
	ErrNoConversation = errors.New("no active conversation")
	// ErrUnknownCommand is returned when a flow is requested that the engine does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrCorruptConversation is returned by a Store for a record it cannot decode.
	ErrCorruptConversation = errors.New("corrupt conversation")
)

// Conversation is the persisted state of a suspended flow.
type Conversation struct {
	Flow    string            `json:"flow"`
	Step    int               `json:"step"`
	Param   string            `json:"param,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
	Options []string          `json:"options,omitempty"`
	Started time.Time         `json:"started"`
}

// Store keeps one Conversation per user.
type Store interface {
	Load(ctx context.Context, userID int64) (*Conversation, error)
	Save(ctx context.Context, userID int64, conversation *Conversation) error
	Delete(ctx context.Context, userID int64) error
}

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Failure is a step error whose Message is safe to show the user. Err keeps
// the underlying cause for the logs.
type Failure struct {
	Message string
	Err     error
}

func Fail(message string, err error) error {
	return &Failure{Message: message, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type Hooks struct {
	OnFlowStart    func(user User, flow string)
	OnFlowComplete func(user User, flow string)
	OnFlowError    func(user User, flow string, err error)
}

func (c *Conversation) call(user User) *Call {
	data := make(map[string]string, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	return &Call{
		User:    user,
		Param:   c.Param,
		Data:    data,
		Options: append([]string(nil), c.Options...),
	}
}
