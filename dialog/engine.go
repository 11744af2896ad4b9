package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Engine routes each user's input either to a freshly started flow or to the
// flow that user left suspended.
type Engine struct {
	registry *Registry
	flows    map[string]*Flow
	store    Store
	locker   Locker
	hooks    Hooks
	logger   *zap.Logger
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithHooks(hooks Hooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine checks that every registered command and the default flow have a
// flow behind them.
func NewEngine(registry *Registry, flows []*Flow, store Store, locker Locker, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		registry: registry,
		flows:    make(map[string]*Flow, len(flows)),
		store:    store,
		locker:   locker,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, flow := range flows {
		if len(flow.Steps) == 0 {
			return nil, fmt.Errorf("flow %s has no steps", flow.ID)
		}
		if _, exists := e.flows[flow.ID]; exists {
			return nil, fmt.Errorf("flow %s registered twice", flow.ID)
		}
		e.flows[flow.ID] = flow
	}

	var missing []error
	for _, command := range registry.Commands() {
		if _, found := e.flows[command.ID]; !found {
			missing = append(missing, fmt.Errorf("command %s: %w", command.ID, ErrUnknownCommand))
		}
	}
	if _, found := e.flows[FlowDefault]; !found {
		missing = append(missing, fmt.Errorf("default flow %s: %w", FlowDefault, ErrUnknownCommand))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Handle processes one logical message of user.
func (e *Engine) Handle(ctx context.Context, user User, text string) (Answer, error) {
	if command, param, ok := e.registry.Resolve(text); ok {
		return e.Start(ctx, user, command, param)
	}

	var answer Answer
	err := e.locker.WithLock(ctx, lockKey(user.ID), func(ctx context.Context) error {
		conversation, err := e.store.Load(ctx, user.ID)
		if errors.Is(err, ErrNoConversation) {
			answer, err = e.start(ctx, user, FlowDefault, "")
			return err
		}
		if errors.Is(err, ErrCorruptConversation) {
			e.logger.Warn("dropping undecodable conversation",
				zap.Int64("chat_id", user.ID),
				zap.Error(err),
			)
			if err := e.store.Delete(ctx, user.ID); err != nil {
				return fmt.Errorf("failed to drop corrupt conversation: %w", err)
			}
			answer, err = e.start(ctx, user, FlowDefault, "")
			return err
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}
		answer, err = e.resume(ctx, user, conversation, text)
		return err
	})
	return answer, err
}

// Start abandons whatever flow user had suspended and starts command.
func (e *Engine) Start(ctx context.Context, user User, command, param string) (Answer, error) {
	if _, found := e.flows[command]; !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}

	var answer Answer
	err := e.locker.WithLock(ctx, lockKey(user.ID), func(ctx context.Context) error {
		if command == CommandStart {
			if err := e.store.Delete(ctx, user.ID); err != nil {
				return fmt.Errorf("failed to reset conversation: %w", err)
			}
		}
		var err error
		answer, err = e.start(ctx, user, command, param)
		return err
	})
	return answer, err
}

func (e *Engine) start(ctx context.Context, user User, id, param string) (Answer, error) {
	flow, found := e.flows[id]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}

	c := &Call{User: user, Param: param, Data: make(map[string]string)}
	answer, err := flow.enter(ctx, c, 0)
	if err != nil {
		return e.fail(ctx, user, id, err)
	}

	conversation := &Conversation{
		Flow:    id,
		Step:    0,
		Param:   param,
		Data:    c.Data,
		Options: c.Options,
		Started: e.now().UTC(),
	}
	if err := e.store.Save(ctx, user.ID, conversation); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	e.logger.Debug("started flow",
		zap.Int64("chat_id", user.ID),
		zap.String("flow", id),
		zap.String("param", param),
	)
	if e.hooks.OnFlowStart != nil {
		e.hooks.OnFlowStart(user, id)
	}
	return answer, nil
}

func (e *Engine) resume(ctx context.Context, user User, conversation *Conversation, text string) (Answer, error) {
	flow, found := e.flows[conversation.Flow]
	if !found {
		e.logger.Warn("dropping conversation of unknown flow",
			zap.Int64("chat_id", user.ID),
			zap.String("flow", conversation.Flow),
		)
		return e.start(ctx, user, FlowDefault, "")
	}

	c := conversation.call(user)
	answer, next, err := flow.resume(ctx, c, conversation.Step, text, e.registry.IsExit)
	if err != nil {
		return e.fail(ctx, user, flow.ID, err)
	}

	if next == Done {
		if e.hooks.OnFlowComplete != nil {
			e.hooks.OnFlowComplete(user, flow.ID)
		}
		if err := e.store.Delete(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to close conversation: %w", err)
		}
		return e.start(ctx, user, FlowDefault, "")
	}

	conversation.Step = next
	conversation.Data = c.Data
	conversation.Options = c.Options
	if err := e.store.Save(ctx, user.ID, conversation); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	return answer, nil
}

// fail turns a collaborator failure inside a flow into a message for the
// user followed by the default menu.
func (e *Engine) fail(ctx context.Context, user User, id string, cause error) (Answer, error) {
	e.logger.Warn("flow step failed",
		zap.Int64("chat_id", user.ID),
		zap.String("flow", id),
		zap.Error(cause),
	)
	if e.hooks.OnFlowError != nil {
		e.hooks.OnFlowError(user, id, cause)
	}

	message := "unexpected error"
	var failure *Failure
	if errors.As(cause, &failure) {
		message = failure.Message
	}
	answer := Answer{Plain("Sorry, something went wrong: " + message)}
	if id == FlowDefault {
		if err := e.store.Delete(ctx, user.ID); err != nil {
			return nil, errors.Join(cause, err)
		}
		return answer, nil
	}

	fallback, err := e.start(ctx, user, FlowDefault, "")
	if err != nil {
		return nil, err
	}
	return append(answer, fallback...), nil
}

func lockKey(userID int64) string {
	return "chat:" + strconv.FormatInt(userID, 10)
}
