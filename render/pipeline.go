package render

import (
	"context"
	"sync"
	"time"

	"weatherbot/dialog"

	"go.uber.org/zap"
)

// DefaultPrompt carries a keyboard that arrives without any text before it.
const DefaultPrompt = "Please choose a <b>menu item</b>:"

// Starter starts a flow on behalf of a CommandToSelf part.
type Starter interface {
	Start(ctx context.Context, user dialog.User, command, param string) (dialog.Answer, error)
}

// Sink receives CommandToExternal parts.
type Sink interface {
	Publish(ctx context.Context, userID int64, command, content string) error
}

// Scales reports the stored menu scale of a user.
type Scales interface {
	MenuScale(ctx context.Context, userID int64) (int, error)
}

// Pipeline turns flow answers into the ordered actions sent to a user.
type Pipeline struct {
	registry *dialog.Registry
	engine   Starter
	sink     Sink
	scales   Scales
	logger   *zap.Logger

	rowWidth       int
	scalePenalty   int
	maxDepth       int
	publishTimeout time.Duration

	publishing sync.WaitGroup
}

type Option func(*Pipeline)

func WithSink(sink Sink) Option {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

func WithScales(scales Scales) Option {
	return func(p *Pipeline) {
		p.scales = scales
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRowWidth sets the packing budget and the per-scale penalty.
func WithRowWidth(width, penalty int) Option {
	return func(p *Pipeline) {
		if width > 0 {
			p.rowWidth = width
		}
		if penalty >= 0 {
			p.scalePenalty = penalty
		}
	}
}

// WithMaxDepth bounds how many CommandToSelf expansions may nest.
func WithMaxDepth(depth int) Option {
	return func(p *Pipeline) {
		if depth > 0 {
			p.maxDepth = depth
		}
	}
}

func New(registry *dialog.Registry, engine Starter, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry:       registry,
		engine:         engine,
		logger:         zap.NewNop(),
		rowWidth:       DefaultRowWidth,
		scalePenalty:   DefaultScalePenalty,
		maxDepth:       4,
		publishTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render folds answer into actions. Text is held back so that a following
// keyboard can attach to it; images and documents flush it and go out on
// their own. Flows requested through CommandToSelf run afterwards and their
// actions are appended in order.
func (p *Pipeline) Render(ctx context.Context, user dialog.User, answer dialog.Answer) []Action {
	return p.render(ctx, user, answer, 0)
}

func (p *Pipeline) render(ctx context.Context, user dialog.User, answer dialog.Answer, depth int) []Action {
	var (
		actions []Action
		pending *SendText
		selfs   []dialog.CommandToSelf
		width   = -1
	)

	flush := func() {
		if pending != nil {
			actions = append(actions, *pending)
			pending = nil
		}
	}

	for _, part := range answer {
		switch part := part.(type) {
		case dialog.Text:
			if part.Text == "" {
				continue
			}
			flush()
			pending = &SendText{Text: part.Text, HTML: part.HTML}

		case dialog.Image:
			if len(part.Data) == 0 {
				continue
			}
			flush()
			actions = append(actions, SendImage{Data: part.Data, Name: part.Name})

		case dialog.Document:
			if len(part.Data) == 0 {
				continue
			}
			flush()
			actions = append(actions, SendDocument{Data: part.Data, Filename: part.Filename})

		case dialog.ButtonLayout:
			if width < 0 {
				width = p.width(ctx, user.ID)
			}
			layout := p.layout(part, width)
			if layout == nil {
				continue
			}
			if pending == nil {
				pending = &SendText{Text: DefaultPrompt, HTML: true}
			}
			pending.Layout = layout

		case dialog.CommandToExternal:
			p.publish(ctx, user.ID, part)

		case dialog.CommandToSelf:
			selfs = append(selfs, part)
		}
	}
	flush()

	for _, self := range selfs {
		if depth >= p.maxDepth {
			p.logger.Warn("dropping nested command, too deep",
				zap.Int64("chat_id", user.ID),
				zap.String("command", self.Command),
				zap.Int("depth", depth),
			)
			continue
		}
		next, err := p.engine.Start(ctx, user, self.Command, self.Param)
		if err != nil {
			p.logger.Error("failed to run command to self",
				zap.Int64("chat_id", user.ID),
				zap.String("command", self.Command),
				zap.Error(err),
			)
			continue
		}
		actions = append(actions, p.render(ctx, user, next, depth+1)...)
	}

	return actions
}

func (p *Pipeline) width(ctx context.Context, userID int64) int {
	scale := 0
	if p.scales != nil {
		var err error
		scale, err = p.scales.MenuScale(ctx, userID)
		if err != nil {
			p.logger.Debug("menu scale unavailable, using the full width",
				zap.Int64("chat_id", userID),
				zap.Error(err),
			)
			scale = 0
		}
	}
	return Budget(p.rowWidth, scale, p.scalePenalty)
}

func (p *Pipeline) layout(part dialog.ButtonLayout, width int) *Layout {
	switch part.Kind {
	case dialog.LayoutInline:
		if len(part.Buttons) == 0 {
			return nil
		}
		buttons := make([]dialog.Button, len(part.Buttons))
		for i, button := range part.Buttons {
			button.Label = p.registry.Decorate(button.Label)
			buttons[i] = button
		}
		return &Layout{Inline: Pack(buttons, width, p.registry.IsExit)}

	case dialog.LayoutInlineRow:
		if len(part.Buttons) == 0 {
			return nil
		}
		return &Layout{Inline: [][]dialog.Button{append([]dialog.Button(nil), part.Buttons...)}}

	case dialog.LayoutReply:
		var rows [][]string
		for _, row := range part.Rows {
			if len(row) > 0 {
				rows = append(rows, append([]string(nil), row...))
			}
		}
		if len(rows) == 0 {
			return nil
		}
		return &Layout{Reply: rows}
	}
	return nil
}

// publish forwards part without holding up rendering.
func (p *Pipeline) publish(ctx context.Context, userID int64, part dialog.CommandToExternal) {
	if p.sink == nil {
		p.logger.Debug("no external sink, dropping command",
			zap.Int64("chat_id", userID),
			zap.String("command", part.Command),
		)
		return
	}

	p.publishing.Add(1)
	go func() {
		defer p.publishing.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
		defer cancel()
		if err := p.sink.Publish(ctx, userID, part.Command, part.Content); err != nil {
			p.logger.Warn("failed to publish external command",
				zap.Int64("chat_id", userID),
				zap.String("command", part.Command),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight external publishes have finished.
func (p *Pipeline) Wait() {
	p.publishing.Wait()
}
