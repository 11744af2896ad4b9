package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Done is the cursor value of a flow that has returned.
const Done = -1

const (
	dataChoice      = "choice"
	dataChoiceIndex = "choice_index"
)

type User struct {
	ID   int64
	Name string
}

// Call is the per-conversation scope a step runs in. Data and Options
// survive between suspensions.
type Call struct {
	User    User
	Param   string
	Data    map[string]string
	Options []string
}

// Offer records the flattened, lower-cased options a list question accepts.
func (c *Call) Offer(labels ...string) {
	c.Options = c.Options[:0]
	for _, label := range labels {
		c.Options = append(c.Options, normalize(label))
	}
}

// Choice returns the option accepted by the last list question.
func (c *Call) Choice() (string, int) {
	index, err := strconv.Atoi(c.Data[dataChoiceIndex])
	if err != nil {
		return c.Data[dataChoice], -1
	}
	return c.Data[dataChoice], index
}

type (
	PromptFunc  func(ctx context.Context, c *Call) (Answer, error)
	AcceptFunc  func(ctx context.Context, c *Call, reply string) (bool, error)
	ClarifyFunc func(c *Call, reply string) Answer
	NextFunc    func(ctx context.Context, c *Call, reply string) (int, error)
)

// Step is one suspension point: its prompt is shown, then the next reply is
// validated by Accept and handed to Next, which picks the following step.
type Step struct {
	Prompt  PromptFunc
	Accept  AcceptFunc
	Clarify ClarifyFunc
	Next    NextFunc
}

type Flow struct {
	ID    string
	Steps []Step
}

// Ask suspends with prompt and accepts any reply.
func Ask(prompt PromptFunc, next NextFunc) Step {
	return Step{Prompt: prompt, Next: next}
}

// AskUntil re-asks with clarify until accept holds.
func AskUntil(prompt PromptFunc, accept AcceptFunc, clarify ClarifyFunc, next NextFunc) Step {
	return Step{Prompt: prompt, Accept: accept, Clarify: clarify, Next: next}
}

// AskFromList accepts only replies matching one of the options the prompt
// offered through Call.Offer. The match is available from Call.Choice.
func AskFromList(prompt PromptFunc, next NextFunc) Step {
	return AskUntil(prompt, acceptOption, clarifyOption, next)
}

func Goto(step int) NextFunc {
	return func(context.Context, *Call, string) (int, error) {
		return step, nil
	}
}

func acceptOption(_ context.Context, c *Call, reply string) (bool, error) {
	index := slices.Index(c.Options, normalize(reply))
	if index < 0 {
		return false, nil
	}
	c.Data[dataChoice] = strings.TrimSpace(reply)
	c.Data[dataChoiceIndex] = strconv.Itoa(index)
	return true, nil
}

func clarifyOption(*Call, string) Answer {
	return Answer{Plain("Please type one of the options or press a button.")}
}

func (f *Flow) enter(ctx context.Context, c *Call, cursor int) (Answer, error) {
	if cursor < 0 || cursor >= len(f.Steps) {
		return nil, fmt.Errorf("flow %s has no step %d", f.ID, cursor)
	}
	c.Options = nil
	return f.Steps[cursor].Prompt(ctx, c)
}

// resume delivers reply to the step at cursor. It returns the next prompt and
// cursor, or Done once the flow has returned. A rejected reply keeps cursor.
func (f *Flow) resume(ctx context.Context, c *Call, cursor int, reply string, exit func(string) bool) (Answer, int, error) {
	if cursor < 0 || cursor >= len(f.Steps) {
		return nil, Done, fmt.Errorf("flow %s has no step %d", f.ID, cursor)
	}
	step := f.Steps[cursor]

	if step.Accept != nil {
		if exit != nil && exit(reply) {
			return nil, Done, nil
		}
		ok, err := step.Accept(ctx, c, reply)
		if err != nil {
			return nil, cursor, err
		}
		if !ok {
			if step.Clarify == nil {
				return clarifyOption(c, reply), cursor, nil
			}
			return step.Clarify(c, reply), cursor, nil
		}
	}

	next := Done
	if step.Next != nil {
		var err error
		next, err = step.Next(ctx, c, reply)
		if err != nil {
			return nil, cursor, err
		}
	}
	if next == Done {
		return nil, Done, nil
	}

	answer, err := f.enter(ctx, c, next)
	return answer, next, err
}
