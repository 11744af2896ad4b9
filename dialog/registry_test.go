package dialog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	r := MustNewRegistry(DefaultCommands()...)

	tests := []struct {
		name    string
		input   string
		command string
		param   string
		ok      bool
	}{
		{name: "command id with parameter", input: "flow_weather_get moscow", command: CommandWeatherGet, param: "moscow", ok: true},
		{name: "command id alone", input: "flow_weather_get", command: CommandWeatherGet, ok: true},
		{name: "free text", input: "hello world", ok: false},
		{name: "single unknown word", input: "moscow", ok: false},
		{name: "empty", input: "   ", ok: false},
		{name: "synonym any case", input: "  HeLP ", command: CommandHelp, ok: true},
		{name: "slash command", input: "/start", command: CommandStart, ok: true},
		{name: "addressed slash command", input: "/start@WeatherBot", command: CommandStart, ok: true},
		{name: "decorated label", input: "🔝 Main menu", command: CommandMainMenu, ok: true},
		{name: "multi rune icon", input: "ℹ️ About me", command: CommandUserGet, ok: true},
		{name: "unknown emoji", input: "🙂 help", command: CommandHelp, ok: true},
		{name: "multi word synonym with parameter", input: "main menu extra", command: CommandMainMenu, param: "extra", ok: true},
		{name: "russian synonym", input: "Прогноз погоды", command: CommandWeatherMenu, ok: true},
		{name: "exit", input: "Cancel", command: CommandExit, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, param, ok := r.Resolve(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.command, command)
			assert.Equal(t, tt.param, param)
		})
	}
}

func TestResolveEverySynonym(t *testing.T) {
	r := MustNewRegistry(DefaultCommands()...)

	for _, command := range DefaultCommands() {
		for _, phrase := range append([]string{command.ID}, command.Synonyms...) {
			inputs := []string{phrase, strings.ToUpper(phrase), "/" + phrase}
			if command.Icon != "" {
				inputs = append(inputs, command.Icon+" "+phrase)
			}
			for _, input := range inputs {
				id, param, ok := r.Resolve(input)
				assert.True(t, ok, input)
				assert.Equal(t, command.ID, id, input)
				assert.Empty(t, param, input)
			}
		}
	}
}

func TestNewRegistryRejectsCollisions(t *testing.T) {
	_, err := NewRegistry(
		Command{ID: "first", Synonyms: []string{"go"}},
		Command{ID: "second", Synonyms: []string{"GO "}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"go"`)

	_, err = NewRegistry(Command{ID: ""})
	assert.Error(t, err)

	_, err = NewRegistry(Command{ID: "blank", Synonyms: []string{"  "}})
	assert.Error(t, err)
}

func TestNewRegistryAllowsRepeatedOwnSynonym(t *testing.T) {
	r, err := NewRegistry(Command{ID: "help", Synonyms: []string{"help", "HELP"}})
	require.NoError(t, err)
	assert.Len(t, r.Commands(), 1)
}

func TestRegistryIsExit(t *testing.T) {
	r := MustNewRegistry(DefaultCommands()...)

	assert.True(t, r.IsExit("exit"))
	assert.True(t, r.IsExit("🔚 Exit"))
	assert.True(t, r.IsExit("Выход"))
	assert.False(t, r.IsExit("help"))
	assert.False(t, r.IsExit("moscow"))
}

func TestRegistryDecorate(t *testing.T) {
	r := MustNewRegistry(DefaultCommands()...)

	assert.Equal(t, "🔝 Main menu", r.Decorate("Main menu"))
	assert.Equal(t, "🌦 Weather forecast", r.Decorate("Weather forecast"))
	assert.Equal(t, "Enter city manually", r.Decorate("Enter city manually"))
	assert.Equal(t, "Moscow", r.Decorate("Moscow"))
}

func TestRegistryLookup(t *testing.T) {
	r := MustNewRegistry(DefaultCommands()...)

	command, ok := r.Lookup("Recent requests")
	require.True(t, ok)
	assert.Equal(t, CommandLogGet, command.ID)

	_, ok = r.Lookup("nothing")
	assert.False(t, ok)
}

func TestFlowResumeKeepsCursorOnRejectedReply(t *testing.T) {
	flow := &Flow{
		ID: "pick",
		Steps: []Step{
			AskFromList(func(_ context.Context, c *Call) (Answer, error) {
				c.Offer("Red", "Green")
				return Answer{Plain("Pick a colour")}, nil
			}, func(_ context.Context, c *Call, _ string) (int, error) {
				c.Data["picked"], _ = c.Choice()
				return Done, nil
			}),
		},
	}
	c := &Call{Data: map[string]string{}}

	_, err := flow.enter(context.Background(), c, 0)
	require.NoError(t, err)

	answer, next, err := flow.resume(context.Background(), c, 0, "blue", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
	assert.Equal(t, Answer{Plain("Please type one of the options or press a button.")}, answer)

	_, next, err = flow.resume(context.Background(), c, 0, " GREEN ", nil)
	require.NoError(t, err)
	assert.Equal(t, Done, next)
	assert.Equal(t, "GREEN", c.Data["picked"])
	_, index := c.Choice()
	assert.Equal(t, 1, index)
}

func TestFlowResumeExitPhraseReturns(t *testing.T) {
	flow := &Flow{
		ID: "ask",
		Steps: []Step{
			AskUntil(func(context.Context, *Call) (Answer, error) {
				return Answer{Plain("Say something long")}, nil
			}, func(_ context.Context, _ *Call, reply string) (bool, error) {
				return len(reply) > 10, nil
			}, nil, Goto(0)),
		},
	}
	c := &Call{Data: map[string]string{}}

	_, next, err := flow.resume(context.Background(), c, 0, "stop", func(s string) bool { return s == "stop" })
	require.NoError(t, err)
	assert.Equal(t, Done, next)

	_, _, err = flow.resume(context.Background(), c, 3, "x", nil)
	assert.Error(t, err)
}
