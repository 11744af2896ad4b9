package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"weatherbot/dialog"
	"weatherbot/render"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplyMarkupInline(t *testing.T) {
	markup := replyMarkup(&render.Layout{Inline: [][]dialog.Button{
		{{Label: "🔝 Main menu", Data: "Main menu"}, {Label: "Docs", URL: "https://example.com"}},
		{{Label: "Exit"}},
	}}, zap.NewNop())

	inline, ok := markup.(gotgbot.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, inline.InlineKeyboard, 2)
	assert.Equal(t, gotgbot.InlineKeyboardButton{Text: "🔝 Main menu", CallbackData: "Main menu"}, inline.InlineKeyboard[0][0])
	assert.Equal(t, gotgbot.InlineKeyboardButton{Text: "Docs", Url: "https://example.com"}, inline.InlineKeyboard[0][1])
	assert.Equal(t, "Exit", inline.InlineKeyboard[1][0].CallbackData)
}

func TestReplyMarkupReply(t *testing.T) {
	markup := replyMarkup(&render.Layout{Reply: [][]string{{"Yes", "No"}}}, zap.NewNop())

	reply, ok := markup.(gotgbot.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, reply.OneTimeKeyboard)
	assert.True(t, reply.ResizeKeyboard)
	assert.Equal(t, [][]gotgbot.KeyboardButton{{{Text: "Yes"}, {Text: "No"}}}, reply.Keyboard)
}

func TestReplyMarkupNone(t *testing.T) {
	assert.Nil(t, replyMarkup(nil, zap.NewNop()))
	assert.Nil(t, replyMarkup(&render.Layout{}, zap.NewNop()))
}

func TestCallbackDataIsCapped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	button := inlineButton(dialog.Button{Label: "x", Data: dialog.CommandWeatherGet + " " + strings.Repeat("щ", 40)}, zap.New(core))

	assert.LessOrEqual(t, len(button.CallbackData), maxCallbackData)
	assert.True(t, utf8.ValidString(button.CallbackData))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "callback data too long, truncating", logs.All()[0].Message)

	button = inlineButton(dialog.Button{Label: "x", Data: "flow_weather_get moscow"}, zap.New(core))
	assert.Equal(t, "flow_weather_get moscow", button.CallbackData)
	assert.Equal(t, 1, logs.Len())
}

func TestBotCommands(t *testing.T) {
	commands := BotCommands(dialog.MustNewRegistry(dialog.DefaultCommands()...))

	names := make(map[string]string)
	for _, command := range commands {
		assert.Regexp(t, botCommandName, command.Command)
		names[command.Command] = command.Description
	}
	assert.Contains(t, names, "start")
	assert.Contains(t, names, "help")
	assert.Contains(t, names, "menu")
	assert.Contains(t, names, "exit")
	assert.Contains(t, names, "flow_weather_get")
	assert.Len(t, commands, len(dialog.DefaultCommands()))
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "hello", messageText(&gotgbot.Message{Text: "hello"}))
	assert.Equal(t, "caption", messageText(&gotgbot.Message{Caption: "caption"}))
	assert.Empty(t, messageText(nil))
	assert.True(t, isForwarded(&gotgbot.Message{IsAutomaticForward: true}))
	assert.False(t, isForwarded(&gotgbot.Message{Text: "typed"}))
}
