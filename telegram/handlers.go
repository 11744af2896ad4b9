package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"weatherbot/dialog"
	"weatherbot/state"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"go.uber.org/zap"
)

// AddTelegramHandlers wires bot into the dispatcher and publishes the
// command list of registry.
func AddTelegramHandlers(bot *Bot, registry *dialog.Registry) {
	var (
		cfg        = state.State.Config
		dispatcher = state.State.TelegramDispatcher
	)

	dispatcher.AddHandlerToGroup(handlers.NewCommand("status", StatusCommandHandler),
		DispatcherCommandHandlerGroup)

	dispatcher.AddHandlerToGroup(handlers.NewCallback(callbackquery.All, bot.CallbackHandler),
		DispatcherCallbackHandlerGroup)

	dispatcher.AddHandlerToGroup(handlers.NewMessage(
		func(msg *gotgbot.Message) bool {
			return messageText(msg) != ""
		}, bot.MessageHandler,
	), DispatcherMessageHandlerGroup)

	if !cfg.Telegram.RemoveBotCommands {
		state.State.TelegramCommands = append(state.State.TelegramCommands, BotCommands(registry)...)
	}
}

func (b *Bot) MessageHandler(_ *gotgbot.Bot, c *ext.Context) error {
	var (
		msg  = c.EffectiveMessage
		user = userFromContext(c)
		text = messageText(msg)
	)

	if isForwarded(msg) {
		b.ReceiveNow(user, text)
	} else {
		b.Receive(user, text)
	}
	return nil
}

func (b *Bot) CallbackHandler(tb *gotgbot.Bot, c *ext.Context) error {
	cq := c.CallbackQuery
	if _, err := cq.Answer(tb, nil); err != nil {
		b.logger.Debug("failed to answer callback query",
			zap.String("callback_id", cq.Id),
			zap.Error(err),
		)
	}
	if cq.Data == "" || c.EffectiveChat == nil {
		return nil
	}

	b.ReceiveNow(userFromContext(c), cq.Data)
	return nil
}

// StatusCommandHandler answers the owner with uptime and version.
func StatusCommandHandler(b *gotgbot.Bot, c *ext.Context) error {
	if c.EffectiveUser == nil || c.EffectiveUser.Id != state.State.Config.Telegram.OwnerID {
		return ext.ContinueGroups
	}

	var (
		startTime     = state.State.StartTime
		localLocation = state.State.LocalLocation
		timeFormat    = state.State.Config.TimeFormat
		upTime        = time.Now().UTC().Sub(startTime).Round(time.Second)
	)

	statusMessage := "Hi! The bot is up and running\n\n"
	statusMessage += fmt.Sprintf("• <b>Up Since</b>: %s [ %s ]\n",
		startTime.In(localLocation).Format(timeFormat),
		upTime.String(),
	)
	statusMessage += fmt.Sprintf("• <b>Version</b>: <code>%s</code>\n", state.WEATHERBOT_VERSION)
	if len(state.State.TelegramCommands) > 0 {
		statusMessage += "• <b>Commands</b>:\n"
		for _, command := range state.State.TelegramCommands {
			statusMessage += fmt.Sprintf("  - <code>/%s</code> : %s\n",
				command.Command, html.EscapeString(command.Description))
		}
	}

	_, err := c.EffectiveMessage.Reply(b, statusMessage, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	if err != nil {
		return err
	}
	return ext.EndGroups
}

func messageText(msg *gotgbot.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// isForwarded reports messages that arrive whole and skip the debouncer.
func isForwarded(msg *gotgbot.Message) bool {
	if msg.IsAutomaticForward {
		return true
	}
	return msg.ForwardOrigin != nil && msg.ForwardOrigin.GetType() == "channel"
}

func userFromContext(c *ext.Context) dialog.User {
	user := dialog.User{ID: c.EffectiveChat.Id}
	if c.EffectiveUser != nil {
		user.Name = strings.TrimSpace(c.EffectiveUser.FirstName)
	}
	return user
}
