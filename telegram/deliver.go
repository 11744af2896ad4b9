package telegram

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"weatherbot/dialog"
	"weatherbot/render"
	"weatherbot/utils"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"go.uber.org/zap"
)

const (
	maxMessageLength = 4096
	maxCallbackData  = 64
)

var botCommandName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// BotDeliverer sends actions through the Bot API.
type BotDeliverer struct {
	bot    *gotgbot.Bot
	logger *zap.Logger
}

type DelivererOption func(*BotDeliverer)

func WithDelivererLogger(logger *zap.Logger) DelivererOption {
	return func(d *BotDeliverer) {
		d.logger = logger
	}
}

func NewBotDeliverer(bot *gotgbot.Bot, opts ...DelivererOption) *BotDeliverer {
	d := &BotDeliverer{bot: bot, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *BotDeliverer) Deliver(ctx context.Context, chatID int64, action render.Action) error {
	requestOpts := &gotgbot.RequestOpts{}
	if deadline, ok := ctx.Deadline(); ok {
		requestOpts.Timeout = time.Until(deadline)
	}

	switch action := action.(type) {
	case render.SendText:
		opts := &gotgbot.SendMessageOpts{RequestOpts: requestOpts}
		text := action.Text
		if action.HTML {
			opts.ParseMode = "HTML"
		} else if len([]rune(text)) > maxMessageLength {
			text = utils.SubString(text, 0, maxMessageLength-3) + "..."
		}
		if markup := replyMarkup(action.Layout, d.logger.With(zap.Int64("chat_id", chatID))); markup != nil {
			opts.ReplyMarkup = markup
		}
		_, err := d.bot.SendMessage(chatID, text, opts)
		return err

	case render.SendImage:
		_, err := d.bot.SendPhoto(chatID,
			gotgbot.InputFileByReader(action.Name, bytes.NewReader(action.Data)),
			&gotgbot.SendPhotoOpts{RequestOpts: requestOpts})
		return err

	case render.SendDocument:
		_, err := d.bot.SendDocument(chatID,
			gotgbot.InputFileByReader(action.Filename, bytes.NewReader(action.Data)),
			&gotgbot.SendDocumentOpts{RequestOpts: requestOpts})
		return err
	}

	return fmt.Errorf("unsupported action %T", action)
}

// replyMarkup converts a rendered layout. Inline rows win over reply rows.
func replyMarkup(layout *render.Layout, logger *zap.Logger) gotgbot.ReplyMarkup {
	if layout == nil {
		return nil
	}

	if len(layout.Inline) > 0 {
		keyboard := make([][]gotgbot.InlineKeyboardButton, 0, len(layout.Inline))
		for _, row := range layout.Inline {
			buttons := make([]gotgbot.InlineKeyboardButton, 0, len(row))
			for _, button := range row {
				buttons = append(buttons, inlineButton(button, logger))
			}
			keyboard = append(keyboard, buttons)
		}
		return gotgbot.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}

	if len(layout.Reply) > 0 {
		keyboard := make([][]gotgbot.KeyboardButton, 0, len(layout.Reply))
		for _, row := range layout.Reply {
			buttons := make([]gotgbot.KeyboardButton, 0, len(row))
			for _, label := range row {
				buttons = append(buttons, gotgbot.KeyboardButton{Text: label})
			}
			keyboard = append(keyboard, buttons)
		}
		return gotgbot.ReplyKeyboardMarkup{
			Keyboard:        keyboard,
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		}
	}

	return nil
}

func inlineButton(button dialog.Button, logger *zap.Logger) gotgbot.InlineKeyboardButton {
	if button.URL != "" {
		return gotgbot.InlineKeyboardButton{Text: button.Label, Url: button.URL}
	}
	data := button.Data
	if data == "" {
		data = button.Label
	}
	// Telegram rejects longer callback data outright
	if len(data) > maxCallbackData {
		logger.Warn("callback data too long, truncating",
			zap.String("label", button.Label),
			zap.String("data", data),
			zap.Int("limit", maxCallbackData),
		)
		data = truncateBytes(data, maxCallbackData)
	}
	return gotgbot.InlineKeyboardButton{Text: button.Label, CallbackData: data}
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}

// BotCommands lists the registry as Telegram bot commands. A command is
// published under its first synonym that Telegram accepts as a command
// name, or under its id.
func BotCommands(registry *dialog.Registry) []gotgbot.BotCommand {
	var commands []gotgbot.BotCommand
	for _, command := range registry.Commands() {
		if command.Description == "" {
			continue
		}
		name := command.ID
		for _, synonym := range command.Synonyms {
			if botCommandName.MatchString(synonym) {
				name = synonym
				break
			}
		}
		commands = append(commands, gotgbot.BotCommand{
			Command:     name,
			Description: command.Description,
		})
	}
	return commands
}

// RegisterBotCommands replaces the command list of b; no commands clears it.
func RegisterBotCommands(b *gotgbot.Bot, commands ...gotgbot.BotCommand) error {
	if len(commands) == 0 {
		_, err := b.DeleteMyCommands(nil)
		return err
	}
	_, err := b.SetMyCommands(commands, nil)
	return err
}
