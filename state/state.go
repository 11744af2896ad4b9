package state

import (
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const WEATHERBOT_VERSION = "1.4.0"

type state struct {
	Config *Config
	Logger *zap.Logger

	Database *gorm.DB

	TelegramBot        *gotgbot.Bot
	TelegramDispatcher *ext.Dispatcher
	TelegramUpdater    *ext.Updater
	TelegramCommands   []gotgbot.BotCommand

	LocalLocation *time.Location
	StartTime     time.Time
}

var State state

func init() {
	State.Config = &Config{}
	State.Logger = zap.NewNop()
	State.LocalLocation = time.UTC
}
