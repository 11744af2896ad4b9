package state

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Path         string `yaml:"-"`
	TimeZone     string `yaml:"time_zone"`
	TimeFormat   string `yaml:"time_format"`
	DebugMode    bool   `yaml:"debug_mode"`
	SilentDbLogs bool   `yaml:"silent_db_logs"`
	Proxy        string `yaml:"proxy"`

	Telegram struct {
		BotToken           string        `yaml:"bot_token"`
		ApiUrl             string        `yaml:"api_url"`
		OwnerID            int64         `yaml:"owner_id"`
		LogoPath           string        `yaml:"logo_path"`
		SkipStartupMessage bool          `yaml:"skip_startup_message"`
		RemoveBotCommands  bool          `yaml:"remove_bot_commands"`
		DebounceWindow     time.Duration `yaml:"debounce_window"`
		PollingBackoff     time.Duration `yaml:"polling_backoff"`
		MaxRoutines        int           `yaml:"max_routines"`

		// Deprecated: use the top level proxy option.
		Proxy string `yaml:"proxy,omitempty"`
	} `yaml:"telegram"`

	Dialog struct {
		ButtonWidth     int `yaml:"button_width"`
		ScalePenalty    int `yaml:"scale_penalty"`
		MaxSelfCommands int `yaml:"max_self_commands"`
		LogLimit        int `yaml:"log_limit"`
	} `yaml:"dialog"`

	Weather struct {
		BaseURL   string        `yaml:"base_url"`
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
		Retries   int           `yaml:"retries"`
		MaxDays   int           `yaml:"max_days"`
	} `yaml:"weather"`

	Redis struct {
		Address    string        `yaml:"address"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		Prefix     string        `yaml:"prefix"`
		Channel    string        `yaml:"channel"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		LockTTL    time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`

	Metrics struct {
		Address string `yaml:"address"`
	} `yaml:"metrics"`

	Database map[string]string `yaml:"database"`
}

func (cfg *Config) LoadConfig() error {
	configFilePath := cfg.Path

	if _, err := os.Stat(configFilePath); err != nil {
		return fmt.Errorf("error with config file path : %s", err)
	}

	// values in .env never override the real environment
	for _, envFile := range []string{filepath.Join(filepath.Dir(configFilePath), ".env"), ".env"} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("could not load env file %s : %s", envFile, err)
			}
		}
	}

	configFile, err := os.Open(configFilePath)
	if err != nil {
		return fmt.Errorf("could not open config file : %s", err)
	}
	defer configFile.Close()

	configBody, err := io.ReadAll(configFile)
	if err != nil {
		return fmt.Errorf("could not read config file : %s", err)
	}

	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(configBody))), cfg)
	if err != nil {
		return fmt.Errorf("could not parse config file : %s", err)
	}

	deprecatedOptions := GetDeprecatedConfigOptions(cfg)
	if deprecatedOptions != nil {
		fmt.Println("The following options have been deprecated/removed:")
		for num, opt := range deprecatedOptions {
			fmt.Printf("%d. %s: %s\n", num+1, opt.Name, opt.Description)
		}
	}

	return nil
}

func (cfg *Config) SaveConfig() error {
	configBody, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not marshal config : %s", err)
	}

	if err = os.WriteFile(cfg.Path, configBody, 0o600); err != nil {
		return fmt.Errorf("could not write config file : %s", err)
	}

	return nil
}

func (cfg *Config) SetDefaults() {
	cfg.Path = "config.yaml"
	cfg.TimeZone = "UTC"
	cfg.TimeFormat = time.DateTime

	cfg.Telegram.ApiUrl = gotgbot.DefaultAPIURL
	cfg.Telegram.DebounceWindow = time.Second
	cfg.Telegram.PollingBackoff = 10 * time.Second
	cfg.Telegram.MaxRoutines = 50

	cfg.Dialog.ButtonWidth = 34
	cfg.Dialog.ScalePenalty = 5
	cfg.Dialog.MaxSelfCommands = 4
	cfg.Dialog.LogLimit = 10

	cfg.Weather.BaseURL = "https://yandex.ru/pogoda/ru"
	cfg.Weather.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	cfg.Weather.Timeout = 30 * time.Second
	cfg.Weather.Retries = 3
	cfg.Weather.MaxDays = 7

	cfg.Redis.Prefix = "weatherbot:"
	cfg.Redis.Channel = "weatherbot:external"
	cfg.Redis.SessionTTL = 30 * 24 * time.Hour
	cfg.Redis.LockTTL = 30 * time.Second

	cfg.Database = map[string]string{
		"type": "sqlite",
		"url":  "file:weatherbot.db?_foreign_keys=on",
	}
}
