package dialog

import (
	"fmt"
	"sort"
	"strings"
)

const (
	CommandStart       = "flow_start"
	CommandHelp        = "flow_help"
	CommandMainMenu    = "flow_main_menu"
	CommandUserGet     = "flow_user_get"
	CommandWeatherMenu = "flow_weather_menu"
	CommandWeatherGet  = "flow_weather_get"
	CommandLogGet      = "flow_log_get"
	CommandCityGet     = "flow_city_get"
	CommandCityEnter   = "flow_city_enter"
	CommandExit        = "flow_exit"

	// FlowDefault is not reachable by name; the engine falls back to it.
	FlowDefault = "flow_default"
)

// Command describes one canonical action of the bot.
type Command struct {
	ID          string
	Synonyms    []string
	Description string
	Icon        string
	Exit        bool
}

// Registry is the fixed, read-only set of commands. It is built once at
// startup and is safe for concurrent use afterwards.
type Registry struct {
	commands []Command
	index    map[string]int
	icons    *strings.Replacer
}

func NewRegistry(commands ...Command) (*Registry, error) {
	r := &Registry{
		commands: make([]Command, 0, len(commands)),
		index:    make(map[string]int),
	}

	var icons []string
	for _, command := range commands {
		if command.ID == "" {
			return nil, fmt.Errorf("command with empty id")
		}
		position := len(r.commands)
		for _, key := range append([]string{command.ID}, command.Synonyms...) {
			key = normalize(key)
			if key == "" {
				return nil, fmt.Errorf("command %s has an empty synonym", command.ID)
			}
			if other, found := r.index[key]; found {
				if other == position {
					continue
				}
				return nil, fmt.Errorf("phrase %q of command %s collides with command %s",
					key, command.ID, r.commands[other].ID)
			}
			r.index[key] = position
		}
		if command.Icon != "" {
			icons = append(icons, command.Icon)
		}
		r.commands = append(r.commands, command)
	}

	// longest glyph first so that "ℹ️" is not left behind as a bare selector
	sort.SliceStable(icons, func(i, j int) bool { return len(icons[i]) > len(icons[j]) })
	pairs := make([]string, 0, len(icons)*2)
	for _, icon := range icons {
		pairs = append(pairs, icon, "")
	}
	r.icons = strings.NewReplacer(pairs...)

	return r, nil
}

func MustNewRegistry(commands ...Command) *Registry {
	r, err := NewRegistry(commands...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

func (r *Registry) Lookup(id string) (Command, bool) {
	position, found := r.index[normalize(id)]
	if !found {
		return Command{}, false
	}
	return r.commands[position], true
}

// IsExit reports whether phrase names a command of the exit set.
func (r *Registry) IsExit(phrase string) bool {
	id, _, ok := r.Resolve(phrase)
	if !ok {
		return false
	}
	command, _ := r.Lookup(id)
	return command.Exit
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultCommands is the command set of the weather bot.
func DefaultCommands() []Command {
	return []Command{
		{
			ID:          CommandStart,
			Description: "Start menu",
			Synonyms:    []string{"start", "старт", "привет"},
		},
		{
			ID:          CommandHelp,
			Description: "List of available commands (help)",
			Synonyms:    []string{"help", "h", "?", "command list", "помощь", "список команд"},
			Icon:        "ℹ",
		},
		{
			ID:          CommandMainMenu,
			Description: "Main menu (information sections)",
			Synonyms:    []string{"main menu", "menu", "основное меню", "меню"},
			Icon:        "🔝",
		},
		{
			ID:          CommandUserGet,
			Description: "Information about me",
			Synonyms:    []string{"about me", "who am i", "информация обо мне"},
			Icon:        "ℹ️",
		},
		{
			ID:          CommandWeatherMenu,
			Description: "Weather forecast",
			Synonyms:    []string{"weather forecast", "weather", "прогноз погоды"},
			Icon:        "🌦",
		},
		{
			ID:          CommandWeatherGet,
			Description: "Weather forecast as an Excel workbook",
			Synonyms:    []string{"weather forecast in excel", "прогноз погоды в excel"},
			Icon:        "🧾",
		},
		{
			ID:          CommandLogGet,
			Description: "Log of weather forecast requests",
			Synonyms:    []string{"recent requests", "logs", "log", "history", "логи", "лог", "лог последних запросов", "история"},
			Icon:        "📄",
		},
		{
			ID:          CommandCityGet,
			Description: "City directory",
			Synonyms:    []string{"cities", "city directory", "города", "справочник городов"},
			Icon:        "🌇",
		},
		{
			ID:          CommandCityEnter,
			Description: "Enter a city manually",
			Synonyms:    []string{"enter city manually", "ввести город вручную"},
		},
		{
			ID:          CommandExit,
			Description: "Exit",
			Synonyms: []string{"exit", "finish", "close", "end", "stop", "cancel",
				"выйти", "выход", "завершить", "закончить", "конец", "отмена"},
			Icon: "🔚",
			Exit: true,
		},
	}
}
