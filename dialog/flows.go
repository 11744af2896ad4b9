package dialog

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"weatherbot/model"
	"weatherbot/utils"
)

// Storage is the persistence the flows read from and write to.
type Storage interface {
	// GetUserProfile returns nil and no error for an unknown user.
	GetUserProfile(ctx context.Context, userID int64) (*model.User, error)
	UpsertUserProfile(ctx context.Context, user model.User) error
	RecentLogs(ctx context.Context, limit int) ([]model.RequestLog, error)
	UserCityHistory(ctx context.Context, userID int64) ([]model.City, error)
	SearchCities(ctx context.Context, prefix string) ([]model.City, error)
	// CityGet returns nil and no error for a city outside the directory.
	CityGet(ctx context.Context, name string) (*model.City, error)
	ListCities(ctx context.Context) ([]model.City, error)
	LogRequest(ctx context.Context, entry model.RequestLog) error
}

type WeatherSource interface {
	FetchWeather(ctx context.Context, cityID string) (*model.Forecast, error)
}

type TableRenderer interface {
	RenderTable(tables ...model.Table) ([]byte, error)
}

// DefaultButtons are offered at the end of every informational flow.
var DefaultButtons = []string{"Main menu", "Weather forecast", "Command list"}

var mainMenuButtons = []string{"Weather forecast", "About me", "Recent requests"}

const (
	dataQuery = "query"

	defaultLogLimit = 10
)

// Library builds the flows of the bot on top of its collaborators.
type Library struct {
	Registry *Registry
	Storage  Storage
	Weather  WeatherSource
	Tables   TableRenderer
	Logo     []byte
	LogLimit int
	Now      func() time.Time
}

func (l *Library) Flows() []*Flow {
	return []*Flow{
		l.start(),
		l.menu(FlowDefault),
		l.menu(CommandExit),
		l.help(),
		l.mainMenu(),
		l.userGet(),
		l.logGet(),
		l.weatherMenu(),
		l.cityEnter(),
		l.cityGet(),
		l.weatherGet(),
	}
}

func (l *Library) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

// complete shows answer with the default buttons and returns on any reply.
func complete(prompt PromptFunc) Step {
	return Ask(func(ctx context.Context, c *Call) (Answer, error) {
		answer, err := prompt(ctx, c)
		if err != nil {
			return nil, err
		}
		return append(answer, Labels(DefaultButtons...)), nil
	}, nil)
}

func (l *Library) start() *Flow {
	return &Flow{
		ID: CommandStart,
		Steps: []Step{
			Ask(func(_ context.Context, c *Call) (Answer, error) {
				var answer Answer
				if len(l.Logo) > 0 {
					answer = append(answer, Image{Data: l.Logo, Name: "logo.png"})
				}
				answer = append(answer,
					HTML(fmt.Sprintf("Hi <b>%s</b>, I am the <b>Yandex Weather Bot</b> :)\n"+
						"Your assistant for weather data.\nNice to meet you.\n"+
						"How should I call you?\n", html.EscapeString(c.User.Name))),
				)
				if c.User.Name != "" {
					answer = append(answer, Labels(c.User.Name))
				}
				return answer, nil
			}, func(ctx context.Context, c *Call, reply string) (int, error) {
				name := utils.Capitalize(strings.TrimRight(strings.TrimSpace(reply), ".!"))
				if name == "" {
					name = c.User.Name
				}
				existing, err := l.Storage.GetUserProfile(ctx, c.User.ID)
				if err != nil {
					return 0, Fail("failed to load your profile", err)
				}
				profile := model.User{ID: c.User.ID, Name: name}
				if existing != nil {
					profile.MenuScale = existing.MenuScale
				}
				if err := l.Storage.UpsertUserProfile(ctx, profile); err != nil {
					return 0, Fail("failed to store your name", err)
				}
				c.Data["name"] = name
				return 1, nil
			}),
			complete(func(_ context.Context, c *Call) (Answer, error) {
				return Answer{
					Plain(fmt.Sprintf("Great, %s!", c.Data["name"])),
					CommandToExternal{Command: "user_registered", Content: c.Data["name"]},
				}, nil
			}),
		},
	}
}

// menu is the fallback flow; the exit command is an alias of it.
func (l *Library) menu(id string) *Flow {
	return &Flow{
		ID: id,
		Steps: []Step{
			AskFromList(func(_ context.Context, c *Call) (Answer, error) {
				c.Offer(DefaultButtons...)
				return Answer{
					HTML(fmt.Sprintf("<b>%s</b>, make a choice:", html.EscapeString(c.User.Name))),
					Labels(DefaultButtons...),
				}, nil
			}, nil),
		},
	}
}

func (l *Library) help() *Flow {
	return &Flow{
		ID: CommandHelp,
		Steps: []Step{
			complete(func(context.Context, *Call) (Answer, error) {
				var b strings.Builder
				b.WriteString("List of <b>commands</b>:\n")
				for _, command := range l.Registry.Commands() {
					name := command.ID
					var rest []string
					if len(command.Synonyms) > 0 {
						name = command.Synonyms[0]
						rest = command.Synonyms[1:]
					}
					fmt.Fprintf(&b, "\n<b>%s</b> - %s\n", html.EscapeString(name), html.EscapeString(command.Description))
					if len(rest) > 0 {
						fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(strings.Join(rest, ", ")))
					}
				}
				return Answer{HTML(b.String())}, nil
			}),
		},
	}
}

func (l *Library) mainMenu() *Flow {
	return &Flow{
		ID: CommandMainMenu,
		Steps: []Step{
			AskFromList(func(_ context.Context, c *Call) (Answer, error) {
				c.Offer(mainMenuButtons...)
				return Answer{HTML("Please choose an <b>action</b>:"), Labels(mainMenuButtons...)}, nil
			}, nil),
		},
	}
}

func (l *Library) userGet() *Flow {
	return &Flow{
		ID: CommandUserGet,
		Steps: []Step{
			complete(func(ctx context.Context, c *Call) (Answer, error) {
				profile, err := l.Storage.GetUserProfile(ctx, c.User.ID)
				if err != nil {
					return nil, Fail("failed to load your profile", err)
				}
				if profile == nil {
					return Answer{Plain("I don't know anything about you yet. Send /start to introduce yourself.")}, nil
				}
				return Answer{HTML(fmt.Sprintf(
					"• <b>Name</b>: %s\n• <b>Chat ID</b>: <code>%d</code>\n• <b>Menu scale</b>: %d\n• <b>Registered</b>: %s",
					html.EscapeString(profile.Name), profile.ID, profile.MenuScale,
					profile.CreatedAt.Format(time.DateTime),
				))}, nil
			}),
		},
	}
}

func (l *Library) logGet() *Flow {
	return &Flow{
		ID: CommandLogGet,
		Steps: []Step{
			complete(func(ctx context.Context, c *Call) (Answer, error) {
				limit := l.LogLimit
				if limit <= 0 {
					limit = defaultLogLimit
				}
				logs, err := l.Storage.RecentLogs(ctx, limit)
				if err != nil {
					return nil, Fail("failed to load the request log", err)
				}
				if len(logs) == 0 {
					return Answer{Plain("No forecast requests have been made yet.")}, nil
				}
				var b strings.Builder
				b.WriteString("Last forecast <b>requests</b>:\n")
				for _, entry := range logs {
					status := "ok"
					if entry.IsError {
						status = "error: " + entry.Message
					}
					fmt.Fprintf(&b, "\n<code>%s</code> <b>%s</b> [%d] %s",
						entry.CreatedAt.Format(time.DateTime), html.EscapeString(entry.City),
						entry.UserID, html.EscapeString(status))
				}
				return Answer{HTML(b.String())}, nil
			}),
		},
	}
}

func cityChoices(cities []model.City) []Choice {
	choices := make([]Choice, 0, len(cities))
	for _, city := range cities {
		choices = append(choices, Choice{
			Label:  utils.Capitalize(city.LocalName),
			Target: CommandWeatherGet + " " + city.CanonicalName,
		})
	}
	return choices
}

func (l *Library) weatherMenu() *Flow {
	return &Flow{
		ID: CommandWeatherMenu,
		Steps: []Step{
			Ask(func(ctx context.Context, c *Call) (Answer, error) {
				history, err := l.Storage.UserCityHistory(ctx, c.User.ID)
				if err != nil {
					return nil, Fail("failed to load your city history", err)
				}
				choices := []Choice{
					{Label: "Enter city manually", Target: CommandCityEnter},
					{Label: "Main menu", Target: "Main menu"},
				}
				text := "Your city history is empty"
				if len(history) > 0 {
					text = "Choose a city:"
					choices = append(choices, cityChoices(history)...)
				}
				return Answer{HTML(text), Choices(choices...)}, nil
			}, nil),
		},
	}
}

func (l *Library) cityEnter() *Flow {
	return &Flow{
		ID: CommandCityEnter,
		Steps: []Step{
			AskUntil(func(context.Context, *Call) (Answer, error) {
				return Answer{
					HTML("Please enter the <b>city name</b> <i>(first few letters)</i>, or press <b>EXIT</b>:"),
					Labels("Exit"),
				}, nil
			}, func(ctx context.Context, c *Call, reply string) (bool, error) {
				query := strings.TrimSpace(reply)
				if query == "" {
					return false, nil
				}
				cities, err := l.Storage.SearchCities(ctx, query)
				if err != nil {
					return false, Fail("failed to search the city directory", err)
				}
				if len(cities) == 0 {
					return false, nil
				}
				c.Data[dataQuery] = query
				return true, nil
			}, func(_ *Call, reply string) Answer {
				return Answer{
					HTML(fmt.Sprintf("No city matching <code>%s</code> was found in the directory. Try again:",
						html.EscapeString(strings.TrimSpace(reply)))),
					Labels("Exit"),
				}
			}, Goto(1)),
			Ask(func(ctx context.Context, c *Call) (Answer, error) {
				cities, err := l.Storage.SearchCities(ctx, c.Data[dataQuery])
				if err != nil {
					return nil, Fail("failed to search the city directory", err)
				}
				if len(cities) == 1 {
					return Answer{
						HTML(fmt.Sprintf("Found <b>%s</b>", html.EscapeString(utils.Capitalize(cities[0].LocalName)))),
						CommandToSelf{Command: CommandWeatherGet, Param: cities[0].CanonicalName},
					}, nil
				}
				choices := append([]Choice{{Label: "Main menu", Target: "Main menu"}}, cityChoices(cities)...)
				return Answer{HTML("Choose a city:"), Choices(choices...)}, nil
			}, nil),
		},
	}
}

func (l *Library) cityGet() *Flow {
	return &Flow{
		ID: CommandCityGet,
		Steps: []Step{
			Ask(func(ctx context.Context, c *Call) (Answer, error) {
				cities, err := l.Storage.ListCities(ctx)
				if err != nil {
					return nil, Fail("failed to load the city directory", err)
				}
				if len(cities) == 0 {
					return Answer{Plain("The city directory is empty"), Labels(DefaultButtons...)}, nil
				}
				choices := append(cityChoices(cities), Choice{Label: "Main menu", Target: "Main menu"})
				return Answer{HTML("Choose a city:"), Choices(choices...)}, nil
			}, nil),
		},
	}
}

var errNoCity = &Failure{Message: "no city selected"}

func (l *Library) weatherGet() *Flow {
	return &Flow{
		ID: CommandWeatherGet,
		Steps: []Step{
			complete(func(ctx context.Context, c *Call) (Answer, error) {
				city := strings.TrimSpace(c.Param)
				if city == "" {
					return nil, errNoCity
				}
				known, err := l.Storage.CityGet(ctx, city)
				if err != nil {
					return nil, Fail("failed to look the city up", err)
				}
				if known == nil {
					return Answer{Plain(fmt.Sprintf("%s is not in the city directory", city))}, nil
				}
				city = known.CanonicalName

				forecast, err := l.Weather.FetchWeather(ctx, city)
				entry := model.RequestLog{UserID: c.User.ID, City: city, CreatedAt: l.now().UTC()}
				switch {
				case err != nil:
					entry.IsError, entry.Message = true, err.Error()
				case forecast.Empty():
					entry.IsError, entry.Message = true, "no forecast found for "+city
					if forecast != nil && len(forecast.Errors) > 0 {
						entry.Message += ": " + strings.Join(forecast.Errors, "; ")
					}
				}
				if err := l.Storage.LogRequest(ctx, entry); err != nil {
					return nil, Fail("failed to log the request", err)
				}
				if entry.IsError {
					return Answer{Plain(entry.Message)}, nil
				}

				forecast.Table.Name = city
				document, err := l.Tables.RenderTable(forecast.Table)
				if err != nil {
					return nil, Fail("failed to build the workbook", err)
				}
				answer := Answer{Document{
					Data:     document,
					Filename: fmt.Sprintf("%s_%s.xlsx", l.now().Format(time.DateOnly), city),
				}}
				if len(forecast.Errors) > 0 {
					answer = append(answer, Plain(fmt.Sprintf("Some days could not be parsed (%d)", len(forecast.Errors))))
				}
				return answer, nil
			}),
		},
	}
}
