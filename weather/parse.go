package weather

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"weatherbot/model"
	"weatherbot/utils"

	"golang.org/x/net/html"
)

// Columns of the forecast table, in order.
var Columns = []string{
	"Date",
	"Part of day",
	"Temperature",
	"Avg daytime temperature",
	"Pressure",
	"Pressure comment",
	"Humidity",
	"Weather",
	"Magnetic field",
}

const (
	pressureSwing   = 5
	pressureRising  = "a sharp rise in atmospheric pressure is expected"
	pressureFalling = "a sharp drop in atmospheric pressure is expected"
	magneticLabel   = "Магнитное поле"
)

var (
	dayContainerRe = regexp.MustCompile(`(?i)AppForecastDay_container`)
	dayTitleRe     = regexp.MustCompile(`(?i)AppForecastDayHeader_dayTitle`)
	durationItemRe = regexp.MustCompile(`(?i)AppForecastDayDuration_item`)
	partTempRe     = regexp.MustCompile(`(?i)AppForecastDayPart_temp`)

	partStyleRe     = regexp.MustCompile(`(?i)-part`)
	pressureStyleRe = regexp.MustCompile(`(?i)-press`)
	humidityStyleRe = regexp.MustCompile(`(?i)-hum`)
	textStyleRe     = regexp.MustCompile(`(?i)-text`)
)

// Parse reads a forecast page. At most maxDays days are read; a day that
// cannot be parsed is skipped and reported in Forecast.Errors.
func Parse(r io.Reader, maxDays int) (*model.Forecast, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page : %w", err)
	}

	forecast := &model.Forecast{
		Table: model.Table{Columns: append([]string(nil), Columns...)},
	}

	days := findAll(root, byClass(dayContainerRe))
	for index, day := range days {
		if maxDays > 0 && index >= maxDays {
			break
		}
		rows, err := parseDay(day)
		if err != nil {
			forecast.Errors = append(forecast.Errors, fmt.Sprintf("day %d: %s", index+1, err))
			continue
		}
		forecast.Table.Rows = append(forecast.Table.Rows, rows...)
	}

	return forecast, nil
}

func parseDay(day *html.Node) ([][]string, error) {
	title := findFirst(day, byClass(dayTitleRe))
	if title == nil || title.FirstChild == nil {
		return nil, fmt.Errorf("no day title")
	}
	date := strings.TrimSpace(utils.CleanHTML(nodeText(title.FirstChild)))

	var magnetic string
	for _, item := range findAll(day, byClass(durationItemRe)) {
		if !strings.Contains(nodeText(item), magneticLabel) {
			continue
		}
		if children := childNodes(item); len(children) > 1 {
			magnetic = strings.TrimSpace(nodeText(children[1]))
		}
		break
	}

	parts := texts(findAll(day, byStyle(partStyleRe)))

	var temperatures []int
	for _, node := range findAll(day, byClass(partTempRe)) {
		if node.FirstChild == nil {
			return nil, fmt.Errorf("empty temperature")
		}
		value, err := parseTemperature(nodeText(node.FirstChild))
		if err != nil {
			return nil, err
		}
		temperatures = append(temperatures, value)
	}
	// the last part of the day is the night
	if len(temperatures) < 2 {
		return nil, fmt.Errorf("expected at least 2 temperatures, got %d", len(temperatures))
	}
	daytime := temperatures[:len(temperatures)-1]
	sum := 0
	for _, t := range daytime {
		sum += t
	}
	average := strconv.FormatFloat(float64(sum)/float64(len(daytime)), 'f', -1, 64)

	var pressures []int
	for _, text := range texts(findAll(day, byStyle(pressureStyleRe))) {
		value, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("invalid pressure %q", text)
		}
		pressures = append(pressures, value)
	}
	if len(pressures) == 0 {
		return nil, fmt.Errorf("no pressure")
	}

	humidity := texts(findAll(day, byStyle(humidityStyleRe)))
	events := texts(findAll(day, byStyle(textStyleRe)))

	for name, column := range map[string]int{
		"temperatures": len(temperatures),
		"pressures":    len(pressures),
		"humidity":     len(humidity),
		"weather":      len(events),
	} {
		if column != len(parts) {
			return nil, fmt.Errorf("%d parts of day but %d %s", len(parts), column, name)
		}
	}

	comment := pressureComment(pressures)
	rows := make([][]string, 0, len(parts))
	for i, part := range parts {
		rows = append(rows, []string{
			date,
			part,
			strconv.Itoa(temperatures[i]),
			average,
			strconv.Itoa(pressures[i]),
			comment,
			humidity[i],
			events[i],
			magnetic,
		})
	}
	return rows, nil
}

func pressureComment(pressures []int) string {
	minIndex, maxIndex := 0, 0
	for i, p := range pressures {
		if p < pressures[minIndex] {
			minIndex = i
		}
		if p > pressures[maxIndex] {
			maxIndex = i
		}
	}
	if pressures[maxIndex]-pressures[minIndex] < pressureSwing {
		return ""
	}
	if minIndex < maxIndex {
		return pressureRising
	}
	return pressureFalling
}

// parseTemperature turns "+12°" into 12.
func parseTemperature(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty temperature")
	}
	_, size := utf8.DecodeLastRuneInString(raw)
	trimmed := strings.Replace(raw[:len(raw)-size], "−", "-", 1)
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid temperature %q", raw)
	}
	return value, nil
}

type matcher func(*html.Node) bool

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func byClass(re *regexp.Regexp) matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, class := range strings.Fields(attr(n, "class")) {
			if re.MatchString(class) {
				return true
			}
		}
		return false
	}
}

func byStyle(re *regexp.Regexp) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && re.MatchString(attr(n, "style"))
	}
}

func findAll(root *html.Node, match matcher) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				found = append(found, c)
			}
			walk(c)
		}
	}
	walk(root)
	return found
}

func findFirst(root *html.Node, match matcher) *html.Node {
	if found := findAll(root, match); len(found) > 0 {
		return found[0]
	}
	return nil
}

// childNodes skips whitespace-only text between elements.
func childNodes(n *html.Node) []*html.Node {
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		children = append(children, c)
	}
	return children
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func texts(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, strings.TrimSpace(nodeText(n)))
	}
	return out
}
