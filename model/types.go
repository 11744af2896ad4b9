package model

import "time"

// User is the stored profile of a chat.
type User struct {
	ID        int64
	Name      string
	MenuScale int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// City is an entry of the city directory. CanonicalName doubles as the
// identifier passed to the forecast source.
type City struct {
	ID            uint
	CanonicalName string
	LocalName     string
}

type RequestLog struct {
	ID        uint
	UserID    int64
	City      string
	IsError   bool
	Message   string
	CreatedAt time.Time
}

// Table is a named grid of string cells with a header row.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Forecast is the parsed result of a weather page. Errors collects per-day
// parse failures; a forecast with rows and errors is still usable.
type Forecast struct {
	City   string
	Source string
	Table  Table
	Errors []string
}

func (f *Forecast) Empty() bool {
	return f == nil || len(f.Table.Rows) == 0
}
