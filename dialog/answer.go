package dialog

import "strings"

// Part is one element of what a flow shows the user.
type Part interface {
	part()
}

// Answer is the ordered output of a flow step.
type Answer []Part

type Text struct {
	Text string
	HTML bool
}

type Image struct {
	Data []byte
	Name string
}

type Document struct {
	Data     []byte
	Filename string
}

// CommandToSelf makes the bot run Command for the same user once the rest
// of the answer has been delivered.
type CommandToSelf struct {
	Command string
	Param   string
}

// CommandToExternal is forwarded to the external sink and never shown.
type CommandToExternal struct {
	Command string
	Content string
}

type LayoutKind int

const (
	// LayoutInline buttons are decorated and packed into rows.
	LayoutInline LayoutKind = iota
	// LayoutInlineRow buttons are kept on a single row as given.
	LayoutInlineRow
	// LayoutReply is a one-time reply keyboard of plain labels.
	LayoutReply
)

type Button struct {
	Label string
	Data  string
	URL   string
}

type ButtonLayout struct {
	Kind    LayoutKind
	Buttons []Button
	Rows    [][]string
}

func (Text) part()              {}
func (Image) part()             {}
func (Document) part()          {}
func (ButtonLayout) part()      {}
func (CommandToSelf) part()     {}
func (CommandToExternal) part() {}

func Plain(text string) Text {
	return Text{Text: text}
}

func HTML(text string) Text {
	return Text{Text: text, HTML: true}
}

// Labels builds callback buttons whose callback data is the label itself.
func Labels(labels ...string) ButtonLayout {
	layout := ButtonLayout{Kind: LayoutInline}
	for _, label := range labels {
		layout.Buttons = append(layout.Buttons, Button{Label: label, Data: label})
	}
	return layout
}

// Choice pairs a label with a target: an http(s) URL or a callback token.
type Choice struct {
	Label  string
	Target string
}

func Choices(choices ...Choice) ButtonLayout {
	layout := ButtonLayout{Kind: LayoutInline}
	for _, choice := range choices {
		button := Button{Label: choice.Label}
		if IsURL(choice.Target) {
			button.URL = choice.Target
		} else {
			button.Data = choice.Target
		}
		layout.Buttons = append(layout.Buttons, button)
	}
	return layout
}

// Option carries an explicit action kind; "callback" options become a reply
// keyboard row and take precedence over link options.
type Option struct {
	Text   string
	Action string
}

const ActionCallback = "callback"

func Options(options ...Option) ButtonLayout {
	var callbacks []string
	var links []Button
	for _, option := range options {
		if option.Action == ActionCallback {
			callbacks = append(callbacks, option.Text)
		} else {
			links = append(links, Button{Label: option.Text, URL: option.Action})
		}
	}
	if len(callbacks) > 0 {
		return ButtonLayout{Kind: LayoutReply, Rows: [][]string{callbacks}}
	}
	return ButtonLayout{Kind: LayoutInlineRow, Buttons: links}
}

// Grid builds a two-level reply keyboard.
func Grid(rows ...[]string) ButtonLayout {
	return ButtonLayout{Kind: LayoutReply, Rows: rows}
}

func IsURL(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Labels returns every label of the layout in order.
func (l ButtonLayout) Labels() []string {
	var labels []string
	for _, button := range l.Buttons {
		labels = append(labels, button.Label)
	}
	for _, row := range l.Rows {
		labels = append(labels, row...)
	}
	return labels
}
