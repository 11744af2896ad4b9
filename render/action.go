package render

import "weatherbot/dialog"

// Action is one message to deliver to the user.
type Action interface {
	action()
}

// Layout is a keyboard attached to a text message. Inline rows carry
// callback or URL buttons; Reply rows are a one-time reply keyboard.
type Layout struct {
	Inline [][]dialog.Button
	Reply  [][]string
}

type SendText struct {
	Text   string
	HTML   bool
	Layout *Layout
}

type SendImage struct {
	Data []byte
	Name string
}

type SendDocument struct {
	Data     []byte
	Filename string
}

func (SendText) action()     {}
func (SendImage) action()    {}
func (SendDocument) action() {}

// Name is a short label of the action kind for logs and metrics.
func Name(a Action) string {
	switch a.(type) {
	case SendText:
		return "text"
	case SendImage:
		return "image"
	case SendDocument:
		return "document"
	default:
		return "unknown"
	}
}
