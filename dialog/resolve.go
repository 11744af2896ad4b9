package dialog

import (
	"strings"

	"github.com/forPelevin/gomoji"
)

// Resolve turns raw input into a command id and an optional parameter.
// ok is false when the input is not a command and belongs to the active flow.
func (r *Registry) Resolve(raw string) (command, param string, ok bool) {
	cleaned := r.clean(raw)

	if id, found := r.match(cleaned); found {
		return id, "", true
	}
	// users sometimes paste a label with an emoji the registry does not know
	if bare := normalize(gomoji.RemoveEmojis(cleaned)); bare != cleaned {
		if id, found := r.match(bare); found {
			return id, "", true
		}
	}

	index := strings.LastIndex(cleaned, " ")
	if index <= 0 {
		return "", "", false
	}
	head, tail := strings.TrimSpace(cleaned[:index]), cleaned[index+1:]
	if id, found := r.match(head); found && tail != "" {
		return id, tail, true
	}
	return "", "", false
}

// Decorate prefixes label with the icon of the command it names.
func (r *Registry) Decorate(label string) string {
	command, found := r.Lookup(label)
	if !found || command.Icon == "" {
		return label
	}
	return command.Icon + " " + label
}

func (r *Registry) clean(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "/") {
		s = strings.TrimLeft(s, "/")
		// "/start@SomeBot" addressed commands in group chats
		first, rest, _ := strings.Cut(s, " ")
		if at := strings.IndexByte(first, '@'); at > 0 {
			s = strings.TrimSpace(first[:at] + " " + rest)
		}
	}
	return normalize(r.icons.Replace(s))
}

func (r *Registry) match(phrase string) (string, bool) {
	position, found := r.index[phrase]
	if !found {
		return "", false
	}
	return r.commands[position].ID, true
}
