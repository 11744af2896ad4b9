package render

import (
	"unicode/utf8"

	"weatherbot/dialog"
)

const (
	// DefaultRowWidth is the row budget at menu scale zero.
	DefaultRowWidth = 34
	// DefaultScalePenalty is subtracted from the budget per menu scale step.
	DefaultScalePenalty = 5

	buttonPadding = 2
)

// Budget is the row width for a user with the given menu scale.
func Budget(base, scale, penalty int) int {
	return base - scale*penalty
}

// Pack lays buttons out left to right, starting a new row when the next
// label would overflow width or when it names an exit command. A label
// wider than width on its own gets a row to itself.
func Pack(buttons []dialog.Button, width int, isExit func(string) bool) [][]dialog.Button {
	var (
		rows    [][]dialog.Button
		current []dialog.Button
		used    int
	)

	for _, button := range buttons {
		size := utf8.RuneCountInString(button.Label) + buttonPadding
		exit := isExit != nil && isExit(button.Label)
		if len(current) > 0 && (used+size > width || exit) {
			rows = append(rows, current)
			current, used = nil, 0
		}
		current = append(current, button)
		used += size
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return rows
}
