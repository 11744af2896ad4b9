package render

import (
	"strings"
	"testing"

	"weatherbot/dialog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buttons(labels ...string) []dialog.Button {
	out := make([]dialog.Button, len(labels))
	for i, label := range labels {
		out[i] = dialog.Button{Label: label, Data: label}
	}
	return out
}

func labelsOf(rows [][]dialog.Button) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		for _, button := range row {
			out[i] = append(out[i], button.Label)
		}
	}
	return out
}

func TestPackFillsRowsGreedily(t *testing.T) {
	rows := Pack(buttons("Main menu", "Weather forecast", "Command list"), DefaultRowWidth, nil)

	assert.Equal(t, [][]string{
		{"Main menu", "Weather forecast"},
		{"Command list"},
	}, labelsOf(rows))
}

func TestPackIsDeterministic(t *testing.T) {
	input := buttons("Moscow", "Saint Petersburg", "Novosibirsk", "Yekaterinburg", "Kazan")

	first := Pack(input, 20, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Pack(input, 20, nil))
	}
}

func TestPackGivesOversizedLabelItsOwnRow(t *testing.T) {
	long := strings.Repeat("x", 40)
	rows := Pack(buttons("A", long, "B"), 34, nil)

	assert.Equal(t, [][]string{{"A"}, {long}, {"B"}}, labelsOf(rows))
}

func TestPackStartsNewRowAtExit(t *testing.T) {
	registry := dialog.MustNewRegistry(dialog.DefaultCommands()...)
	input := buttons("Yes", registry.Decorate("Exit"), "No")

	rows := Pack(input, 100, registry.IsExit)

	require.Len(t, rows, 2)
	assert.Equal(t, "Yes", rows[0][0].Label)
	assert.Equal(t, registry.Decorate("Exit"), rows[1][0].Label)
	assert.Equal(t, "No", rows[1][1].Label)
}

func TestPackNoButtons(t *testing.T) {
	assert.Empty(t, Pack(nil, DefaultRowWidth, nil))
}

func TestBudget(t *testing.T) {
	assert.Equal(t, 34, Budget(DefaultRowWidth, 0, DefaultScalePenalty))
	assert.Equal(t, 24, Budget(DefaultRowWidth, 2, DefaultScalePenalty))
}
