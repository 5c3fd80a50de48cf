package picker

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func press(t *testing.T, m model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(model)
		require.True(t, ok)
	}
	return m
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typed(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestModel_NavigateAndSelect(t *testing.T) {
	t.Parallel()
	m := press(t, newModel([]string{"X1", "Y0", "Z3"}),
		key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyDown), key(tea.KeyUp))

	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.View(), "> Y0")

	m = press(t, m, key(tea.KeyEnter))
	assert.True(t, m.done)
	assert.Equal(t, "Y0", m.chosen)
	assert.Empty(t, m.View())
}

func TestModel_FilterNarrowsChoices(t *testing.T) {
	t.Parallel()
	m := press(t, newModel([]string{"LiftCtrl", "DoorCtrl", "Lift_M2"}),
		key(tea.KeyDown), key(tea.KeyDown), typed("lift"))

	assert.Equal(t, []string{"LiftCtrl", "Lift_M2"}, m.visible())
	assert.Equal(t, 1, m.cursor, "cursor is clamped to the filtered list")

	m = press(t, m, typed("zzz"))
	assert.Empty(t, m.visible())
	assert.Contains(t, m.View(), "(no machine matches)")

	m = press(t, m, key(tea.KeyEnter))
	assert.False(t, m.done, "enter with nothing visible does nothing")
}

func TestModel_Cancel(t *testing.T) {
	t.Parallel()
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		next, cmd := newModel([]string{"A", "B"}).Update(key(k))
		m := next.(model)
		assert.False(t, m.done)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestChoose_NoLeaves(t *testing.T) {
	t.Parallel()
	_, err := New(nil, nil).Choose(context.Background(), nil)
	assert.EqualError(t, err, "no machines to choose from")
}
