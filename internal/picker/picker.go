// Package picker asks the user which machine to animate when a bundle holds
// several independent refinement chains.
package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user leaves the picker without choosing.
var ErrCancelled = errors.New("machine selection cancelled")

// model is a bubbletea model listing the leaf machines under a filter input.
type model struct {
	leaves []string
	filter textinput.Model
	cursor int
	chosen string
	done   bool
}

func newModel(leaves []string) model {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.CharLimit = 128
	ti.Focus()
	return model{leaves: leaves, filter: ti}
}

// visible returns the leaves matching the filter, case-insensitively.
func (m model) visible() []string {
	needle := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if needle == "" {
		return m.leaves
	}
	var out []string
	for _, l := range m.leaves {
		if strings.Contains(strings.ToLower(l), needle) {
			out = append(out, l)
		}
	}
	return out
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp, tea.KeyCtrlP:
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case tea.KeyDown, tea.KeyCtrlN:
			if m.cursor < len(m.visible())-1 {
				m.cursor++
			}
			return m, nil
		case tea.KeyEnter:
			visible := m.visible()
			if len(visible) == 0 {
				return m, nil
			}
			m.chosen = visible[m.cursor]
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString("Several independent refinement chains found. Choose the machine to animate:\n")
	fmt.Fprintf(&b, "%s\n\n", m.filter.View())
	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString("  (no machine matches)\n")
	}
	for i, l := range visible {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%s\n", marker, l)
	}
	b.WriteString("\nenter: select  esc: cancel\n")
	return b.String()
}

// Picker runs the interactive chooser on a terminal.
type Picker struct {
	in  io.Reader
	out io.Writer
}

// New returns a Picker reading keys from in and drawing on out.
func New(in io.Reader, out io.Writer) *Picker {
	return &Picker{in: in, out: out}
}

// Choose shows leaves and returns the one the user selects.
func (p *Picker) Choose(ctx context.Context, leaves []string) (string, error) {
	if len(leaves) == 0 {
		return "", errors.New("no machines to choose from")
	}
	prog := tea.NewProgram(newModel(leaves),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	result, err := prog.Run()
	if err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}
	final, ok := result.(model)
	if !ok || !final.done {
		return "", ErrCancelled
	}
	return final.chosen, nil
}
