package main

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/ownership/internal/playground"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i", "repl"},
	Short:   "Type ownership commands and watch the counts",
	Args:    cobra.NoArgs,
	RunE:    runInteractive,
}

// historyLimit bounds the number of rendered steps kept on screen.
const historyLimit = 12

type interactiveModel struct {
	session  *playground.Session
	renderer *playground.Renderer
	err      error
	memory   string
	history  []string
	input    textinput.Model
	recall   []string
	recallAt int
}

func newInteractiveModel(s *playground.Session, r *playground.Renderer, memory string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "new a 1"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{
		session:  s,
		renderer: r,
		memory:   memory,
		input:    ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit

		case "up":
			if m.recallAt > 0 {
				m.recallAt--
				m.input.SetValue(m.recall[m.recallAt])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.recallAt < len(m.recall)-1 {
				m.recallAt++
				m.input.SetValue(m.recall[m.recallAt])
			} else {
				m.recallAt = len(m.recall)
				m.input.SetValue("")
			}
			m.input.CursorEnd()
			return m, nil

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			m.recall = append(m.recall, line)
			m.recallAt = len(m.recall)
			m.exec(line)
			return m, nil

		case "esc":
			m.err = nil
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) exec(line string) {
	step, err := m.session.Exec(line)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	if step.Command == "" {
		return
	}
	m.history = append(m.history, m.renderer.Step(step))
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

func (m *interactiveModel) View() string {
	styles := m.renderer.Styles()
	var b strings.Builder

	b.WriteString(styles.Title.Render("Ownership Playground"))
	b.WriteString(" ")
	b.WriteString(m.memory)
	b.WriteString("\n\n")

	b.WriteString(m.renderer.Rows(m.session.Snapshot()))
	b.WriteString("\n")
	b.WriteString(m.renderer.Stats(m.session.Stats()))
	b.WriteString("\n\n")

	for _, h := range m.history {
		b.WriteString(h)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(m.renderer.Error(m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(styles.Help.Render("enter run • ↑/↓ history • esc clear error • ctrl+c quit"))
	return b.String()
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return fail("interactive mode needs a terminal; use rcplay run - to read a script from stdin")
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close(cmd.Context())

	s := playground.NewSession(e.source, e.cfg.Counts, e.logger.Named("session"))
	defer s.Close()

	p := tea.NewProgram(newInteractiveModel(s, e.renderer, e.source.Name()), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
