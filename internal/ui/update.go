package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"threex/internal/commands"
	"threex/internal/slots"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.history.SetMaxHeight(msg.Height)
		m.layout()
		m.refresh()
		return m, nil

	case stateMsg:
		m.state = slots.State(msg)
		m.refresh()
		return m, waitForState(m.updates)

	case runDoneMsg:
		return m.finishRun(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Aggregate(m.prompt).AnyGenerating {
			m.refresh()
		}
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case ViewHelp:
			switch msg.String() {
			case "esc", "f1", "q", "?":
				m.view = ViewNormal
			case "ctrl+c":
				return m.quit()
			}
			return m, nil
		case ViewHistory:
			return m.updateHistory(msg)
		}

		switch msg.String() {
		case "ctrl+c":
			return m.quit()
		case "esc":
			if m.busy() {
				m.stopRuns()
				m.setStatus("Stopped.")
			}
			return m, nil
		case "f1":
			m.view = ViewHelp
			return m, nil
		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			return m.submit(text)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	m.unsubscribe()
	return m, tea.Quit
}

// submit runs a slash command or fans a prompt out to every slot.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if cmd := commands.Parse(text); cmd != nil {
		return m.runCommand(cmd)
	}
	return m.startPrompt(text)
}

func (m Model) finishRun(msg runDoneMsg) Model {
	m.state = m.board.Snapshot()
	if msg.seq != m.seq {
		return m
	}
	if m.running[msg.lane] > 0 {
		m.running[msg.lane]--
	}
	m.refresh()
	m.persist(msg)

	switch {
	case msg.total == 0:
		m.setStatus("Stopped.")
	case msg.failed == msg.total:
		m.status = "All responses failed."
		m.statusErr = true
	case msg.failed > 0:
		m.setStatus("%d of %d responses failed.", msg.failed, msg.total)
	case msg.lane == slots.LaneRemix:
		m.setStatus("Remix ready. /social turns it into posts.")
	case msg.lane == slots.LaneSocial:
		m.setStatus("Social posts ready.")
	default:
		if m.state.Aggregate(m.prompt).RemixEnabled {
			m.setStatus("Done. /remix merges the answers.")
		} else {
			m.setStatus("Done.")
		}
	}
	return m
}

func joinHints(hints []string) string {
	return strings.Join(hints, " | ")
}

func spaces(n int) string {
	return strings.Repeat(" ", n)
}
