package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"threex/internal/commands"
	"threex/internal/db"
	"threex/internal/export"
	"threex/internal/orchestrator"
	"threex/internal/slots"
)

func (m Model) promptFor(text string) orchestrator.Prompt {
	return orchestrator.Prompt{
		Text:        text,
		Context:     m.attachments.ChatContext(),
		Temperature: m.opts.Temperature,
		MaxTokens:   m.opts.MaxTokens,
	}
}

func (m Model) startPrompt(text string) (tea.Model, tea.Cmd) {
	if m.running[slots.LaneGrid] > 0 {
		m.setError(errors.New("still generating; press Esc to stop"))
		return m, nil
	}

	m.board.Reset()
	m.prompt = text
	m.startedAt = time.Now()
	m.chatID = ""
	if m.opts.Store != nil {
		id, err := m.opts.Store.CreateChat(export.TitleFromPrompt(text), text, m.state.Selections)
		if err != nil {
			m.setError(fmt.Errorf("history: %w", err))
		} else {
			m.chatID = id
			for _, att := range m.attachments.Items() {
				_ = m.opts.Store.AddContextFile(id, att.Path, att.Kind.String())
			}
		}
	}

	responses := m.opts.Orchestrator.ParallelSeed(m.ctx, m.board, m.promptFor(text))
	m.running[slots.LaneGrid]++
	m.state = m.board.Snapshot()
	m.setStatus("Asking %d slots...", len(m.state.Slots))
	m.refresh()
	m.viewport.GotoTop()
	return m, drain(m.seq, slots.LaneGrid, 0, responses)
}

// stopRuns cancels every stream and starts a fresh run context.
func (m *Model) stopRuns() {
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	clear(m.running)
	m.seq++
}

func (m Model) runCommand(cmd commands.Command) (tea.Model, tea.Cmd) {
	switch c := cmd.(type) {
	case commands.Help:
		m.view = ViewHelp

	case commands.ParseError:
		m.setError(errors.New(c.Message))

	case commands.Use:
		if m.busy() {
			m.setError(errors.New("wait for the current answers or press Esc"))
			return m, nil
		}
		if err := m.board.Select(c.Selections, false); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("Using %d slots.", slots.TotalCount(c.Selections))

	case commands.AddSlot:
		if err := m.board.Add(c.ModelID); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("Slot added.")

	case commands.DeleteSlot:
		if err := m.board.Delete(c.Index); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("Slot %d deleted.", c.Index)

	case commands.Retry:
		if m.prompt == "" {
			m.setError(errors.New("nothing to retry yet"))
			return m, nil
		}
		responses, err := m.opts.Orchestrator.SendToSlot(m.ctx, m.board, c.Index, m.promptFor(m.prompt))
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.running[slots.LaneGrid]++
		m.setStatus("Retrying slot %d...", c.Index)
		m.state = m.board.Snapshot()
		m.refresh()
		return m, drain(m.seq, slots.LaneGrid, c.Index, responses)

	case commands.NewChat:
		m.stopRuns()
		m.board.Reset()
		m.prompt = ""
		m.chatID = ""
		m.setStatus("New chat.")

	case commands.Remix:
		modelID := c.ModelID
		if modelID == "" {
			modelID = m.opts.RemixModel
		}
		responses, err := m.opts.Orchestrator.Remix(m.ctx, m.board, m.promptFor(m.prompt), modelID)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.running[slots.LaneRemix]++
		m.setStatus("Remixing with %s...", modelID)
		m.state = m.board.Snapshot()
		m.refresh()
		return m, drain(m.seq, slots.LaneRemix, 0, responses)

	case commands.Social:
		source := m.socialSource()
		responses, err := m.opts.Orchestrator.Social(m.ctx, m.board, source, c.Platforms, m.opts.RemixModel)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.running[slots.LaneSocial]++
		m.setStatus("Writing social posts...")
		m.state = m.board.Snapshot()
		m.refresh()
		return m, drain(m.seq, slots.LaneSocial, 0, responses)

	case commands.AddContext:
		att, err := m.attachments.Add(c.Path)
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("Attached %s %s.", att.Kind, att.Path)

	case commands.RemoveContext:
		if !m.attachments.Remove(c.Path) {
			m.setError(fmt.Errorf("%s is not attached", c.Path))
			return m, nil
		}
		m.setStatus("Detached %s.", c.Path)

	case commands.ListContext:
		m.setStatus("%s", oneLine(m.attachments.Summary()))

	case commands.ClearContext:
		m.attachments.Clear()
		m.setStatus("Context cleared.")

	case commands.SetSystem:
		m.attachments.SystemPrompt = c.Prompt
		if c.Prompt == "" {
			m.setStatus("System prompt cleared.")
		} else {
			m.setStatus("System prompt set.")
		}

	case commands.ShowHistory:
		if m.opts.Store == nil {
			m.setError(errors.New("history is disabled"))
			return m, nil
		}
		if c.ChatID != "" {
			return m.loadChat(c.ChatID), nil
		}
		if err := m.history.LoadChats(m.opts.Store); err != nil {
			m.setError(err)
			return m, nil
		}
		m.view = ViewHistory

	case commands.Export:
		path, err := m.export()
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("Exported to %s", path)

	case commands.Quit:
		return m.quit()
	}

	m.state = m.board.Snapshot()
	m.refresh()
	return m, nil
}

// socialSource is the remix when there is one, otherwise the first
// finished answer.
func (m Model) socialSource() string {
	st := m.board.Snapshot()
	if st.Remix.Phase == slots.Done {
		return st.Remix.Text()
	}
	for _, s := range st.Slots {
		if s.Phase == slots.Done {
			return s.Text()
		}
	}
	return ""
}

func (m *Model) persist(msg runDoneMsg) {
	store := m.opts.Store
	if store == nil || m.chatID == "" || msg.total == 0 {
		return
	}

	var err error
	if msg.slot > 0 {
		s, ok := m.state.Slot(msg.slot)
		if ok {
			_, err = store.AddResponse(db.Response{
				ChatID:  m.chatID,
				Lane:    slots.LaneGrid.String(),
				Slot:    s.Index,
				ModelID: s.ModelID,
				Content: s.Text(),
				Failed:  s.Phase == slots.Failed,
			})
		}
	} else {
		err = store.SaveState(m.chatID, m.state, msg.lane)
	}
	if err != nil {
		m.setError(fmt.Errorf("history: %w", err))
	}
}

func (m Model) export() (string, error) {
	if m.prompt == "" {
		return "", errors.New("nothing to export yet")
	}
	started := m.startedAt
	if started.IsZero() {
		started = time.Now()
	}
	c := export.FromState(m.chatID, m.prompt, m.board.Snapshot(), started)
	for _, att := range m.attachments.Items() {
		c.ContextFiles = append(c.ContextFiles, att.Path)
	}
	return export.Write(c, m.opts.ExportDir)
}

func oneLine(s string) string {
	out := []rune{}
	for _, r := range s {
		if r == '\n' {
			out = append(out, ' ', '|', ' ')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
