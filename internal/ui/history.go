package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"threex/internal/db"
	"threex/internal/slots"
)

// HistoryState holds the state for the history browser
type HistoryState struct {
	chats     []db.Chat
	cursor    int
	scrollTop int
	maxHeight int
}

func NewHistoryState() *HistoryState {
	return &HistoryState{maxHeight: 20}
}

func (h *HistoryState) Up() {
	if h.cursor > 0 {
		h.cursor--
		if h.cursor < h.scrollTop {
			h.scrollTop = h.cursor
		}
	}
}

func (h *HistoryState) Down() {
	if h.cursor < len(h.chats)-1 {
		h.cursor++
		if h.cursor >= h.scrollTop+h.maxHeight {
			h.scrollTop = h.cursor - h.maxHeight + 1
		}
	}
}

// Selected returns the chat under the cursor, or nil if none
func (h *HistoryState) Selected() *db.Chat {
	if h.cursor >= 0 && h.cursor < len(h.chats) {
		return &h.chats[h.cursor]
	}
	return nil
}

// LoadChats reads the saved chats, newest first
func (h *HistoryState) LoadChats(store *db.Store) error {
	if store == nil {
		return fmt.Errorf("history is disabled")
	}
	chats, err := store.ListChats(0)
	if err != nil {
		return err
	}
	h.chats = chats
	h.cursor = 0
	h.scrollTop = 0
	return nil
}

// SetMaxHeight updates the max visible height
func (h *HistoryState) SetMaxHeight(height int) {
	h.maxHeight = max(height-10, 5)
}

func (h *HistoryState) Render(width, height int) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("CHAT HISTORY"))
	content.WriteString("\n")
	content.WriteString(DimStyle.Render("Select a saved chat to reopen"))
	content.WriteString("\n\n")

	if len(h.chats) == 0 {
		content.WriteString(DimStyle.Render("No saved chats yet."))
	} else {
		visibleEnd := min(h.scrollTop+h.maxHeight, len(h.chats))

		header := fmt.Sprintf("  %-8s  %-36s  %-16s  %s", "ID", "Title", "Updated", "Slots")
		content.WriteString(DimStyle.Render(header))
		content.WriteString("\n")
		content.WriteString(DimStyle.Render(strings.Repeat("-", 72)))
		content.WriteString("\n")

		for i := h.scrollTop; i < visibleEnd; i++ {
			c := h.chats[i]

			title := []rune(c.Title)
			if len(title) > 34 {
				title = append(title[:34], '…')
			}

			timeStr := c.UpdatedAt.Local().Format("2006-01-02 15:04")
			if time.Since(c.UpdatedAt) < 24*time.Hour {
				timeStr = c.UpdatedAt.Local().Format("Today 15:04")
			}

			cursor := "  "
			lineStyle := DimStyle
			if i == h.cursor {
				cursor = "> "
				lineStyle = lipgloss.NewStyle().Foreground(Cyan)
			}

			line := fmt.Sprintf("%-8s  %-36s  %-16s  %d",
				c.ID[:min(8, len(c.ID))], string(title), timeStr, slots.TotalCount(c.Selections))
			content.WriteString(cursor)
			content.WriteString(lineStyle.Render(line))
			content.WriteString("\n")
		}

		if len(h.chats) > h.maxHeight {
			content.WriteString("\n")
			content.WriteString(DimStyle.Render(fmt.Sprintf("Showing %d-%d of %d", h.scrollTop+1, visibleEnd, len(h.chats))))
		}
	}

	content.WriteString("\n\n")
	content.WriteString(DimStyle.Render("Up/Down: Navigate | Enter: Open | Esc: Cancel"))

	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 2).
		MaxWidth(width - 10).
		MaxHeight(height - 4)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlayStyle.Render(content.String()))
}

func (m Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.history.Up()
	case "down", "j":
		m.history.Down()
	case "esc", "q":
		m.view = ViewNormal
	case "ctrl+c":
		return m.quit()
	case "enter":
		m.view = ViewNormal
		if c := m.history.Selected(); c != nil {
			return m.loadChat(c.ID), nil
		}
	}
	return m, nil
}

// loadChat replaces the board with a saved chat.
func (m Model) loadChat(id string) Model {
	store := m.opts.Store
	chat, err := store.FindChat(id)
	if err != nil {
		m.setError(err)
		return m
	}
	responses, err := store.GetResponses(chat.ID)
	if err != nil {
		m.setError(err)
		return m
	}

	m.stopRuns()
	if err := RestoreChat(m.board, chat, responses); err != nil {
		m.setError(err)
		return m
	}
	m.prompt = chat.Prompt
	m.chatID = chat.ID
	m.startedAt = chat.CreatedAt
	m.state = m.board.Snapshot()
	m.refresh()
	m.viewport.GotoTop()
	m.setStatus("Opened %q.", chat.Title)
	return m
}

// RestoreChat replays saved responses onto board. Later responses for the
// same slot win, so a retried slot shows its last answer.
func RestoreChat(board *slots.Board, chat *db.Chat, responses []db.Response) error {
	if len(chat.Selections) > 0 {
		if err := board.Select(chat.Selections, false); err != nil {
			return err
		}
	}
	board.Reset()

	for _, r := range responses {
		var (
			t   slots.Ticket
			err error
		)
		switch r.Lane {
		case slots.LaneRemix.String():
			t, err = board.BeginLane(slots.LaneRemix, r.ModelID)
		case slots.LaneSocial.String():
			t, err = board.BeginLane(slots.LaneSocial, r.ModelID)
		default:
			t, err = board.Begin(r.Slot)
		}
		if err != nil {
			return fmt.Errorf("restore %s slot %d: %w", r.Lane, r.Slot, err)
		}
		if r.Failed {
			board.Fail(t, r.Content)
		} else {
			board.Finalize(t, r.Content)
		}
	}
	return nil
}
