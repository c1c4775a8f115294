package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"threex/internal/remix"
	"threex/internal/slots"
)

// columnsFor picks how many slot boxes share a row.
func columnsFor(width, n int) int {
	switch {
	case width < 80 || n == 1:
		return 1
	case width < 150 || n == 2 || n == 4:
		return 2
	default:
		return 3
	}
}

func (m Model) renderBoard(width int) string {
	st := m.state
	if len(st.Slots) == 0 {
		return DimStyle.Render("No slots. Use /use <model> to pick models.")
	}

	cols := columnsFor(width, len(st.Slots))
	boxWidth := width/cols - 1

	var rows []string
	for start := 0; start < len(st.Slots); start += cols {
		end := min(start+cols, len(st.Slots))
		boxes := make([]string, 0, cols)
		for _, s := range st.Slots[start:end] {
			boxes = append(boxes, m.renderSlot(s, boxWidth))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}

	if st.Remix.Phase != slots.Idle {
		rows = append(rows, m.renderLane("Remix", st.Remix, width-1))
	}
	if st.Social.Phase != slots.Idle {
		rows = append(rows, m.renderLane("Social posts", socialView(st.Social), width-1))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderSlot(s slots.Slot, width int) string {
	title := ModelStyle(s.ModelID).Render(fmt.Sprintf("%d  %s", s.Index, s.ModelID))
	header := title + "  " + m.phaseBadge(s.Phase)

	box := InactiveBox
	switch s.Phase {
	case slots.Generating:
		box = ActiveBox
	case slots.Failed:
		box = FailedBox
	}
	inner := max(width-4, 10)
	return box.Width(width - 2).Render(header + "\n\n" + m.slotBody(s, inner))
}

func (m Model) renderLane(name string, s slots.Slot, width int) string {
	title := TitleStyle.Render(name) + "  " + ModelStyle(s.ModelID).Render(s.ModelID)
	header := title + "  " + m.phaseBadge(s.Phase)
	inner := max(width-4, 10)
	return LaneBox.Width(width - 2).Render(header + "\n\n" + m.slotBody(s, inner))
}

func (m Model) slotBody(s slots.Slot, width int) string {
	switch s.Phase {
	case slots.Idle:
		return DimStyle.Render("Waiting for a prompt")
	case slots.Generating:
		text := s.Text()
		if text == "" {
			return DimStyle.Render("Thinking" + m.spinner.View())
		}
		return lipgloss.NewStyle().Width(width).Render(text + "▊")
	case slots.Failed:
		return ErrorStyle.Width(width).Render(s.Text())
	default:
		return m.markdown.Render(s.Epoch, s.Text(), width)
	}
}

func (m Model) phaseBadge(p slots.Phase) string {
	switch p {
	case slots.Generating:
		return StatusWarn.Render(m.spinner.View())
	case slots.Done:
		return StatusOK.Render("✓")
	case slots.Failed:
		return StatusCrit.Render("✗")
	default:
		return DimStyle.Render("○")
	}
}

// socialView rewrites a finished social draft with a character count per
// platform. Drafts still streaming are shown as they are.
func socialView(s slots.Slot) slots.Slot {
	if s.Phase != slots.Done {
		return s
	}
	posts := remix.ParseSocialPosts(s.Text())
	if len(posts) == 0 {
		return s
	}

	var sb strings.Builder
	for _, p := range remix.AllPlatforms() {
		post, ok := posts[p]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "### %s  %d/%d\n\n%s\n\n", p.Title(), len([]rune(post)), p.Limit(), post)
	}
	s.FinalText = strings.TrimSpace(sb.String())
	// A distinct cache key for the rewritten text.
	s.Epoch |= 1 << 63
	return s
}

// selectionSummary renders "gemini-2.0-flash x2, claude-sonnet-4-5".
func selectionSummary(selections []slots.Selection) string {
	parts := make([]string, 0, len(selections))
	for _, sel := range selections {
		part := ModelStyle(sel.ModelID).Render(sel.ModelID)
		if sel.Count > 1 {
			part += DimStyle.Render(fmt.Sprintf(" x%d", sel.Count))
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, DimStyle.Render(", "))
}
