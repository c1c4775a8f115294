package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"threex/internal/models"
)

var (
	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Yellow).
				MarginTop(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	helpCmdStyle = lipgloss.NewStyle().
			Foreground(Magenta)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(White)
)

type helpEntry struct {
	key  string
	desc string
}

var helpKeys = []helpEntry{
	{"Enter", "Send the prompt to every slot"},
	{"Alt+Enter", "Insert a newline"},
	{"Esc", "Stop generating / close overlay"},
	{"PgUp / PgDn", "Scroll the slots"},
	{"F1", "Toggle this help"},
	{"Ctrl+C", "Quit"},
}

var helpCommands = []helpEntry{
	{"/use <model[*n]> ...", "Pick models and slot counts"},
	{"/add [model]", "Add a slot"},
	{"/del <n>", "Delete slot n"},
	{"/retry <n>", "Regenerate slot n"},
	{"/new", "Start a new chat"},
	{"/remix [model]", "Merge two or more answers"},
	{"/social [platform ...]", "Posts for X, LinkedIn, Threads, Bluesky, Mastodon"},
	{"/context add <path>", "Attach a file, directory or image"},
	{"/context list|remove|clear", "Manage attachments"},
	{"/system [prompt]", "Set or clear the system prompt"},
	{"/history [id]", "Browse or reopen saved chats"},
	{"/export", "Write the chat as markdown"},
}

var helpPhases = []struct {
	symbol string
	style  lipgloss.Style
	desc   string
}{
	{"○", DimStyle, "Idle, waiting for a prompt"},
	{"⣾", StatusWarn, "Generating"},
	{"✓", StatusOK, "Done"},
	{"✗", StatusCrit, "Failed, the message says why"},
}

// HelpContent returns the formatted help overlay content
func HelpContent(width, height int, catalog []models.CatalogEntry) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("THREEX HELP"))
	content.WriteString("\n")

	content.WriteString(helpSectionStyle.Render("KEYS"))
	content.WriteString("\n\n")
	for _, kb := range helpKeys {
		content.WriteString("  " + helpKeyStyle.Width(14).Render(kb.key) + "  " + helpDescStyle.Render(kb.desc) + "\n")
	}

	content.WriteString(helpSectionStyle.Render("SLASH COMMANDS"))
	content.WriteString("\n\n")
	for _, cmd := range helpCommands {
		content.WriteString("  " + helpCmdStyle.Width(28).Render(cmd.key) + "  " + helpDescStyle.Render(cmd.desc) + "\n")
	}

	if len(catalog) > 0 {
		content.WriteString(helpSectionStyle.Render("MODELS"))
		content.WriteString("\n\n")
		for _, e := range catalog {
			content.WriteString("  " + ModelStyle(e.ID).Width(28).Render(e.ID) + "  " + DimStyle.Render(e.Name) + "\n")
		}
	}

	content.WriteString(helpSectionStyle.Render("SLOT STATUS"))
	content.WriteString("\n\n")
	for _, ind := range helpPhases {
		content.WriteString("  " + ind.style.Width(3).Render(ind.symbol) + "  " + helpDescStyle.Render(ind.desc) + "\n")
	}

	content.WriteString("\n")
	footer := DimStyle.Render("Press F1 or Esc to close this help")
	content.WriteString(lipgloss.PlaceHorizontal(max(width-8, 0), lipgloss.Center, footer))

	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 3).
		MaxWidth(width - 10).
		MaxHeight(height - 4)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlayStyle.Render(content.String()))
}

func (m Model) renderHelp() string {
	return HelpContent(m.width, m.height, m.opts.Catalog)
}
