// Package export renders a chat comparison as a markdown document.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"threex/internal/slots"
)

// Answer is one settled response in the export
type Answer struct {
	Slot    int
	ModelID string
	Text    string
	Failed  bool
}

// ChatExport contains the data needed to export a chat
type ChatExport struct {
	ID           string
	Title        string
	Prompt       string
	CreatedAt    time.Time
	ExportedAt   time.Time
	Answers      []Answer
	Remix        *Answer
	Social       *Answer
	ContextFiles []string
}

// FromState collects the settled slots of st. Slots still generating are
// exported with what they have streamed so far.
func FromState(id, prompt string, st slots.State, createdAt time.Time) *ChatExport {
	c := &ChatExport{
		ID:        id,
		Title:     TitleFromPrompt(prompt),
		Prompt:    prompt,
		CreatedAt: createdAt,
	}
	for _, s := range st.Slots {
		if !s.HasContent() {
			continue
		}
		c.Answers = append(c.Answers, answerFrom(s))
	}
	if st.Remix.HasContent() {
		a := answerFrom(st.Remix)
		c.Remix = &a
	}
	if st.Social.HasContent() {
		a := answerFrom(st.Social)
		c.Social = &a
	}
	return c
}

func answerFrom(s slots.Slot) Answer {
	return Answer{Slot: s.Index, ModelID: s.ModelID, Text: s.Text(), Failed: s.Phase == slots.Failed}
}

// TitleFromPrompt shortens the first line of a prompt to a title.
func TitleFromPrompt(prompt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	runes := []rune(line)
	if len(runes) > 60 {
		return strings.TrimSpace(string(runes[:60])) + "…"
	}
	if line == "" {
		return "Untitled chat"
	}
	return line
}

// Render generates the markdown for a chat
func Render(c *ChatExport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", c.Title)

	sb.WriteString("---\n\n")
	if c.ID != "" {
		fmt.Fprintf(&sb, "**Chat ID:** `%s`\n\n", c.ID)
	}
	fmt.Fprintf(&sb, "**Created:** %s\n\n", c.CreatedAt.Format("2006-01-02 15:04:05"))
	if models := participants(c.Answers); len(models) > 0 {
		fmt.Fprintf(&sb, "**Models:** %s\n\n", strings.Join(models, ", "))
	}
	sb.WriteString("---\n\n")

	if len(c.ContextFiles) > 0 {
		sb.WriteString("## Context Files\n\n")
		for _, path := range c.ContextFiles {
			fmt.Fprintf(&sb, "- `%s`\n", path)
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Prompt\n\n")
	writeQuoted(&sb, c.Prompt)
	sb.WriteString("\n")

	sb.WriteString("## Responses\n\n")
	for i, a := range c.Answers {
		fmt.Fprintf(&sb, "### Slot %d: %s\n\n", a.Slot, a.ModelID)
		writeAnswer(&sb, a)
		if i < len(c.Answers)-1 {
			sb.WriteString("---\n\n")
		}
	}

	if c.Remix != nil {
		fmt.Fprintf(&sb, "## Remix (%s)\n\n", c.Remix.ModelID)
		writeAnswer(&sb, *c.Remix)
	}
	if c.Social != nil {
		fmt.Fprintf(&sb, "## Social Posts (%s)\n\n", c.Social.ModelID)
		writeAnswer(&sb, *c.Social)
	}

	exported := c.ExportedAt
	if exported.IsZero() {
		exported = time.Now()
	}
	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from threex on %s*\n", exported.Format("2006-01-02 15:04:05"))

	return sb.String()
}

func writeAnswer(sb *strings.Builder, a Answer) {
	text := strings.TrimSpace(a.Text)
	if a.Failed {
		fmt.Fprintf(sb, "> **Failed:** %s\n\n", text)
		return
	}
	sb.WriteString(text)
	sb.WriteString("\n\n")
}

func writeQuoted(sb *strings.Builder, text string) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// participants lists distinct model ids in slot order
func participants(answers []Answer) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range answers {
		if seen[a.ModelID] {
			continue
		}
		seen[a.ModelID] = true
		out = append(out, "`"+a.ModelID+"`")
	}
	return out
}

// Write renders c to <dir>/YYYY-MM-DD-<title>.md and returns the path.
// An existing file of that name gets a numeric suffix.
func Write(c *ChatExport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	base := fmt.Sprintf("%s-%s", c.CreatedAt.Format("2006-01-02"), sanitizeFilename(c.Title))
	path := filepath.Join(dir, base+".md")
	for n := 2; fileExists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.md", base, n))
	}

	if err := os.WriteFile(path, []byte(Render(c)), 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sanitizeFilename keeps lowercase letters, digits, '-' and '_'
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), " ", "-")

	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	result = strings.Trim(result, "-")
	if result == "" {
		result = "chat"
	}
	if len(result) > 50 {
		result = strings.TrimRight(result[:50], "-")
	}
	return result
}
