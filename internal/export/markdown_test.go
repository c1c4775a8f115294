package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"threex/internal/slots"
)

func settledState(t *testing.T) slots.State {
	t.Helper()
	st, err := slots.New([]slots.Selection{{ModelID: "gemini-2.0-flash", Count: 2}, {ModelID: "claude-sonnet-4-5", Count: 1}}, false)
	if err != nil {
		t.Fatalf("slots.New() failed: %v", err)
	}
	var tickets []slots.Ticket
	for i := 1; i <= 3; i++ {
		var tk slots.Ticket
		st, tk, err = slots.BeginGeneration(st, i)
		if err != nil {
			t.Fatalf("BeginGeneration(%d) failed: %v", i, err)
		}
		tickets = append(tickets, tk)
	}
	st, _ = slots.Finalize(st, tickets[0], "Use an LRU cache.")
	st, _ = slots.Finalize(st, tickets[1], "Here's the implementation:\n\n```go\ntype Cache struct{}\n```")
	st, _ = slots.Fail(st, tickets[2], "Rate limit exceeded. Please wait a moment and try again.")
	return st
}

func TestRender(t *testing.T) {
	c := FromState("abc123", "What's the best cache?\nDetails follow.", settledState(t), time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC))
	c.ContextFiles = []string{"/home/test/project/cache.go"}
	c.ExportedAt = time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC)

	result := Render(c)

	want := []string{
		"# What's the best cache?",
		"**Chat ID:** `abc123`",
		"**Created:** 2026-02-01 14:30:00",
		"**Models:** `gemini-2.0-flash`, `claude-sonnet-4-5`",
		"`/home/test/project/cache.go`",
		"> What's the best cache?\n> Details follow.",
		"### Slot 1: gemini-2.0-flash",
		"Use an LRU cache.",
		"```go\ntype Cache struct{}\n```",
		"### Slot 3: claude-sonnet-4-5",
		"> **Failed:** Rate limit exceeded.",
		"*Exported from threex on 2026-02-01 15:00:00*",
	}
	for _, w := range want {
		if !strings.Contains(result, w) {
			t.Errorf("Expected %q in output\ngot: %s", w, result)
		}
	}
	if strings.Contains(result, "## Remix") {
		t.Error("Expected no remix section without a remix")
	}
}

func TestRenderRemixAndSocial(t *testing.T) {
	st := settledState(t)
	st, tk, err := slots.BeginLane(st, slots.LaneRemix, "gemini-2.5-pro")
	if err != nil {
		t.Fatalf("BeginLane(remix) failed: %v", err)
	}
	st, _ = slots.Finalize(st, tk, "Combined answer.")
	st, tk, err = slots.BeginLane(st, slots.LaneSocial, "gemini-2.5-pro")
	if err != nil {
		t.Fatalf("BeginLane(social) failed: %v", err)
	}
	st, _ = slots.AppendChunk(st, tk, "### X\nshort post")

	result := Render(FromState("", "q", st, time.Now()))
	if !strings.Contains(result, "## Remix (gemini-2.5-pro)\n\nCombined answer.") {
		t.Errorf("Expected remix section, got: %s", result)
	}
	if !strings.Contains(result, "## Social Posts (gemini-2.5-pro)") || !strings.Contains(result, "short post") {
		t.Errorf("Expected partial social section, got: %s", result)
	}
	if strings.Contains(result, "**Chat ID:**") {
		t.Error("Expected no chat id line without an id")
	}
}

func TestTitleFromPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"Why is the sky blue?", "Why is the sky blue?"},
		{"  first line\nsecond", "first line"},
		{"", "Untitled chat"},
		{strings.Repeat("a", 70), strings.Repeat("a", 60) + "…"},
	}
	for _, tt := range tests {
		if got := TitleFromPrompt(tt.prompt); got != tt.want {
			t.Errorf("TitleFromPrompt(%q) = %q, expected %q", tt.prompt, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple Name", "simple-name"},
		{"Test/Chat", "testchat"},
		{"Chat #1!", "chat-1"},
		{"   spaces   ", "spaces"},
		{"Multiple---Hyphens", "multiple-hyphens"},
		{"", "chat"},
		{"This is a very long name that should be truncated to fifty characters maximum", "this-is-a-very-long-name-that-should-be-truncated"},
	}

	for _, test := range tests {
		result := sanitizeFilename(test.input)
		if result != test.expected {
			t.Errorf("sanitizeFilename(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestWrite(t *testing.T) {
	tmpDir := t.TempDir()
	c := &ChatExport{
		Title:     "Write Test",
		Prompt:    "Test message",
		CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}

	path, err := Write(c, tmpDir)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if filepath.Base(path) != "2026-02-01-write-test.md" {
		t.Errorf("Expected filename %q, got %q", "2026-02-01-write-test.md", filepath.Base(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if !strings.Contains(string(content), "# Write Test") {
		t.Error("Expected title in file content")
	}

	second, err := Write(c, tmpDir)
	if err != nil {
		t.Fatalf("second Write() failed: %v", err)
	}
	if filepath.Base(second) != "2026-02-01-write-test-2.md" {
		t.Errorf("Expected a suffixed filename, got %q", filepath.Base(second))
	}
}
