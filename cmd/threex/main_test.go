package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"threex/internal/config"
)

func echoConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Providers.Gemini.Enabled = false
	cfg.Providers.Claude.Enabled = false
	cfg.Providers.OpenAI.Enabled = false
	cfg.Providers.Grok.Enabled = false
	cfg.Providers.Echo = config.EchoConfig{Enabled: true, Models: []string{"echo"}}
	cfg.Defaults.Selections = []config.SelectionConfig{{Model: "echo", Count: 2}}
	cfg.Defaults.RemixModel = "echo"
	cfg.History.Enabled = false
	return cfg
}

func TestBoardSelections(t *testing.T) {
	cfg := echoConfig()

	sel, usingDefault, err := boardSelections(cfg, nil)
	if err != nil {
		t.Fatalf("boardSelections: %v", err)
	}
	if !usingDefault || len(sel) != 1 || sel[0].ModelID != "echo" || sel[0].Count != 2 {
		t.Errorf("Expected default echo*2, got %+v (default=%v)", sel, usingDefault)
	}

	sel, usingDefault, err = boardSelections(cfg, []string{"a*2", "b"})
	if err != nil {
		t.Fatalf("boardSelections: %v", err)
	}
	if usingDefault || len(sel) != 2 || sel[0].Count != 2 || sel[1].ModelID != "b" {
		t.Errorf("Expected explicit selections, got %+v (default=%v)", sel, usingDefault)
	}

	if _, _, err := boardSelections(cfg, []string{"a*0"}); err == nil {
		t.Error("Expected error for zero count")
	}
}

func TestReadPrompt(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "args", args: []string{"hello", "there"}, want: "hello there"},
		{name: "stdin", stdin: "  from stdin\n", want: "from stdin"},
		{name: "dash", args: []string{"-"}, stdin: "piped", want: "piped"},
		{name: "empty", stdin: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPrompt(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readPrompt: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":                 "",
		"short":            "****",
		"sk-abcdefghijklm": "sk-a****jklm",
	}
	for in, want := range tests {
		if got := maskKey(in); got != want {
			t.Errorf("maskKey(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestRunAskLocal(t *testing.T) {
	cfg := echoConfig()
	var out bytes.Buffer
	opts := &askOptions{local: true, remix: true}

	if err := runAsk(context.Background(), cfg, "compare these", opts, &out); err != nil {
		t.Fatalf("runAsk: %v", err)
	}

	got := out.String()
	for _, want := range []string{"Slot 1 · echo", "Slot 2 · echo", "[echo] compare these", "Remix · echo", "2 slots in"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestRunAskUnknownModel(t *testing.T) {
	cfg := echoConfig()
	var out bytes.Buffer
	opts := &askOptions{local: true, models: []string{"nope*2"}}

	err := runAsk(context.Background(), cfg, "hello", opts, &out)
	if err == nil {
		t.Fatal("Expected error when every slot fails")
	}
	if !strings.Contains(out.String(), "✗") {
		t.Errorf("Expected failure markers, got:\n%s", out.String())
	}
}
