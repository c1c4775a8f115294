// Package commands handles slash command parsing for the threex TUI.
package commands

import (
	"fmt"
	"strconv"
	"strings"

	"threex/internal/remix"
	"threex/internal/slots"
)

// Command interface for all command types
type Command interface {
	Type() string
}

// Help returns help text
type Help struct{}

func (Help) Type() string { return "help" }

// Use replaces the model selections and rebuilds the grid
type Use struct {
	Selections []slots.Selection
}

func (Use) Type() string { return "use" }

// AddSlot appends a slot; an empty ModelID reuses the last slot's model
type AddSlot struct {
	ModelID string
}

func (AddSlot) Type() string { return "add" }

// DeleteSlot removes the slot at a 1-based position
type DeleteSlot struct {
	Index int
}

func (DeleteSlot) Type() string { return "del" }

// Retry regenerates one slot with the last prompt
type Retry struct {
	Index int
}

func (Retry) Type() string { return "retry" }

// NewChat clears every slot and the conversation
type NewChat struct{}

func (NewChat) Type() string { return "new" }

// Remix merges the answers; an empty ModelID uses the configured remix model
type Remix struct {
	ModelID string
}

func (Remix) Type() string { return "remix" }

// Social turns the remix (or the first answer) into platform posts
type Social struct {
	Platforms []remix.Platform
}

func (Social) Type() string { return "social" }

// AddContext adds a context file/path
type AddContext struct {
	Path string
}

func (AddContext) Type() string { return "context_add" }

// RemoveContext removes a context file/path
type RemoveContext struct {
	Path string
}

func (RemoveContext) Type() string { return "context_remove" }

// ListContext lists all context files
type ListContext struct{}

func (ListContext) Type() string { return "context_list" }

// ClearContext drops every attachment
type ClearContext struct{}

func (ClearContext) Type() string { return "context_clear" }

// SetSystem sets the system prompt; empty clears it
type SetSystem struct {
	Prompt string
}

func (SetSystem) Type() string { return "system" }

// ShowHistory opens the history browser, or loads ChatID when given
type ShowHistory struct {
	ChatID string
}

func (ShowHistory) Type() string { return "history" }

// Export exports the current chat
type Export struct{}

func (Export) Type() string { return "export" }

// Quit leaves the TUI
type Quit struct{}

func (Quit) Type() string { return "quit" }

// ParseError represents a command parsing error
type ParseError struct {
	Message string
}

func (ParseError) Type() string { return "error" }

// Parse parses user input and returns the appropriate Command.
// Returns nil if the input is not a slash command.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help", "/?":
		return Help{}

	case "/use":
		if len(args) == 0 {
			return ParseError{Message: "/use requires at least one model, e.g. /use gemini-2.0-flash*2 claude-sonnet-4-5"}
		}
		selections, err := ParseSelections(args)
		if err != nil {
			return ParseError{Message: err.Error()}
		}
		return Use{Selections: selections}

	case "/add":
		if len(args) > 1 {
			return ParseError{Message: "/add takes at most one model"}
		}
		return AddSlot{ModelID: strings.Join(args, "")}

	case "/del", "/delete":
		index, err := slotArg(cmd, args)
		if err != nil {
			return ParseError{Message: err.Error()}
		}
		return DeleteSlot{Index: index}

	case "/retry":
		index, err := slotArg(cmd, args)
		if err != nil {
			return ParseError{Message: err.Error()}
		}
		return Retry{Index: index}

	case "/new", "/clear":
		return NewChat{}

	case "/remix":
		if len(args) > 1 {
			return ParseError{Message: "/remix takes at most one model"}
		}
		return Remix{ModelID: strings.Join(args, "")}

	case "/social":
		var targets []remix.Platform
		for _, arg := range args {
			if strings.EqualFold(arg, "all") {
				targets = nil
				break
			}
			p, err := remix.ParsePlatform(arg)
			if err != nil {
				return ParseError{Message: err.Error()}
			}
			targets = append(targets, p)
		}
		return Social{Platforms: targets}

	case "/context":
		if len(args) == 0 {
			return ListContext{}
		}
		subCmd := strings.ToLower(args[0])
		path := strings.Join(args[1:], " ")

		switch subCmd {
		case "add":
			if path == "" {
				return ParseError{Message: "/context add requires a path"}
			}
			return AddContext{Path: path}
		case "remove", "rm":
			if path == "" {
				return ParseError{Message: "/context remove requires a path"}
			}
			return RemoveContext{Path: path}
		case "list", "ls":
			return ListContext{}
		case "clear":
			return ClearContext{}
		default:
			return ParseError{Message: "unknown context subcommand: " + subCmd}
		}

	case "/system":
		// Keep the prompt's own spacing.
		prompt := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))
		return SetSystem{Prompt: prompt}

	case "/history":
		return ShowHistory{ChatID: strings.Join(args, "")}

	case "/export":
		return Export{}

	case "/quit", "/exit", "/q":
		return Quit{}

	default:
		return ParseError{Message: "unknown command: " + cmd}
	}
}

// ParseSelections reads "model" or "model*count" arguments. Repeated
// models are merged in first-seen order.
func ParseSelections(args []string) ([]slots.Selection, error) {
	var out []slots.Selection
	for _, arg := range args {
		modelID, count := arg, 1
		if id, n, ok := strings.Cut(arg, "*"); ok {
			parsed, err := strconv.Atoi(n)
			if err != nil || parsed < 1 {
				return nil, fmt.Errorf("invalid count in %q", arg)
			}
			modelID, count = id, parsed
		}
		if modelID == "" {
			return nil, fmt.Errorf("missing model in %q", arg)
		}

		merged := false
		for i := range out {
			if out[i].ModelID == modelID {
				out[i].Count += count
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, slots.Selection{ModelID: modelID, Count: count})
		}
	}
	if total := slots.TotalCount(out); total > slots.MaxSlots {
		return nil, fmt.Errorf("%d slots requested, maximum is %d", total, slots.MaxSlots)
	}
	return out, nil
}

func slotArg(cmd string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s requires a slot number", cmd)
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 1 || index > slots.MaxSlots {
		return 0, fmt.Errorf("%s: slot must be between 1 and %d", cmd, slots.MaxSlots)
	}
	return index, nil
}

// HelpText returns the help text for all available commands.
func HelpText() string {
	return `Available commands:
  /help                      - Show this help
  /use <model[*n]> ...       - Pick models and slot counts (max 6 slots)
  /add [model]               - Add a slot (defaults to the last slot's model)
  /del <n>                   - Delete slot n
  /retry <n>                 - Regenerate slot n
  /new                       - Start a new chat
  /remix [model]             - Merge the answers into one refined answer
  /social [platform ...|all] - Turn the remix into social posts
  /context add <path>        - Attach a file, directory or image
  /context remove <path>     - Detach a path
  /context list              - List attachments
  /context clear             - Detach everything
  /system [prompt]           - Set or clear the system prompt
  /history [id]              - Browse saved chats, or load one
  /export                    - Export the current chat as markdown
  /quit                      - Leave`
}
