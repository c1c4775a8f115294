package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	chatcontext "threex/internal/context"
	"threex/internal/config"
	"threex/internal/db"
	"threex/internal/export"
	"threex/internal/orchestrator"
	"threex/internal/slots"
)

type askOptions struct {
	models     []string
	files      []string
	system     string
	remix      bool
	remixModel string
	local      bool
	save       bool
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Fan one prompt out to every slot and print the answers",
		Long: "Fan one prompt out to every slot and print the answers as they settle.\n" +
			"With no prompt argument, or a single \"-\", the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cfg, prompt, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVarP(&opts.models, "model", "m", nil, "model selection as model[*count], repeatable")
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "attach a file, directory or image as context")
	cmd.Flags().StringVar(&opts.system, "system", "", "system prompt")
	cmd.Flags().BoolVar(&opts.remix, "remix", false, "synthesize the answers with the remix model")
	cmd.Flags().StringVar(&opts.remixModel, "remix-model", "", "model used for --remix (default defaults.remix_model)")
	cmd.Flags().BoolVar(&opts.local, "local", false, "run an in-process server instead of connecting to client.endpoint")
	cmd.Flags().BoolVar(&opts.save, "save", false, "record the chat in history")
	return cmd
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	return prompt, nil
}

func runAsk(ctx context.Context, cfg *config.Config, prompt string, opts *askOptions, out io.Writer) error {
	selections, usingDefault, err := boardSelections(cfg, opts.models)
	if err != nil {
		return err
	}
	st, err := slots.New(selections, usingDefault)
	if err != nil {
		return err
	}
	board := slots.NewBoard(st)

	attachments := &chatcontext.Set{SystemPrompt: opts.system}
	for _, path := range opts.files {
		if _, err := attachments.Add(path); err != nil {
			return fmt.Errorf("attach %s: %w", path, err)
		}
	}

	sess, err := connect(ctx, cfg, opts.local)
	if err != nil {
		return err
	}
	defer sess.close()

	temp, maxTokens := promptSettings(cfg)
	p := orchestrator.Prompt{
		Text:        prompt,
		Context:     attachments.ChatContext(),
		Temperature: temp,
		MaxTokens:   maxTokens,
	}

	started := time.Now()
	s := newSpinner(fmt.Sprintf(" asking %d slots...", len(st.Slots)))
	failed := printRun(s, out, sess.orchestrator.ParallelSeed(ctx, board, p))

	if opts.remix {
		modelID := opts.remixModel
		if modelID == "" {
			modelID = cfg.Defaults.RemixModel
		}
		responses, err := sess.orchestrator.Remix(ctx, board, p, modelID)
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "✗ remix: %v\n", err)
		} else {
			s = newSpinner(" remixing...")
			printRun(s, out, responses)
		}
	}

	if opts.save && cfg.History.Enabled {
		if err := saveAsk(cfg, board.Snapshot(), prompt, attachments); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	color.New(color.FgHiBlack).Fprintf(out, "%d slots in %s\n", len(st.Slots), time.Since(started).Round(time.Millisecond))
	if failed > 0 && failed == len(st.Slots) {
		return errors.New("every slot failed")
	}
	return nil
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	_ = s.Color("cyan")
	s.Start()
	return s
}

// printRun prints every settled slot as it arrives and returns how many failed.
func printRun(s *spinner.Spinner, out io.Writer, responses <-chan orchestrator.Response) int {
	failed := 0
	for r := range responses {
		if !r.Done || r.Stale {
			continue
		}
		s.Stop()
		printResponse(out, r)
		if r.Error != nil {
			failed++
		}
		s.Start()
	}
	s.Stop()
	return failed
}

func printResponse(out io.Writer, r orchestrator.Response) {
	header := color.New(color.FgCyan, color.Bold)
	switch r.Lane {
	case slots.LaneRemix:
		header.Fprintf(out, "── Remix · %s ──\n", r.ModelID)
	case slots.LaneSocial:
		header.Fprintf(out, "── Social · %s ──\n", r.ModelID)
	default:
		header.Fprintf(out, "── Slot %d · %s ──\n", r.Slot, r.ModelID)
	}
	if r.Error != nil {
		color.New(color.FgRed).Fprintf(out, "✗ %s\n\n", r.Message)
		return
	}
	fmt.Fprintln(out, strings.TrimSpace(r.Text))
	color.New(color.FgGreen).Fprintln(out, "✓")
	fmt.Fprintln(out)
}

func saveAsk(cfg *config.Config, st slots.State, prompt string, attachments *chatcontext.Set) error {
	store, err := db.Open(historyDir(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.CreateChat(export.TitleFromPrompt(prompt), prompt, st.Selections)
	if err != nil {
		return err
	}
	for _, att := range attachments.Items() {
		if err := store.AddContextFile(id, att.Path, att.Kind.String()); err != nil {
			return err
		}
	}
	return store.SaveState(id, st, slots.LaneGrid, slots.LaneRemix)
}
