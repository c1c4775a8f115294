package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"threex/internal/config"
	"threex/internal/db"
	"threex/internal/slots"
	"threex/internal/ui"
)

func newTUICmd(flags *rootFlags) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "tui [model[*count]...]",
		Short: "Open the interactive slot grid",
		Long: "Open the interactive slot grid. Models given as arguments replace the\n" +
			"configured default selection, e.g. `threex tui gemini-2.0-flash*2 claude-haiku-4-5`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			// The grid owns the terminal; logs go to a file instead.
			logFile, err := openTUILog()
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger := pslog.NewWithOptions(logFile, pslog.Options{
				Mode:     pslog.ModeStructured,
				NoColor:  true,
				MinLevel: pslog.InfoLevel,
			})
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)
			log.SetOutput(pslog.LogLogger(logger).Writer())

			selections, usingDefault, err := boardSelections(cfg, args)
			if err != nil {
				return err
			}
			st, err := slots.New(selections, usingDefault)
			if err != nil {
				return err
			}

			sess, err := connect(ctx, cfg, local)
			if err != nil {
				return err
			}
			defer sess.close()

			var store *db.Store
			if cfg.History.Enabled {
				store, err = db.Open(historyDir(cfg))
				if err != nil {
					return err
				}
				defer store.Close()
			}

			temp, maxTokens := promptSettings(cfg)
			model := ui.New(ui.Options{
				Orchestrator: sess.orchestrator,
				Board:        slots.NewBoard(st),
				Store:        store,
				Catalog:      sess.catalog,
				RemixModel:   cfg.Defaults.RemixModel,
				ExportDir:    exportDir(cfg),
				Temperature:  temp,
				MaxTokens:    maxTokens,
			})

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "run an in-process server instead of connecting to client.endpoint")
	return cmd
}

func openTUILog() (*os.File, error) {
	dir := config.DataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func historyDir(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return config.DataDir()
}

func exportDir(cfg *config.Config) string {
	if cfg.Export.Dir != "" {
		return cfg.Export.Dir
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
