package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"threex/internal/config"
	"threex/internal/db"
	"threex/internal/export"
	"threex/internal/slots"
	"threex/internal/ui"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, show, export or delete saved chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(store *db.Store) error {
				return listChats(cmd.OutOrStdout(), store, limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of chats to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved chat as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(store *db.Store) error {
				c, err := loadExport(store, args[0])
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), export.Render(c))
				return err
			})
		},
	})

	var dir string
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a saved chat to a markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = exportDir(cfg)
			}
			return withStore(flags, func(store *db.Store) error {
				c, err := loadExport(store, args[0])
				if err != nil {
					return err
				}
				path, err := export.Write(c, dir)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ exported to %s\n", path)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default export.dir or the working directory)")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved chat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(store *db.Store) error {
				chat, err := store.FindChat(args[0])
				if err != nil {
					return err
				}
				if err := store.DeleteChat(chat.ID); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ deleted %s\n", chat.ID[:8])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a saved chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(store *db.Store) error {
				chat, err := store.FindChat(args[0])
				if err != nil {
					return err
				}
				return store.RenameChat(chat.ID, strings.Join(args[1:], " "))
			})
		},
	})

	return cmd
}

func withStore(flags *rootFlags, fn func(*db.Store) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	store, err := db.Open(historyDir(cfg))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func listChats(out io.Writer, store *db.Store, limit int) error {
	chats, err := store.ListChats(limit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(chats) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	dim := color.New(color.FgHiBlack)
	for _, c := range chats {
		dim.Fprintf(out, "[%s] ", c.CreatedAt.Local().Format("2006-01-02 15:04"))
		cyan.Fprintf(out, "%s ", c.ID[:8])
		fmt.Fprintf(out, "%s ", c.Title)
		dim.Fprintf(out, "(%d slots)\n", slots.TotalCount(c.Selections))
	}
	return nil
}

// loadExport rebuilds a saved chat by replaying it onto a fresh board.
func loadExport(store *db.Store, prefix string) (*export.ChatExport, error) {
	chat, err := store.FindChat(prefix)
	if err != nil {
		return nil, err
	}
	responses, err := store.GetResponses(chat.ID)
	if err != nil {
		return nil, err
	}
	files, err := store.GetContextFiles(chat.ID)
	if err != nil {
		return nil, err
	}

	board := slots.NewBoard(slots.State{})
	if err := ui.RestoreChat(board, chat, responses); err != nil {
		return nil, err
	}
	c := export.FromState(chat.ID, chat.Prompt, board.Snapshot(), chat.CreatedAt)
	c.Title = chat.Title
	for _, f := range files {
		c.ContextFiles = append(c.ContextFiles, f.Path)
	}
	return c, nil
}
