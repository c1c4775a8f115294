package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"threex/internal/config"
	"threex/internal/models"
)

func newModelsCmd(flags *rootFlags) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models slots can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			var catalog []models.CatalogEntry
			if remote {
				catalog, err = fetchCatalog(cmd.Context(), cfg.Client.Endpoint)
				if err != nil {
					return err
				}
			} else {
				registry := models.NewRegistry(cfg)
				defer registry.StopAll()
				catalog = registry.Catalog()
			}

			out := cmd.OutOrStdout()
			if len(catalog) == 0 {
				fmt.Fprintln(out, "No models available. Enable a provider with `threex config init`.")
				return nil
			}
			dim := color.New(color.FgHiBlack)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROVIDER\tNAME")
			for _, e := range catalog {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Provider, e.Name)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			dim.Fprintf(out, "\ndefault: %s  remix: %s\n", selectionText(cfg), cfg.Defaults.RemixModel)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the server at client.endpoint instead of the local config")
	return cmd
}

func selectionText(cfg *config.Config) string {
	s := ""
	for i, sel := range cfg.Defaults.Selections {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s*%d", sel.Model, sel.Count)
	}
	return s
}
