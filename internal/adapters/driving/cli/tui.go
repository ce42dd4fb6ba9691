package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/tui"
)

var (
	tuiLimit         int
	tuiMatchLocation bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch an interactive search over the indexed résumés.

Controls:
  Enter    - Search / Read résumé
  Tab      - Toggle keyword and natural-language queries
  ↑/k, ↓/j - Navigate results
  d        - Show stored fields
  o        - Open the résumé source
  Esc      - Back
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVarP(&tuiLimit, "limit", "n", 0, "maximum number of results (default from config)")
	tuiCmd.Flags().BoolVar(&tuiMatchLocation, "match-location", false,
		"in natural-language mode, also filter on locations named in the query")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return notConfigured("search")
	}

	app, err := tui.NewApp(&tui.Ports{Search: searchService, Documents: documentService})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(commandContext(cmd)).
		WithLimit(tuiLimit).
		WithMatchLocation(tuiMatchLocation)

	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
