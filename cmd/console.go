package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"xihong/internal/bootstrap"
	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
	"xihong/internal/usecase/catalogconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleCatalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse catalog files and their quarantine records",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		domain, _ := cmd.Flags().GetString("domain")
		limit, _ := cmd.Flags().GetInt("limit")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := catalogconsole.NewCatalogModel(ctx, svc.Catalog, svc.Quarantine, catalogconsole.Options{
			Status:          status,
			Domain:          domain,
			Limit:           limit,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run catalog console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleCatalogCmd)
	consoleCatalogCmd.Flags().String("status", "", "Optional status filter (pending|failed|quarantined|ingested)")
	consoleCatalogCmd.Flags().String("domain", "", "Optional data domain filter")
	consoleCatalogCmd.Flags().Int("limit", 50, "Max files listed")
	consoleCatalogCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
