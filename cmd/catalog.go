package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"xihong/internal/bootstrap"
	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
	"xihong/internal/usecase/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Discover and inspect catalogued export files",
}

var catalogScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk the raw data root and register new or changed files",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		root, _ := cmd.Flags().GetString("root")
		if root == "" {
			root = app.Config.Catalog.Root
		}

		result, err := svc.Catalog.Scan(ctx, catalog.ScanInput{Root: root})
		if err != nil {
			logging.Error(ctx, "catalog scan failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "scan catalog")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"scan %s root=%s seen=%d registered=%d updated=%d unchanged=%d skipped=%d\n",
			result.RunID, root, result.Seen, result.Registered, result.Updated, result.Unchanged, result.Skipped,
		); err != nil {
			return errs.Wrap(err, "write scan output")
		}
		return nil
	}),
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog files",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		status, _ := cmd.Flags().GetString("status")
		domain, _ := cmd.Flags().GetString("domain")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		files, err := svc.Catalog.List(ctx, catalog.ListFilter{Status: status, Domain: domain, Limit: limit})
		if err != nil {
			return errs.Wrap(err, "list catalog files")
		}

		if asJSON {
			items := make([]catalogListItem, 0, len(files))
			for _, f := range files {
				items = append(items, catalogListItem{
					ID:           f.ID,
					FilePath:     f.FilePath,
					Platform:     f.PlatformCode,
					Domain:       f.DataDomain,
					SubDomain:    f.SubDomain,
					Granularity:  f.Granularity,
					ShopID:       f.ShopID,
					Status:       f.Status,
					ErrorMessage: f.ErrorMessage,
				})
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(items); err != nil {
				return errs.Wrap(err, "write catalog json")
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPLATFORM\tDOMAIN\tGRANULARITY\tSHOP\tFILE")
		for _, f := range files {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				f.ID, f.Status, f.PlatformCode, domainWithSub(f.DataDomain, f.SubDomain), f.Granularity, f.ShopID, f.FilePath)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write catalog list")
		}
		return nil
	}),
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count catalog files by status and domain",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		counts, err := svc.Catalog.Stats(ctx)
		if err != nil {
			return errs.Wrap(err, "catalog stats")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "STATUS\tDOMAIN\tFILES")
		for _, c := range counts {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", c.Status, c.Domain, c.Count)
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write catalog stats")
		}
		return nil
	}),
}

var catalogRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Move failed files back to pending",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ids, _ := cmd.Flags().GetUintSlice("id")
		all, _ := cmd.Flags().GetBool("all-failed")

		input := catalog.RetryInput{All: all}
		for _, id := range ids {
			input.IDs = append(input.IDs, uint64(id))
		}

		reset, err := svc.Catalog.ResetFailed(ctx, input)
		if err != nil {
			logging.Error(ctx, "reset failed files failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "reset failed files")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "reset %d failed file(s) to pending\n", reset); err != nil {
			return errs.Wrap(err, "write retry output")
		}
		return nil
	}),
}

type catalogListItem struct {
	ID           uint64 `json:"id"`
	FilePath     string `json:"file_path"`
	Platform     string `json:"platform_code"`
	Domain       string `json:"data_domain"`
	SubDomain    string `json:"sub_domain,omitempty"`
	Granularity  string `json:"granularity"`
	ShopID       string `json:"shop_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func domainWithSub(domain string, sub string) string {
	if sub == "" {
		return domain
	}
	return domain + "/" + sub
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogScanCmd, catalogListCmd, catalogStatsCmd, catalogRetryCmd)

	catalogScanCmd.Flags().String("root", "", "Raw data root (default: catalog.root from config)")

	catalogListCmd.Flags().String("status", "", "Filter by status (pending|ingested|failed|quarantined)")
	catalogListCmd.Flags().String("domain", "", "Filter by data domain")
	catalogListCmd.Flags().Int("limit", 100, "Max files listed")
	catalogListCmd.Flags().Bool("json", false, "Print JSON instead of a table")

	catalogRetryCmd.Flags().UintSlice("id", nil, "Catalog id to retry (repeatable)")
	catalogRetryCmd.Flags().Bool("all-failed", false, "Retry every failed file")
}
