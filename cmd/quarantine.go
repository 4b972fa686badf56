package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"xihong/internal/bootstrap"
	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
	quarantineinfra "xihong/internal/infrastructure/quarantine"
	"xihong/internal/ports"
)

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Inspect and resolve quarantined rows and files",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quarantine records",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		filter, err := quarantineFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		records, err := svc.Quarantine.List(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list quarantine records")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tCATALOG\tROW\tTYPE\tRESOLVED\tMESSAGE")
		for _, r := range records {
			_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%t\t%s\n",
				r.ID, r.CatalogID, r.RowNumber, r.ErrorType, r.IsResolved, errs.Truncate(r.ErrorMsg, 80))
		}
		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "write quarantine list")
		}
		return nil
	}),
}

var quarantineResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Mark quarantine records resolved",
	Long:  "Mark quarantine records resolved. Resolving a file-level record moves its quarantined catalog file back to pending.",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ids, _ := cmd.Flags().GetUintSlice("id")
		if len(ids) == 0 {
			return errors.New("at least one --id is required")
		}

		for _, id := range ids {
			if err := svc.Quarantine.Resolve(ctx, uint64(id)); err != nil {
				logging.Error(ctx, "resolve quarantine record failed",
					slog.Uint64("quarantine_id", uint64(id)),
					slog.Any("err", errs.Loggable(err)),
				)
				return errs.Wrapf(err, "resolve quarantine record %d", id)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "resolved quarantine record: %d\n", id); err != nil {
				return errs.Wrap(err, "write resolve output")
			}
		}
		return nil
	}),
}

var quarantineExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export quarantine records as JSON lines",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		filter, err := quarantineFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")

		records, err := svc.Quarantine.List(ctx, filter)
		if err != nil {
			return errs.Wrap(err, "list quarantine records")
		}

		if strings.TrimSpace(outPath) != "" {
			if err := quarantineinfra.NewJSONLSink(outPath).WriteAll(ctx, records); err != nil {
				return errs.Wrap(err, "export quarantine jsonl")
			}
			logging.Info(ctx, "quarantine export written", slog.String("path", outPath), slog.Int("records", len(records)))
			return nil
		}
		return writeQuarantineLines(cmd.OutOrStdout(), records)
	}),
}

func quarantineFilterFromFlags(cmd *cobra.Command) (ports.QuarantineFilter, error) {
	catalogID, _ := cmd.Flags().GetUint64("catalog-id")
	errorType, _ := cmd.Flags().GetString("error-type")
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return ports.QuarantineFilter{}, fmt.Errorf("invalid --limit %d", limit)
	}
	return ports.QuarantineFilter{
		CatalogID:       catalogID,
		ErrorType:       strings.TrimSpace(errorType),
		IncludeResolved: all,
		Limit:           limit,
	}, nil
}

func writeQuarantineLines(w io.Writer, records []ports.QuarantineRecord) error {
	for _, r := range records {
		if _, err := w.Write(quarantineinfra.Encode(r)); err != nil {
			return errs.Wrap(err, "write quarantine export")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(quarantineCmd)
	quarantineCmd.AddCommand(quarantineListCmd, quarantineResolveCmd, quarantineExportCmd)

	for _, c := range []*cobra.Command{quarantineListCmd, quarantineExportCmd} {
		c.Flags().Uint64("catalog-id", 0, "Only records of this catalog file")
		c.Flags().String("error-type", "", "Only this error type")
		c.Flags().Bool("all", false, "Include resolved records")
		c.Flags().Int("limit", 200, "Max records")
	}
	quarantineExportCmd.Flags().String("out", "", "Append to this JSONL file (default: stdout)")

	quarantineResolveCmd.Flags().UintSlice("id", nil, "Quarantine record id (repeatable)")
}
