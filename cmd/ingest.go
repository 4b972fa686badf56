package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"xihong/internal/bootstrap"
	"xihong/internal/bootstrap/logging"
	"xihong/internal/errs"
	"xihong/internal/usecase/catalog"
	"xihong/internal/usecase/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest pending catalog files into the warehouse",
}

var ingestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one batch of pending files",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		domains, _ := cmd.Flags().GetStringSlice("domains")
		recentHours, _ := cmd.Flags().GetInt("recent-hours")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		scanFirst, _ := cmd.Flags().GetBool("scan")
		asJSON, _ := cmd.Flags().GetBool("json")
		showProgress, _ := cmd.Flags().GetBool("progress")

		if scanFirst {
			result, err := svc.Catalog.Scan(ctx, catalog.ScanInput{Root: app.Config.Catalog.Root})
			if err != nil {
				return errs.Wrap(err, "scan catalog before ingest")
			}
			logging.Info(ctx, "catalog scan before ingest",
				slog.Int("registered", result.Registered),
				slog.Int("updated", result.Updated),
			)
		}

		runCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		input := ingest.RunInput{
			Limit:       limit,
			Domains:     domains,
			RecentHours: recentHours,
		}
		var bar *progressbar.ProgressBar
		if showProgress && !asJSON {
			input.Progress = func(ev ingest.ProgressEvent) {
				if bar == nil {
					bar = newIngestBar(cmd, ev.Total)
				}
				switch ev.Phase {
				case ingest.PhaseDone, ingest.PhaseFailed:
					_ = bar.Add(1)
				default:
					bar.Describe(fmt.Sprintf("[%d/%d] %s %s", ev.Index+1, ev.Total, ev.Phase, ev.FileName))
				}
			}
		}

		stats, err := svc.Ingest.RunOnce(runCtx, input)
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			logging.Error(ctx, "ingest run failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run ingest batch")
		}

		if asJSON {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(stats); err != nil {
				return errs.Wrap(err, "write ingest json")
			}
			return nil
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"ingest %s picked=%d succeeded=%d failed=%d quarantined=%d\n",
			stats.RunID, stats.Picked, stats.Succeeded, stats.Failed, stats.Quarantined,
		); err != nil {
			return errs.Wrap(err, "write ingest output")
		}
		return nil
	}),
}

func newIngestBar(cmd *cobra.Command, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("ingest"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestRunCmd)

	ingestRunCmd.Flags().Int("limit", 0, "Max files in this batch (default: ingest.batch_size)")
	ingestRunCmd.Flags().StringSlice("domains", nil, "Only ingest these data domains")
	ingestRunCmd.Flags().Int("recent-hours", 0, "Only files first seen within this many hours")
	ingestRunCmd.Flags().Duration("timeout", 0, "Stop starting new files after this duration")
	ingestRunCmd.Flags().Bool("scan", false, "Scan catalog.root before ingesting")
	ingestRunCmd.Flags().Bool("json", false, "Print batch stats as JSON")
	ingestRunCmd.Flags().Bool("progress", true, "Render a progress bar on stderr")
}
