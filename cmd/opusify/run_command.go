package main

import (
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"opusify/internal/deps"
	"opusify/internal/history"
	"opusify/internal/logging"
	"opusify/internal/pipeline"
	"opusify/internal/report"
	"opusify/internal/runlock"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var workers int
	var strictExit bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert every candidate file under the source tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.Run.DryRun = dryRun
			}
			if cmd.Flags().Changed("workers") {
				cfg.Run.Workers = workers
			}
			if cmd.Flags().Changed("strict-exit") {
				cfg.Run.StrictExit = strictExit
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			statuses := deps.CheckBinaries(deps.Required(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
			}
			if !cfg.Run.DryRun {
				if err := deps.CheckWritable(cfg.Paths.SourceDir, cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Paths.StateDir); err != nil {
					return err
				}
			}

			lock, err := runlock.Acquire(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var store *history.Store
			var runID int64
			startedAt := time.Now()
			if cfg.History.Enabled && !cfg.Run.DryRun {
				store, err = history.Open(cfg)
				if err != nil {
					return fmt.Errorf("open history store: %w", err)
				}
				defer store.Close()
				runID, err = store.BeginRun(runCtx, startedAt, cfg.Run.DryRun)
				if err != nil {
					return fmt.Errorf("record run start: %w", err)
				}
			}

			driver := pipeline.NewDriver(cfg, logger)
			summary, runErr := driver.Run(runCtx)

			if store != nil {
				if err := store.FinishRun(runCtx, runID, time.Now(), summary); err != nil {
					logger.Warn("record run summary", logging.Error(err))
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSummary(summary, time.Since(startedAt)))
			if summary.Failed > 0 {
				fmt.Fprintln(out, renderFailures(summary.Failures))
			}

			if runErr != nil {
				return runErr
			}
			if cfg.Run.StrictExit && summary.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Seen)
			}
			if summary.Failed > 0 {
				fmt.Fprintf(out, "%d files failed; see %s for details\n", summary.Failed, cfg.Paths.LogDir)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report planned conversions without writing anything")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of parallel encode workers")
	cmd.Flags().BoolVar(&strictExit, "strict-exit", false, "Exit non-zero when any file fails")
	return cmd
}

func renderSummary(summary report.Summary, elapsed time.Duration) string {
	rows := [][]string{
		{"Seen", fmt.Sprintf("%d", summary.Seen)},
		{"Converted", fmt.Sprintf("%d", summary.Converted)},
		{"Skipped", fmt.Sprintf("%d", summary.Skipped)},
		{"Failed", fmt.Sprintf("%d", summary.Failed)},
		{"Original size", humanize.IBytes(uint64(max64(summary.OldBytes, 0)))},
		{"Converted size", humanize.IBytes(uint64(max64(summary.NewBytes, 0)))},
		{"Saved", fmt.Sprintf("%s (%.1f%%)", humanizeSigned(summary.BytesSaved()), summary.PercentSaved())},
		{"Elapsed", elapsed.Round(time.Second).String()},
	}

	reasons := make([]string, 0, len(summary.ByReason))
	for reason := range summary.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		rows = append(rows, []string{"Failed: " + reason, fmt.Sprintf("%d", summary.ByReason[reason])})
	}

	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderFailures(failures []report.Failure) string {
	rows := make([][]string, 0, len(failures))
	for _, failure := range failures {
		rows = append(rows, []string{failure.Path, failure.Reason.Label, failure.Detail})
	}
	return renderTable([]string{"File", "Reason", "Detail"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
}

func humanizeSigned(value int64) string {
	if value < 0 {
		return "-" + humanize.IBytes(uint64(-value))
	}
	return humanize.IBytes(uint64(value))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
