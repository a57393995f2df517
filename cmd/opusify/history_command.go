package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"opusify/internal/history"
	"opusify/internal/services"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var failuresRun int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past run summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("failures") {
				failures, err := store.FailuresForRun(cmd.Context(), failuresRun)
				if err != nil {
					return err
				}
				if len(failures) == 0 {
					fmt.Fprintf(out, "No failures recorded for run %d\n", failuresRun)
					return nil
				}
				rows := make([][]string, 0, len(failures))
				for _, failure := range failures {
					rows = append(rows, []string{
						failure.Path,
						services.ReasonFromCode(failure.ReasonCode).Label,
						failure.Detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Reason", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				saved := run.OldBytes - run.NewBytes
				rows = append(rows, []string{
					fmt.Sprintf("%d", run.ID),
					run.StartedAt.Local().Format(time.DateTime),
					yesNo(run.DryRun),
					fmt.Sprintf("%d", run.Seen),
					fmt.Sprintf("%d", run.Converted),
					fmt.Sprintf("%d", run.Skipped),
					fmt.Sprintf("%d", run.Failed),
					humanizeSigned(saved),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Dry", "Seen", "Conv", "Skip", "Fail", "Saved"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().Int64Var(&failuresRun, "failures", 0, "Show the failure ledger for the given run ID")
	return cmd
}
