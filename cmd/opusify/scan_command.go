package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"opusify/internal/media/ffprobe"
	"opusify/internal/pipeline"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List candidate files without converting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			files, err := pipeline.Discover(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "No files matching %q under %s\n", cfg.Scan.Pattern, cfg.Paths.SourceDir)
				return nil
			}

			rows := make([][]string, 0, len(files))
			for _, path := range files {
				rel, relErr := filepath.Rel(cfg.Paths.SourceDir, path)
				if relErr != nil {
					rel = path
				}

				size := "?"
				if info, statErr := os.Stat(path); statErr == nil {
					size = humanize.IBytes(uint64(info.Size()))
				}

				codec := "-"
				duration := "-"
				action := "convert"
				if probe {
					result, probeErr := ffprobe.InspectAudio(cmd.Context(), cfg.FFprobeBinary(), path)
					switch {
					case probeErr != nil:
						codec = "unreadable"
						action = "fail"
					default:
						codec = result.FirstAudioCodec()
						if seconds := result.DurationSeconds(); seconds > 0 {
							duration = (time.Duration(seconds) * time.Second).String()
						}
						if strings.EqualFold(codec, cfg.Encode.Codec) {
							action = "skip"
						}
					}
				}
				rows = append(rows, []string{rel, size, duration, codec, action})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"File", "Size", "Duration", "Codec", "Action"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d candidate files\n", len(files))
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Probe each file's codec to show skip decisions")
	return cmd
}
