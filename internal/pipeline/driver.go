package pipeline

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"opusify/internal/config"
	"opusify/internal/logging"
	"opusify/internal/report"
)

// Driver owns one batch run: discovery, orphan cleanup, the worker pool, and
// outcome collection.
type Driver struct {
	cfg       *config.Config
	logger    *slog.Logger
	processor *Processor
}

// NewDriver constructs a run driver.
func NewDriver(cfg *config.Config, logger *slog.Logger) *Driver {
	return &Driver{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "driver"),
		processor: NewProcessor(cfg, logger),
	}
}

// Run executes the batch against the configured source tree and returns the
// aggregate summary. Per-file failures never abort the run; only discovery
// problems or context cancellation surface as errors.
func (d *Driver) Run(ctx context.Context) (report.Summary, error) {
	files, err := Discover(d.cfg)
	if err != nil {
		return report.Summary{}, err
	}
	d.logger.Info("scan complete", logging.Int("candidates", len(files)))

	d.cleanupOrphans()

	workers := d.cfg.Run.Workers
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	outcomes := make(chan report.Outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			token := uuid.NewString()
			workerLogger := d.logger.With(logging.Int(logging.FieldWorker, workerID))
			for path := range jobs {
				if ctx.Err() != nil {
					outcomes <- report.Outcome{Path: path, Kind: report.KindSkipped, Detail: "interrupted"}
					continue
				}
				workerLogger.Debug("processing", logging.String(logging.FieldPath, path))
				outcomes <- d.processor.Process(ctx, path, token)
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	ledger := report.NewLedger()
	for outcome := range outcomes {
		ledger.Record(outcome)
	}

	if err := ctx.Err(); err != nil {
		return ledger.Summary(), err
	}
	return ledger.Summary(), nil
}

// cleanupOrphans removes staged partial outputs abandoned by an interrupted
// earlier run. Both the dotted prefix and the .part suffix must match so
// nothing user-owned in the staging tree is ever touched.
func (d *Driver) cleanupOrphans() {
	removed := 0
	_ = filepath.WalkDir(d.cfg.Paths.StagingDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil || entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && strings.Contains(name, ".opusify-") && strings.HasSuffix(name, ".part") {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if removed > 0 {
		d.logger.Info("removed orphaned partial outputs", logging.Int("count", removed))
	}
}
