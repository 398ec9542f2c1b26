package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/pipeline"
)

// Ingestor turns settled inbox files into sessions. Files are read once
// their size stops changing; a file that still grows between polls is left
// for the next event.
type Ingestor struct {
	orch   *pipeline.Orchestrator
	cfg    WatchConfig
	logger *slog.Logger

	// settle is how long a file's size must hold still before reading.
	settle time.Duration
}

// NewIngestor builds an Ingestor. A nil logger falls back to slog.Default().
func NewIngestor(orch *pipeline.Orchestrator, cfg WatchConfig, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Ingestor{orch: orch, cfg: cfg, logger: logger, settle: 200 * time.Millisecond}
}

// Run watches the inbox until ctx is cancelled. Per-file failures are logged
// and skipped; only watcher setup errors are returned.
func (in *Ingestor) Run(ctx context.Context) error {
	events, errs, err := StartWatcher(ctx, in.cfg)
	if err != nil {
		return err
	}
	in.logger.Info("ingest.start", "inbox", in.cfg.Root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			in.logger.Warn("ingest.watch.error", "err", err)
		case path, ok := <-events:
			if !ok {
				return nil
			}
			in.ingestFile(ctx, path)
		}
	}
}

func (in *Ingestor) ingestFile(ctx context.Context, path string) {
	if !in.stable(path) {
		in.logger.Debug("ingest.skip.unstable", "path", path)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		in.logger.Warn("ingest.read.failed", "path", path, "err", err)
		return
	}

	s, err := in.orch.Create(ctx, filepath.Base(path), [][]byte{data})
	if err != nil {
		in.logger.Warn("ingest.create.failed", "path", path, "err", err)
		return
	}
	if s.State == constants.StateError {
		in.logger.Warn("ingest.session.error",
			"path", path, "session_id", s.ID, "err", s.LastError)
		return
	}
	in.logger.Info("ingest.ok",
		"path", path,
		"session_id", s.ID,
		"state", s.State,
		"vendor", s.Fields.VendorName)
}

// stable reports whether the file's size held still across one settle
// interval.
func (in *Ingestor) stable(path string) bool {
	a, err := os.Stat(path)
	if err != nil || a.IsDir() {
		return false
	}
	time.Sleep(in.settle)
	b, err := os.Stat(path)
	if err != nil {
		return false
	}
	return a.Size() == b.Size() && a.Size() > 0
}
