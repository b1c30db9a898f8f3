package vault

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aryannaik/printrun-vault/internal/backend"
	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/metrics"
)

// RowsFetcher loads print-run rows for a product code. *backend.Client
// satisfies it.
type RowsFetcher interface {
	RowsByCode(ctx context.Context, code string) (*backend.Rows, error)
}

// Lookup fetches rows for a resolved product under a timeout and fires the
// search telemetry.
type Lookup struct {
	rows     RowsFetcher
	timeout  time.Duration
	reporter *Reporter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewLookup(rows RowsFetcher, timeout time.Duration, reporter *Reporter, m *metrics.Metrics, logger *zap.Logger) *Lookup {
	if timeout <= 0 {
		timeout = backend.DefaultTimeout
	}
	return &Lookup{
		rows:     rows,
		timeout:  timeout,
		reporter: reporter,
		metrics:  m,
		logger:   logger.Named("lookup"),
	}
}

// Fetch returns the rows for entry. Any failure, including the timeout, comes
// back wrapped in ErrRowsFetchFailed.
func (l *Lookup) Fetch(ctx context.Context, entry index.Entry) (*backend.Rows, error) {
	l.reporter.Report(entry)

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	rows, err := l.rows.RowsByCode(ctx, entry.Code)
	if err != nil {
		l.metrics.Lookup("rows_failed")
		l.logger.Warn("Row fetch failed",
			zap.String("code", entry.Code),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return nil, rowsFetchFailed(entry.Code, err)
	}
	if rows.Meta.DisplayName == "" {
		rows.Meta.DisplayName = entry.DisplayName
	}

	l.metrics.Lookup("rows_ok")
	l.logger.Debug("Fetched rows",
		zap.String("code", entry.Code),
		zap.Int("rows", len(rows.Rows)),
		zap.Duration("took", time.Since(start)))
	return rows, nil
}

// Wait blocks until background telemetry finishes.
func (l *Lookup) Wait() { l.reporter.Wait() }
