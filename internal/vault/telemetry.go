package vault

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aryannaik/printrun-vault/internal/backend"
	"github.com/aryannaik/printrun-vault/internal/index"
)

// SearchLogger records lookups on the backend. *backend.Client satisfies it.
type SearchLogger interface {
	LogSearch(ctx context.Context, ev backend.SearchEvent) error
}

const telemetryTimeout = 10 * time.Second

// Reporter sends lookup telemetry in the background. Callers never wait on it
// and never see its errors.
type Reporter struct {
	sink   SearchLogger
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewReporter(sink SearchLogger, logger *zap.Logger) *Reporter {
	return &Reporter{sink: sink, logger: logger.Named("telemetry")}
}

// Report fires a logSearch call for entry and returns immediately.
func (r *Reporter) Report(entry index.Entry) {
	if r == nil || r.sink == nil {
		return
	}
	ev := backend.SearchEvent{
		SelectedName: entry.DisplayName,
		Year:         entry.Year.String(),
		Sport:        entry.Sport.String(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := r.sink.LogSearch(ctx, ev); err != nil {
			r.logger.Debug("Search telemetry failed", zap.String("code", entry.Code), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight reports finish. Used at shutdown.
func (r *Reporter) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
