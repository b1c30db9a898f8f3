package index

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aryannaik/printrun-vault/internal/metrics"
)

// Source is the remote side of the cache: the full product index and its
// current version token.
type Source interface {
	Index(ctx context.Context) ([]Entry, error)
	IndexVersion(ctx context.Context) (string, error)
}

// Status describes what an EnsureFresh call did.
type Status string

const (
	// StatusCached means the local snapshot was kept (up to date, or the
	// version check could not run).
	StatusCached Status = "cached"
	// StatusRefreshed means a full index was fetched and published.
	StatusRefreshed Status = "refreshed"
	// StatusStale means a refresh was wanted but the fetch failed; the previous
	// snapshot is still served.
	StatusStale Status = "stale"
	// StatusUnavailable means there is no local data and the fetch failed.
	StatusUnavailable Status = "unavailable"
)

// Outcome is the result of EnsureFresh. Err is informational only: it carries
// the failure behind a stale/unavailable status or a failed version check.
type Outcome struct {
	Status  Status
	Reason  string
	Version string
	Entries int
	Err     error
}

// Cache serves the product index from a local Store immediately and keeps it
// in step with the backend.
type Cache struct {
	store   Store
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group     singleflight.Group
	refreshMu sync.Mutex
	current   atomic.Pointer[Snapshot]
}

func NewCache(store Store, source Source, logger *zap.Logger, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		source:  source,
		logger:  logger.Named("index"),
		metrics: m,
		now:     time.Now,
	}
}

// Load reads the persisted snapshot and publishes it as the working index. It
// never touches the network and never fails: a missing or unreadable store
// yields an empty snapshot.
func (c *Cache) Load(ctx context.Context) *Snapshot {
	snap, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("Could not load local index, starting empty", zap.Error(err))
		snap = Snapshot{}
	}
	published := &snap
	c.current.Store(published)
	c.metrics.SetIndexEntries(len(snap.Entries))
	c.logger.Debug("Loaded local index",
		zap.Int("entries", len(snap.Entries)),
		zap.String("version", snap.Version))
	return published
}

var emptySnapshot = &Snapshot{}

// Current returns the published snapshot. The caller must not modify it.
func (c *Cache) Current() *Snapshot {
	if snap := c.current.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// Entries returns the entries of the published snapshot.
func (c *Cache) Entries() []Entry { return c.Current().Entries }

// Len returns the number of entries in the published snapshot.
func (c *Cache) Len() int { return c.Current().Len() }

// EnsureFresh publishes the local snapshot if nothing is published yet, then
// checks the backend version and refetches the full index when the version
// moved, the local index is empty, or force is set. Failures never propagate:
// the previous snapshot stays published and the Outcome says why.
func (c *Cache) EnsureFresh(ctx context.Context, force bool) Outcome {
	if c.current.Load() == nil {
		c.Load(ctx)
	}

	key := "check"
	if force {
		key = "force"
	}
	v, _, _ := c.group.Do(key, func() (any, error) {
		return c.refresh(ctx, force), nil
	})
	out := v.(Outcome)
	c.metrics.IndexRefresh(string(out.Status))
	return out
}

func (c *Cache) refresh(ctx context.Context, force bool) Outcome {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur := c.Current()

	remote, metaErr := c.source.IndexVersion(ctx)
	if metaErr != nil {
		c.logger.Warn("Index version check failed, using local copy", zap.Error(metaErr))
		remote = ""
	}

	var reason string
	switch {
	case force:
		reason = "forced"
	case cur.Len() == 0:
		reason = "empty"
	case remote != "" && remote != cur.Version:
		reason = "version"
	}

	if reason == "" {
		c.logger.Debug("Index is up to date",
			zap.String("version", cur.Version),
			zap.Int("entries", cur.Len()))
		return Outcome{Status: StatusCached, Version: cur.Version, Entries: cur.Len(), Err: metaErr}
	}

	c.logger.Info("Fetching product index",
		zap.String("reason", reason),
		zap.String("localVersion", cur.Version),
		zap.String("remoteVersion", remote))

	entries, err := c.source.Index(ctx)
	if err != nil {
		status := StatusStale
		if cur.Len() == 0 {
			status = StatusUnavailable
		}
		c.logger.Warn("Index fetch failed, keeping previous index",
			zap.String("status", string(status)),
			zap.Int("entries", cur.Len()),
			zap.Error(err))
		return Outcome{Status: status, Reason: reason, Version: cur.Version, Entries: cur.Len(), Err: err}
	}

	entries, dropped := Dedupe(entries)
	if dropped > 0 {
		c.logger.Warn("Dropped index entries with empty or duplicate codes", zap.Int("dropped", dropped))
	}

	next := &Snapshot{
		Entries:   entries,
		Version:   remote,
		UpdatedAt: c.now().UTC(),
	}
	if err := c.store.Save(ctx, *next); err != nil {
		// The fetched index is still good for this process.
		c.logger.Warn("Could not persist index", zap.Error(err))
	}
	c.current.Store(next)
	c.metrics.SetIndexEntries(len(entries))

	c.logger.Info("Index refreshed",
		zap.Int("entries", len(entries)),
		zap.String("version", remote))

	return Outcome{Status: StatusRefreshed, Reason: reason, Version: remote, Entries: len(entries)}
}
