package vault

import (
	"sync"

	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/search"
)

// Snapshots is where the current product index comes from. *index.Cache
// satisfies it.
type Snapshots interface {
	Current() *index.Snapshot
}

// Catalogs hands out the search catalog for the current snapshot, rebuilding
// it only when a new snapshot has been published.
type Catalogs struct {
	src Snapshots

	mu   sync.Mutex
	snap *index.Snapshot
	cat  *search.Catalog
}

func NewCatalogs(src Snapshots) *Catalogs {
	return &Catalogs{src: src}
}

func (c *Catalogs) Current() *search.Catalog {
	snap := c.src.Current()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cat == nil || snap != c.snap {
		c.snap = snap
		var entries []index.Entry
		if snap != nil {
			entries = snap.Entries
		}
		c.cat = search.NewCatalog(entries)
	}
	return c.cat
}
