package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache is C3: the refreshed-daily station/response inventory, with the
// reader/writer discipline §4.3/§5 requires — "the pipeline acquires a
// read hold while dividing traces by gain; the refresh task acquires an
// exclusive hold when swapping the object." A plain sync.RWMutex models
// this directly rather than an atomic pointer, since the spec calls out
// the RW discipline itself as the property under test.
type Cache struct {
	source       Source
	metadataPath string
	responsePath string
	log          zerolog.Logger

	mu          sync.RWMutex
	inv         *Inventory
	lastRefresh time.Time
}

// New performs the startup fetch (§4.3: "on startup and then once per
// day"). If the fetch fails, it falls back to the on-disk cache files; if
// neither succeeds the process must abort (§4.3, §6: exit code 1 on
// uncacheable missing metadata at startup).
func New(source Source, metadataPath, responsePath string, log zerolog.Logger) (*Cache, error) {
	c := &Cache{source: source, metadataPath: metadataPath, responsePath: responsePath, log: log}

	inv, err := source.FetchInventory(context.Background())
	if err == nil {
		c.inv = inv
		c.lastRefresh = time.Now().UTC()
		if werr := c.persist(inv); werr != nil {
			log.Warn().Err(werr).Msg("failed to write metadata cache files")
		}
		return c, nil
	}
	log.Warn().Err(err).Msg("metadata fetch failed at startup, falling back to on-disk cache")

	cached, cerr := c.loadCache()
	if cerr != nil {
		return nil, fmt.Errorf("no usable metadata: fetch failed (%v) and no cache available (%v)", err, cerr)
	}
	c.inv = cached
	return c, nil
}

// RefreshIfDue fetches a fresh inventory if it has been at least a day
// since the last successful refresh (or none has happened). A failed
// fetch leaves the previously cached inventory in effect.
func (c *Cache) RefreshIfDue(ctx context.Context, now time.Time) {
	c.mu.RLock()
	due := now.Sub(c.lastRefresh) >= 24*time.Hour
	c.mu.RUnlock()
	if !due {
		return
	}

	inv, err := c.source.FetchInventory(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("metadata refresh failed, keeping previously cached inventory")
		return
	}

	c.mu.Lock()
	c.inv = inv
	c.lastRefresh = now
	c.mu.Unlock()

	if werr := c.persist(inv); werr != nil {
		c.log.Warn().Err(werr).Msg("failed to write metadata cache files")
	}
	c.log.Info().Int("stations", len(inv.Stations)).Msg("metadata refreshed")
}

// Use runs fn with a read hold on the current inventory, the discipline
// the RSAM pipeline uses while dividing traces by gain (§4.3).
func (c *Cache) Use(fn func(*Inventory)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.inv)
}

// LastRefresh returns the time of the last successful inventory refresh,
// for the read API's health check.
func (c *Cache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

func (c *Cache) persist(inv *Inventory) error {
	if err := writeCache(c.metadataPath, inv); err != nil {
		return err
	}
	return writeCache(c.responsePath, inv)
}

func (c *Cache) loadCache() (*Inventory, error) {
	if inv, err := readCache(c.metadataPath); err == nil {
		return inv, nil
	}
	return readCache(c.responsePath)
}
