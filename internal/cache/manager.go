package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"github.com/lessoncast/readalong/timing"
)

// Manager coordinates the cache tiers. Get resolves a content ID through
// memory, then disk, then the remote loader, promoting on the way back so
// repeated access stays on the fast tiers. Corrupt persisted entries are
// discarded and treated as misses; memory eviction never touches the
// persistent copies.
type Manager struct {
	memory *MemoryCache
	disk   *DiskStore
	loader Loader

	normalizer *timing.Normalizer
	group      singleflight.Group

	config Config
	logger *log.Logger

	// Cleanup goroutine control
	cleanupStop   chan struct{}
	cleanupTicker *time.Ticker
	cleanupWg     sync.WaitGroup

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates tier outcomes.
type ManagerStats struct {
	MemoryHits     int64
	DiskHits       int64
	RemoteLoads    int64
	CorruptDropped int64
	Failures       int64
	LastCleanup    time.Time
	CleanupRuns    int64
}

// NewManager creates a cache manager. The loader may be nil, in which
// case only content already persisted locally resolves.
func NewManager(cfg Config, loader Loader, normalizer *timing.Normalizer) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = DefaultMemoryCapacity
	}
	if cfg.DiskPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.DiskPath = filepath.Join(home, ".cache", "readalong", "timing")
	}
	if normalizer == nil {
		normalizer = timing.NewNormalizer(timing.NormalizerConfig{Logger: cfg.Logger})
	}

	disk, err := NewDiskStore(cfg.DiskPath, cfg.CompressionLevel, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistent store: %w", err)
	}

	m := &Manager{
		memory:      NewMemoryCache(cfg.MemoryCapacity),
		disk:        disk,
		loader:      loader,
		normalizer:  normalizer,
		config:      cfg,
		logger:      cfg.Logger,
		cleanupStop: make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		m.startCleanupRoutine()
	}
	return m, nil
}

// Get resolves a content ID to a normalized dataset. Concurrent calls for
// the same ID share one resolution; the shared fetch runs under the first
// caller's context.
func (m *Manager) Get(ctx context.Context, contentID string) (*timing.Dataset, error) {
	if ds, ok := m.memory.Get(contentID); ok {
		m.count(func(s *ManagerStats) { s.MemoryHits++ })
		return ds, nil
	}

	v, err, _ := m.group.Do(contentID, func() (interface{}, error) {
		return m.resolve(ctx, contentID)
	})
	if err != nil {
		m.count(func(s *ManagerStats) { s.Failures++ })
		return nil, err
	}
	return v.(*timing.Dataset), nil
}

// resolve walks the slow tiers. Runs once per content ID at a time.
func (m *Manager) resolve(ctx context.Context, contentID string) (*timing.Dataset, error) {
	// A concurrent caller may have resolved while this one queued.
	if ds, ok := m.memory.Get(contentID); ok {
		m.count(func(s *ManagerStats) { s.MemoryHits++ })
		return ds, nil
	}

	var corrupt error
	if data, ok := m.disk.Get(contentID); ok {
		ds, err := timing.DecodeDataset(data)
		if err == nil {
			m.memory.Put(contentID, ds)
			m.count(func(s *ManagerStats) { s.DiskHits++ })
			m.logger.Debug("timing served from disk", "content", contentID)
			return ds, nil
		}
		corrupt = fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		m.logger.Warn("dropping corrupt persisted timing",
			"content", contentID, "error", err)
		m.disk.Delete(contentID)
		m.count(func(s *ManagerStats) { s.CorruptDropped++ })
	}

	if m.loader == nil {
		cause := corrupt
		if cause == nil {
			cause = ErrNotFound
		}
		return nil, &UnavailableError{ContentID: contentID, Err: cause}
	}
	if err := ctx.Err(); err != nil {
		return nil, &UnavailableError{ContentID: contentID, Err: err}
	}

	raw, err := m.loader.FetchTiming(ctx, contentID)
	if err != nil {
		return nil, &UnavailableError{ContentID: contentID, Err: err}
	}
	ds, err := m.normalizer.DecodeTiming(raw, contentID)
	if err != nil {
		return nil, &UnavailableError{ContentID: contentID, Err: err}
	}

	if encoded, err := timing.EncodeDataset(ds); err == nil {
		if err := m.disk.Put(contentID, encoded); err != nil {
			m.logger.Warn("failed to persist timing dataset",
				"content", contentID, "error", err)
		}
	}
	m.memory.Put(contentID, ds)
	m.count(func(s *ManagerStats) { s.RemoteLoads++ })
	m.logger.Debug("timing fetched from origin",
		"content", contentID,
		"words", ds.WordCount(),
		"sentences", ds.SentenceCount())
	return ds, nil
}

// Invalidate drops a content ID from the local tiers.
func (m *Manager) Invalidate(contentID string) {
	m.memory.Delete(contentID)
	m.disk.Delete(contentID)
}

// Contains reports whether a content ID resolves without the loader.
func (m *Manager) Contains(contentID string) bool {
	return m.memory.Contains(contentID) || m.disk.Contains(contentID)
}

// Stats returns a snapshot of manager statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// MemoryStats returns memory tier statistics.
func (m *Manager) MemoryStats() Stats {
	return m.memory.Stats()
}

// DiskStats returns persistent tier statistics.
func (m *Manager) DiskStats() Stats {
	return m.disk.Stats()
}

// DiskSize returns the bytes occupied by the persistent tier.
func (m *Manager) DiskSize() int64 {
	return m.disk.DiskSize()
}

// Close stops the cleanup routine, logs tier statistics, and persists the
// store index.
func (m *Manager) Close() error {
	if m.cleanupTicker != nil {
		close(m.cleanupStop)
		m.cleanupWg.Wait()
	}
	stats := m.Stats()
	m.logger.Debug("closing timing cache",
		"memoryHits", stats.MemoryHits,
		"diskHits", stats.DiskHits,
		"remoteLoads", stats.RemoteLoads,
		"corruptDropped", stats.CorruptDropped,
		"diskSize", humanize.Bytes(uint64(m.DiskSize())))
	return m.disk.Close()
}

func (m *Manager) startCleanupRoutine() {
	m.cleanupTicker = time.NewTicker(m.config.CleanupInterval)
	m.cleanupWg.Add(1)
	go func() {
		defer m.cleanupWg.Done()
		defer m.cleanupTicker.Stop()
		for {
			select {
			case <-m.cleanupTicker.C:
				m.runCleanup()
			case <-m.cleanupStop:
				return
			}
		}
	}()
}

func (m *Manager) runCleanup() {
	cutoff := time.Now().Add(-m.config.TTL)
	removed := m.disk.RemoveOlderThan(cutoff)
	m.count(func(s *ManagerStats) {
		s.CleanupRuns++
		s.LastCleanup = time.Now()
	})
	if removed > 0 {
		m.logger.Debug("pruned expired timing entries", "removed", removed)
	}
}

func (m *Manager) count(update func(*ManagerStats)) {
	m.mu.Lock()
	update(&m.stats)
	m.mu.Unlock()
}

// HashContentID derives a stable filesystem-safe identifier for free-form
// content names (file paths, URLs).
func HashContentID(name string) string {
	hash := sha256.Sum256([]byte(name))
	return hex.EncodeToString(hash[:16])
}
