package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

// compressionFloor skips compression for entries too small to benefit.
const compressionFloor = 512

// DiskStore is the persistent tier: encoded datasets written under a
// content-addressed filename, zstd-compressed, with a gob index carrying
// entry metadata across restarts. Unlike the memory tier it does not
// evict on capacity; persisted timing survives until TTL cleanup or an
// explicit delete.
type DiskStore struct {
	basePath string

	// Compression
	compressionLevel int
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder

	// Index for lookups without touching the filesystem
	index map[string]*diskEntry

	mu sync.RWMutex

	stats  Stats
	logger *log.Logger
}

// diskEntry is the index record for one persisted dataset.
type diskEntry struct {
	Key          string
	FilePath     string
	Size         int64 // bytes on disk (possibly compressed)
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskStore opens (or creates) a persistent store rooted at basePath.
// A compressionLevel of 0 disables compression.
func NewDiskStore(basePath string, compressionLevel int, logger *log.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	ds := &DiskStore{
		basePath:         basePath,
		compressionLevel: compressionLevel,
		index:            make(map[string]*diskEntry),
		logger:           logger,
	}

	if compressionLevel > 0 {
		var err error
		ds.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		ds.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	if err := ds.loadIndex(); err != nil {
		// Non-fatal: start with an empty index and let entries repopulate.
		ds.logger.Warn("could not load store index, starting empty",
			"path", basePath, "error", err)
		ds.index = make(map[string]*diskEntry)
	}

	return ds, nil
}

// Get retrieves the encoded dataset for a key. Missing or unreadable
// files drop out of the index and report a miss.
func (ds *DiskStore) Get(key string) ([]byte, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entry, ok := ds.index[key]
	if !ok {
		ds.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		delete(ds.index, key)
		ds.stats.Misses++
		return nil, false
	}

	if entry.Compressed && ds.decoder != nil {
		decompressed, err := ds.decoder.DecodeAll(data, nil)
		if err != nil {
			ds.logger.Warn("dropping undecodable store entry", "key", key, "error", err)
			delete(ds.index, key)
			os.Remove(entry.FilePath)
			ds.stats.Misses++
			return nil, false
		}
		data = decompressed
	}

	entry.LastAccess = time.Now()
	entry.Hits++

	ds.stats.Hits++
	ds.stats.LastAccess = time.Now()
	return data, true
}

// Put persists an encoded dataset, replacing any previous entry for the
// key. The write goes to a temp file first and is renamed into place.
func (ds *DiskStore) Put(key string, value []byte) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	originalSize := int64(len(value))

	dataToWrite := value
	compressed := false
	if ds.encoder != nil && originalSize > compressionFloor {
		compressedData := ds.encoder.EncodeAll(value, nil)
		if len(compressedData) < len(value) {
			dataToWrite = compressedData
			compressed = true
		}
	}

	filePath := ds.generateFilePath(key)
	if err := ds.writeFile(filePath, dataToWrite); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}

	ds.index[key] = &diskEntry{
		Key:          key,
		FilePath:     filePath,
		Size:         int64(len(dataToWrite)),
		OriginalSize: originalSize,
		Timestamp:    time.Now(),
		LastAccess:   time.Now(),
		Compressed:   compressed,
	}
	return nil
}

// Delete removes an entry and its file.
func (ds *DiskStore) Delete(key string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entry, ok := ds.index[key]
	if !ok {
		return nil
	}
	os.Remove(entry.FilePath)
	delete(ds.index, key)
	return nil
}

// Contains checks for a key without updating access time.
func (ds *DiskStore) Contains(key string) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	_, ok := ds.index[key]
	return ok
}

// Keys returns all persisted content IDs.
func (ds *DiskStore) Keys() []string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	keys := make([]string, 0, len(ds.index))
	for key := range ds.index {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns store statistics.
func (ds *DiskStore) Stats() Stats {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	stats := ds.stats
	stats.ItemCount = len(ds.index)
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// DiskSize returns the total bytes the store occupies on disk.
func (ds *DiskStore) DiskSize() int64 {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var size int64
	for _, entry := range ds.index {
		size += entry.Size
	}
	return size
}

// RemoveOlderThan prunes entries last accessed before the cutoff and
// returns how many were removed.
func (ds *DiskStore) RemoveOlderThan(cutoff time.Time) int {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	removed := 0
	for key, entry := range ds.index {
		if entry.LastAccess.Before(cutoff) {
			os.Remove(entry.FilePath)
			delete(ds.index, key)
			removed++
		}
	}
	if removed > 0 {
		ds.stats.Evictions += int64(removed)
		ds.stats.LastEvict = time.Now()
	}
	return removed
}

// Close persists the index.
func (ds *DiskStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	return ds.saveIndex()
}

func (ds *DiskStore) generateFilePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	filename := hex.EncodeToString(hash[:16]) + ".timing"
	return filepath.Join(ds.basePath, filename)
}

// writeFile writes to a temp file and renames it into place so readers
// never observe a partial entry.
func (ds *DiskStore) writeFile(path string, data []byte) error {
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}

func (ds *DiskStore) loadIndex() error {
	file, err := os.Open(ds.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&ds.index)
}

func (ds *DiskStore) saveIndex() error {
	tempPath := ds.indexPath() + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(ds.index)
	closeErr := file.Close()

	if err != nil {
		os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, ds.indexPath())
}

func (ds *DiskStore) indexPath() string {
	return filepath.Join(ds.basePath, "store.index")
}
