package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lessoncast/readalong/timing"
)

// fakeLoader serves canned raw timing documents and counts fetches.
type fakeLoader struct {
	mu       sync.Mutex
	calls    int
	payloads map[string][]byte
	err      error
	delay    time.Duration
}

func (f *fakeLoader) FetchTiming(ctx context.Context, contentID string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.payloads[contentID]
	if !ok {
		return nil, fmt.Errorf("no timing for %q", contentID)
	}
	return data, nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// rawTimingDoc is a minimal upstream speech-mark document: two sentences
// once punctuation and the pause before "Bye." are considered.
func rawTimingDoc() []byte {
	return []byte(`{
		"chunks": [
			{"type": "word", "value": "Hello", "start_time": 0, "end_time": 400},
			{"type": "word", "value": "there.", "start_time": 400, "end_time": 800},
			{"type": "word", "value": "Bye.", "start_time": 1200, "end_time": 1600}
		],
		"totalDurationMs": 2000
	}`)
}

func newTestManager(t *testing.T, loader Loader) *Manager {
	t.Helper()

	cfg := Config{
		MemoryCapacity:   4,
		DiskPath:         t.TempDir(),
		CompressionLevel: 3,
		Logger:           log.New(io.Discard),
	}
	manager, err := NewManager(cfg, loader, nil)
	if err != nil {
		t.Fatalf("Failed to create cache manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestManager_RemoteFetchPersistsBothTiers(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}
	manager := newTestManager(t, loader)

	ds, err := manager.Get(context.Background(), "lesson-001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if ds.WordCount() != 3 {
		t.Errorf("Expected 3 words, got %d", ds.WordCount())
	}
	if ds.SentenceCount() != 2 {
		t.Errorf("Expected 2 sentences, got %d", ds.SentenceCount())
	}
	if ds.TotalDurationMs != 2000 {
		t.Errorf("Expected total duration 2000, got %d", ds.TotalDurationMs)
	}
	if ds.ContentID != "lesson-001" {
		t.Errorf("Expected content ID lesson-001, got %s", ds.ContentID)
	}

	if loader.callCount() != 1 {
		t.Errorf("Expected 1 fetch, got %d", loader.callCount())
	}
	if !manager.memory.Contains("lesson-001") {
		t.Error("dataset missing from memory tier after fetch")
	}
	if !manager.disk.Contains("lesson-001") {
		t.Error("dataset missing from persistent tier after fetch")
	}

	stats := manager.Stats()
	if stats.RemoteLoads != 1 {
		t.Errorf("Expected 1 remote load, got %d", stats.RemoteLoads)
	}
}

func TestManager_MemoryHitSkipsLoader(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}
	manager := newTestManager(t, loader)

	first, err := manager.Get(context.Background(), "lesson-001")
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	second, err := manager.Get(context.Background(), "lesson-001")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}

	if first != second {
		t.Error("memory hit should return the shared dataset pointer")
	}
	if loader.callCount() != 1 {
		t.Errorf("Expected 1 fetch total, got %d", loader.callCount())
	}

	stats := manager.Stats()
	if stats.MemoryHits != 1 {
		t.Errorf("Expected 1 memory hit, got %d", stats.MemoryHits)
	}
}

func TestManager_DiskHitAfterMemoryDrop(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}
	manager := newTestManager(t, loader)

	if _, err := manager.Get(context.Background(), "lesson-001"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Simulate memory eviction. The persistent copy must survive it.
	manager.memory.Delete("lesson-001")

	ds, err := manager.Get(context.Background(), "lesson-001")
	if err != nil {
		t.Fatalf("Get after memory drop failed: %v", err)
	}
	if ds.WordCount() != 3 {
		t.Errorf("Expected 3 words from disk copy, got %d", ds.WordCount())
	}

	if loader.callCount() != 1 {
		t.Errorf("disk hit should not refetch: got %d calls", loader.callCount())
	}
	if !manager.memory.Contains("lesson-001") {
		t.Error("disk hit should promote back into memory")
	}

	stats := manager.Stats()
	if stats.DiskHits != 1 {
		t.Errorf("Expected 1 disk hit, got %d", stats.DiskHits)
	}
}

func TestManager_CorruptDiskEntryRefetched(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}
	manager := newTestManager(t, loader)

	// Seed the persistent tier with bytes that do not decode.
	if err := manager.disk.Put("lesson-001", []byte("corrupt")); err != nil {
		t.Fatalf("seeding disk failed: %v", err)
	}

	ds, err := manager.Get(context.Background(), "lesson-001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ds.WordCount() != 3 {
		t.Errorf("Expected refetched dataset, got %d words", ds.WordCount())
	}
	if loader.callCount() != 1 {
		t.Errorf("Expected 1 fetch after corrupt drop, got %d", loader.callCount())
	}

	stats := manager.Stats()
	if stats.CorruptDropped != 1 {
		t.Errorf("Expected 1 corrupt entry dropped, got %d", stats.CorruptDropped)
	}

	// The refetched copy should have replaced the corrupt one on disk.
	manager.memory.Delete("lesson-001")
	if _, err := manager.Get(context.Background(), "lesson-001"); err != nil {
		t.Fatalf("Get from repaired disk copy failed: %v", err)
	}
	if loader.callCount() != 1 {
		t.Errorf("repaired disk copy should serve without refetch: got %d calls",
			loader.callCount())
	}
}

func TestManager_AllTiersFailing(t *testing.T) {
	originErr := errors.New("origin down")
	loader := &fakeLoader{err: originErr}
	manager := newTestManager(t, loader)

	_, err := manager.Get(context.Background(), "lesson-404")
	if err == nil {
		t.Fatal("Expected error when every tier fails")
	}

	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("error should match ErrContentUnavailable: %v", err)
	}
	if !errors.Is(err, originErr) {
		t.Errorf("error should carry the origin cause: %v", err)
	}

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected UnavailableError, got %T", err)
	}
	if unavailable.ContentID != "lesson-404" {
		t.Errorf("Expected content ID lesson-404, got %s", unavailable.ContentID)
	}

	stats := manager.Stats()
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
}

func TestManager_MalformedRemotePayload(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": []byte(`{"chunks": []}`),
	}}
	manager := newTestManager(t, loader)

	_, err := manager.Get(context.Background(), "lesson-001")
	if err == nil {
		t.Fatal("Expected error for malformed remote payload")
	}
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("error should match ErrContentUnavailable: %v", err)
	}
	if !errors.Is(err, timing.ErrMalformedTiming) {
		t.Errorf("error should carry the malformed-data cause: %v", err)
	}

	// A bad payload must not be persisted.
	if manager.disk.Contains("lesson-001") {
		t.Error("malformed payload should not reach the persistent tier")
	}
}

func TestManager_NilLoaderServesLocalOnly(t *testing.T) {
	manager := newTestManager(t, nil)

	_, err := manager.Get(context.Background(), "lesson-unknown")
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("Expected ErrContentUnavailable without a loader, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("cause should be ErrNotFound for an uncached ID, got %v", err)
	}

	// A corrupt local copy with no loader reports the corruption as cause.
	if err := manager.disk.Put("lesson-broken", []byte("corrupt")); err != nil {
		t.Fatalf("seeding disk failed: %v", err)
	}
	_, err = manager.Get(context.Background(), "lesson-broken")
	if !errors.Is(err, ErrCorruptEntry) {
		t.Errorf("cause should be ErrCorruptEntry for a corrupt local copy, got %v", err)
	}

	// Content already persisted locally still resolves.
	encoded, err := timing.EncodeDataset(testDataset("lesson-local"))
	if err != nil {
		t.Fatalf("EncodeDataset failed: %v", err)
	}
	if err := manager.disk.Put("lesson-local", encoded); err != nil {
		t.Fatalf("seeding disk failed: %v", err)
	}

	ds, err := manager.Get(context.Background(), "lesson-local")
	if err != nil {
		t.Fatalf("Get for persisted content failed: %v", err)
	}
	if ds.ContentID != "lesson-local" {
		t.Errorf("Expected content ID lesson-local, got %s", ds.ContentID)
	}
}

func TestManager_ContextCanceled(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}
	manager := newTestManager(t, loader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := manager.Get(ctx, "lesson-001")
	if err == nil {
		t.Fatal("Expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should carry context.Canceled: %v", err)
	}
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("error should match ErrContentUnavailable: %v", err)
	}
}

func TestManager_SingleflightDeduplicates(t *testing.T) {
	loader := &fakeLoader{
		payloads: map[string][]byte{"lesson-001": rawTimingDoc()},
		delay:    30 * time.Millisecond,
	}
	manager := newTestManager(t, loader)

	var wg sync.WaitGroup
	results := make([]*timing.Dataset, 8)
	errs := make([]error, 8)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.Get(context.Background(), "lesson-001")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent Get %d failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Error("concurrent callers should share one dataset")
		}
	}
	if loader.callCount() != 1 {
		t.Errorf("Expected 1 deduplicated fetch, got %d", loader.callCount())
	}
}

func TestManager_Invalidate(t *testing.T) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}
	manager := newTestManager(t, loader)

	if _, err := manager.Get(context.Background(), "lesson-001"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !manager.Contains("lesson-001") {
		t.Fatal("Contains should report cached content")
	}

	manager.Invalidate("lesson-001")

	if manager.Contains("lesson-001") {
		t.Error("Contains should report false after invalidation")
	}

	if _, err := manager.Get(context.Background(), "lesson-001"); err != nil {
		t.Fatalf("Get after invalidation failed: %v", err)
	}
	if loader.callCount() != 2 {
		t.Errorf("Expected refetch after invalidation, got %d calls", loader.callCount())
	}
}

func TestManager_CleanupRoutine(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping cleanup routine test in short mode")
	}

	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}

	cfg := Config{
		MemoryCapacity:   4,
		DiskPath:         t.TempDir(),
		CompressionLevel: 0,
		TTL:              time.Millisecond,
		CleanupInterval:  50 * time.Millisecond,
		Logger:           log.New(io.Discard),
	}
	manager, err := NewManager(cfg, loader, nil)
	if err != nil {
		t.Fatalf("Failed to create cache manager: %v", err)
	}
	defer manager.Close()

	if _, err := manager.Get(context.Background(), "lesson-001"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !manager.disk.Contains("lesson-001") {
		t.Fatal("dataset missing from persistent tier before cleanup")
	}

	time.Sleep(150 * time.Millisecond)

	stats := manager.Stats()
	if stats.CleanupRuns == 0 {
		t.Error("Cleanup routine did not run")
	}
	if manager.disk.Contains("lesson-001") {
		t.Error("expired entry should have been pruned")
	}
}

func TestHashContentID(t *testing.T) {
	inputs := []string{
		"lessons/intro.json",
		"lessons/chapter-2.json",
		"https://cdn.example.com/timing/abc",
	}

	seen := make(map[string]bool)
	for _, input := range inputs {
		id := HashContentID(input)

		if id != HashContentID(input) {
			t.Errorf("HashContentID not stable for %q", input)
		}
		if seen[id] {
			t.Errorf("Duplicate hash for %q", input)
		}
		seen[id] = true

		if len(id) != 32 { // 16 bytes hex encoded
			t.Errorf("Hash length incorrect: got %d, want 32", len(id))
		}
	}
}

// Benchmark tests
func BenchmarkManager_MemoryHit(b *testing.B) {
	loader := &fakeLoader{payloads: map[string][]byte{
		"lesson-001": rawTimingDoc(),
	}}

	cfg := Config{
		MemoryCapacity:   4,
		DiskPath:         b.TempDir(),
		CompressionLevel: 3,
		Logger:           log.New(io.Discard),
	}
	manager, err := NewManager(cfg, loader, nil)
	if err != nil {
		b.Fatalf("Failed to create cache manager: %v", err)
	}
	defer manager.Close()

	if _, err := manager.Get(context.Background(), "lesson-001"); err != nil {
		b.Fatalf("warmup Get failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		manager.Get(context.Background(), "lesson-001")
	}
}
