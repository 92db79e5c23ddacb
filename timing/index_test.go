package timing

import (
	"math/rand"
	"testing"
)

// demoDataset is the canonical four-word, two-sentence fixture:
// [0,500) [500,1000) | [1000,1500) [1500,2000).
func demoDataset() *Dataset {
	return &Dataset{
		Version:   DatasetVersion,
		ContentID: "demo",
		Words: []Word{
			{Text: "Hello", StartMs: 0, EndMs: 500, SentenceIndex: 0},
			{Text: "world.", StartMs: 500, EndMs: 1000, SentenceIndex: 0},
			{Text: "Good", StartMs: 1000, EndMs: 1500, SentenceIndex: 1},
			{Text: "morning", StartMs: 1500, EndMs: 2000, SentenceIndex: 1},
		},
		Sentences: []Sentence{
			{Text: "Hello world.", StartMs: 0, EndMs: 1000, StartWordIndex: 0, EndWordIndex: 1},
			{Text: "Good morning", StartMs: 1000, EndMs: 2000, StartWordIndex: 2, EndWordIndex: 3},
		},
		TotalDurationMs: 2000,
	}
}

// syntheticDataset builds n contiguous words, ten to a sentence.
func syntheticDataset(n int, wordMs, gapMs int64) *Dataset {
	ds := &Dataset{Version: DatasetVersion, ContentID: "synthetic"}
	var pos int64
	for i := 0; i < n; i++ {
		ds.Words = append(ds.Words, Word{
			Text:          "word",
			StartMs:       pos,
			EndMs:         pos + wordMs,
			SentenceIndex: i / 10,
		})
		pos += wordMs + gapMs
	}
	for start := 0; start < n; start += 10 {
		end := start + 9
		if end > n-1 {
			end = n - 1
		}
		ds.Sentences = append(ds.Sentences, Sentence{
			Text:           "sentence",
			StartMs:        ds.Words[start].StartMs,
			EndMs:          ds.Words[end].EndMs,
			StartWordIndex: start,
			EndWordIndex:   end,
		})
	}
	ds.TotalDurationMs = ds.Words[n-1].EndMs
	return ds
}

func TestActiveIndices(t *testing.T) {
	tests := []struct {
		name         string
		positionMs   int64
		wantWord     int
		wantSentence int
	}{
		{"before first word", -100, NoActiveIndex, NoActiveIndex},
		{"start of first word", 0, 0, 0},
		{"mid second word", 750, 1, 0},
		{"exact word boundary", 500, 1, 0},
		{"exact sentence boundary", 1000, 2, 1},
		{"last ms of last word", 1999, 3, 1},
		{"end of last word holds", 2000, 3, 1},
		{"far past the end holds", 5000, 3, 1},
	}

	ds := demoDataset()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewIndex(ds)
			got := idx.ActiveIndices(tt.positionMs)
			if got.Word != tt.wantWord || got.Sentence != tt.wantSentence {
				t.Errorf("ActiveIndices(%d) = (%d, %d), want (%d, %d)",
					tt.positionMs, got.Word, got.Sentence, tt.wantWord, tt.wantSentence)
			}
		})
	}
}

func TestActiveIndicesHoldsThroughSilence(t *testing.T) {
	ds := &Dataset{
		Words: []Word{
			{Text: "one", StartMs: 0, EndMs: 400, SentenceIndex: 0},
			{Text: "two", StartMs: 1000, EndMs: 1400, SentenceIndex: 0},
		},
		Sentences: []Sentence{
			{Text: "one two", StartMs: 0, EndMs: 1400, StartWordIndex: 0, EndWordIndex: 1},
		},
		TotalDurationMs: 1400,
	}
	idx := NewIndex(ds)

	for _, pos := range []int64{400, 500, 700, 999} {
		if got := idx.ActiveWordIndex(pos); got != 0 {
			t.Errorf("ActiveWordIndex(%d) in gap = %d, want 0 (hold last)", pos, got)
		}
	}
	if got := idx.ActiveWordIndex(1000); got != 1 {
		t.Errorf("ActiveWordIndex(1000) = %d, want 1", got)
	}
}

func TestActiveIndicesEmptyDataset(t *testing.T) {
	idx := NewIndex(&Dataset{})
	for _, pos := range []int64{-10, 0, 1000} {
		if got := idx.ActiveIndices(pos); got.Word != NoActiveIndex || got.Sentence != NoActiveIndex {
			t.Errorf("ActiveIndices(%d) on empty dataset = (%d, %d), want (-1, -1)",
				pos, got.Word, got.Sentence)
		}
	}
}

// TestLookupHintEquivalence verifies the locality hint never changes the
// result: a warm index sweeping positions matches a cold index at every
// position, including backward and random jumps.
func TestLookupHintEquivalence(t *testing.T) {
	ds := syntheticDataset(200, 180, 40)
	end := ds.TotalDurationMs + 500

	t.Run("forward sweep", func(t *testing.T) {
		warm := NewIndex(ds)
		for pos := int64(-50); pos <= end; pos += 7 {
			want := NewIndex(ds).ActiveWordIndex(pos)
			if got := warm.ActiveWordIndex(pos); got != want {
				t.Fatalf("warm lookup(%d) = %d, cold = %d", pos, got, want)
			}
		}
	})

	t.Run("random jumps", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		warm := NewIndex(ds)
		for i := 0; i < 5000; i++ {
			pos := rng.Int63n(end+100) - 50
			want := NewIndex(ds).ActiveWordIndex(pos)
			if got := warm.ActiveWordIndex(pos); got != want {
				t.Fatalf("warm lookup(%d) = %d, cold = %d", pos, got, want)
			}
		}
	})

	t.Run("repeated position is stable", func(t *testing.T) {
		warm := NewIndex(ds)
		first := warm.ActiveWordIndex(4321)
		for i := 0; i < 10; i++ {
			if got := warm.ActiveWordIndex(4321); got != first {
				t.Fatalf("repeated lookup changed: %d then %d", first, got)
			}
		}
	})
}

func TestResetLocality(t *testing.T) {
	ds := demoDataset()
	idx := NewIndex(ds)

	idx.ActiveWordIndex(1700)
	idx.ResetLocality()
	if got := idx.ActiveWordIndex(100); got != 0 {
		t.Errorf("ActiveWordIndex(100) after reset = %d, want 0", got)
	}
}

func TestWordAndSentenceNeverDisagree(t *testing.T) {
	ds := syntheticDataset(100, 150, 60)
	idx := NewIndex(ds)
	for pos := int64(0); pos <= ds.TotalDurationMs; pos += 13 {
		pair := idx.ActiveIndices(pos)
		if pair.Word == NoActiveIndex {
			continue
		}
		if want := ds.Words[pair.Word].SentenceIndex; pair.Sentence != want {
			t.Fatalf("position %d: word %d belongs to sentence %d, ActiveIndices said %d",
				pos, pair.Word, want, pair.Sentence)
		}
	}
}

func BenchmarkActiveIndicesSteady(b *testing.B) {
	ds := syntheticDataset(2000, 280, 20)
	idx := NewIndex(ds)
	b.ReportAllocs()
	b.ResetTimer()

	var pos int64
	for i := 0; i < b.N; i++ {
		idx.ActiveIndices(pos)
		pos += 16 // one frame at ~60Hz
		if pos > ds.TotalDurationMs {
			pos = 0
		}
	}
}

func BenchmarkActiveIndicesCold(b *testing.B) {
	ds := syntheticDataset(2000, 280, 20)
	idx := NewIndex(ds)
	rng := rand.New(rand.NewSource(7))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		idx.ResetLocality()
		idx.ActiveIndices(rng.Int63n(ds.TotalDurationMs))
	}
}
