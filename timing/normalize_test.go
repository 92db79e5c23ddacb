package timing_test

import (
	"errors"
	"testing"

	"github.com/lessoncast/readalong/timing"
)

func newNormalizer() *timing.Normalizer {
	return timing.NewNormalizer(timing.DefaultNormalizerConfig())
}

func TestNormalizeFlatChunks(t *testing.T) {
	doc := []byte(`{
		"chunks": [
			{"type": "word", "value": "Hello", "startMs": 0, "endMs": 400, "charStart": 0, "charEnd": 5},
			{"type": "word", "value": "world.", "startMs": 400, "endMs": 900, "charStart": 6, "charEnd": 12},
			{"type": "word", "value": "   ", "startMs": 900, "endMs": 950},
			{"type": "word", "value": "Bye.", "startMs": 1000, "endMs": 1500, "charStart": 13, "charEnd": 17}
		],
		"totalDurationMs": 1800
	}`)

	ds, err := newNormalizer().DecodeTiming(doc, "lesson-1")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}

	if len(ds.Words) != 3 {
		t.Fatalf("got %d words, want 3 (whitespace chunk dropped)", len(ds.Words))
	}
	if len(ds.Sentences) != 2 {
		t.Fatalf("got %d sentences %v, want 2 inferred", len(ds.Sentences), ds.Sentences)
	}
	if ds.ContentID != "lesson-1" {
		t.Errorf("content ID = %q, want %q", ds.ContentID, "lesson-1")
	}
	if ds.Version != timing.DatasetVersion {
		t.Errorf("version = %q, want %q", ds.Version, timing.DatasetVersion)
	}
	if ds.TotalDurationMs != 1800 {
		t.Errorf("total duration = %d, want declared 1800", ds.TotalDurationMs)
	}
	if ds.Words[0].CharStart != 0 || ds.Words[0].CharEnd != 5 || ds.Words[2].CharStart != 13 {
		t.Errorf("char offsets not preserved: %+v", ds.Words)
	}
	if ds.Words[0].SentenceIndex != 0 || ds.Words[2].SentenceIndex != 1 {
		t.Errorf("sentence assignment wrong: %+v", ds.Words)
	}
	if err := ds.Validate(); err != nil {
		t.Errorf("normalized dataset fails validation: %v", err)
	}
}

func TestNormalizeBareArray(t *testing.T) {
	doc := []byte(`[
		{"type": "word", "value": "Just", "startMs": 0, "endMs": 200},
		{"type": "word", "value": "words", "startMs": 200, "endMs": 500}
	]`)

	ds, err := newNormalizer().DecodeTiming(doc, "array")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}
	if len(ds.Words) != 2 || len(ds.Sentences) != 1 {
		t.Errorf("got %d words / %d sentences, want 2 / 1", len(ds.Words), len(ds.Sentences))
	}
	if ds.TotalDurationMs != 500 {
		t.Errorf("total duration = %d, want last word end 500", ds.TotalDurationMs)
	}
}

func TestNormalizeAliasKeys(t *testing.T) {
	doc := []byte(`{
		"chunks": [
			{"type": "word", "word": "Old", "start_time": 0, "end_time": 250, "char_start": 0, "char_end": 3},
			{"type": "word", "word": "style", "start": 250, "end": 600}
		]
	}`)

	ds, err := newNormalizer().DecodeTiming(doc, "alias")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}
	if len(ds.Words) != 2 {
		t.Fatalf("got %d words, want 2", len(ds.Words))
	}
	if ds.Words[0].Text != "Old" || ds.Words[0].EndMs != 250 || ds.Words[0].CharEnd != 3 {
		t.Errorf("alias keys not decoded: %+v", ds.Words[0])
	}
	if ds.Words[1].StartMs != 250 || ds.Words[1].EndMs != 600 {
		t.Errorf("start/end aliases not decoded: %+v", ds.Words[1])
	}
}

func TestNormalizeNestedContainers(t *testing.T) {
	// The grouping splits where inference would not: the container
	// boundary after "morning" has neither punctuation nor a pause.
	doc := []byte(`{
		"chunks": [
			{"type": "sentence", "value": "Good morning", "startMs": 0, "endMs": 800, "chunks": [
				{"type": "word", "value": "Good", "startMs": 0, "endMs": 400},
				{"type": "word", "value": "morning", "startMs": 400, "endMs": 800}
			]},
			{"type": "sentence", "value": "", "chunks": [
				{"type": "word", "value": "class", "startMs": 800, "endMs": 1200}
			]},
			{"type": "sentence", "value": "empty", "chunks": [
				{"type": "word", "value": "  ", "startMs": 1200, "endMs": 1300}
			]}
		]
	}`)

	ds, err := newNormalizer().DecodeTiming(doc, "nested")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}
	if len(ds.Sentences) != 2 {
		t.Fatalf("got %d sentences %v, want 2 (declared grouping kept, empty container dropped)",
			len(ds.Sentences), ds.Sentences)
	}
	if ds.Sentences[0].Text != "Good morning" {
		t.Errorf("sentence 0 text = %q, want declared value", ds.Sentences[0].Text)
	}
	if ds.Sentences[1].Text != "class" {
		t.Errorf("sentence 1 text = %q, want joined words for empty value", ds.Sentences[1].Text)
	}
	if ds.Sentences[0].EndMs != 800 || ds.Sentences[1].StartMs != 800 {
		t.Errorf("sentence times not derived from words: %+v", ds.Sentences)
	}
	if err := ds.Validate(); err != nil {
		t.Errorf("normalized dataset fails validation: %v", err)
	}
}

func TestNormalizeDatasetDocumentRepairsCoverage(t *testing.T) {
	// Declared sentences skip words 2..3 and start at word 1: the repair
	// pulls word 0 into the first sentence and absorbs the gap into it.
	doc := []byte(`{
		"words": [
			{"word": "a", "startMs": 0, "endMs": 100},
			{"word": "b", "startMs": 100, "endMs": 200},
			{"word": "c", "startMs": 200, "endMs": 300},
			{"word": "d", "startMs": 300, "endMs": 400},
			{"word": "e", "startMs": 400, "endMs": 500},
			{"word": "f", "startMs": 500, "endMs": 600}
		],
		"sentences": [
			{"text": "first", "wordStartIndex": 1, "wordEndIndex": 1},
			{"text": "second", "wordStartIndex": 4, "wordEndIndex": 5}
		],
		"totalDurationMs": 600
	}`)

	ds, err := newNormalizer().DecodeTiming(doc, "repair")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}
	if len(ds.Sentences) != 2 {
		t.Fatalf("got %d sentences, want 2", len(ds.Sentences))
	}
	if ds.Sentences[0].StartWordIndex != 0 || ds.Sentences[0].EndWordIndex != 3 {
		t.Errorf("sentence 0 covers [%d, %d], want [0, 3]",
			ds.Sentences[0].StartWordIndex, ds.Sentences[0].EndWordIndex)
	}
	if ds.Sentences[1].StartWordIndex != 4 || ds.Sentences[1].EndWordIndex != 5 {
		t.Errorf("sentence 1 covers [%d, %d], want [4, 5]",
			ds.Sentences[1].StartWordIndex, ds.Sentences[1].EndWordIndex)
	}
	if ds.Sentences[0].StartMs != 0 || ds.Sentences[0].EndMs != 400 {
		t.Errorf("sentence 0 times [%d, %d), want re-derived [0, 400)",
			ds.Sentences[0].StartMs, ds.Sentences[0].EndMs)
	}
	for i, w := range ds.Words {
		want := 0
		if i >= 4 {
			want = 1
		}
		if w.SentenceIndex != want {
			t.Errorf("word %d sentence index = %d, want %d", i, w.SentenceIndex, want)
		}
	}
	if err := ds.Validate(); err != nil {
		t.Errorf("repaired dataset fails validation: %v", err)
	}
}

func TestNormalizeDatasetDocumentWithoutSentences(t *testing.T) {
	doc := []byte(`{
		"words": [
			{"word": "Solo.", "startMs": 0, "endMs": 300},
			{"word": "Again.", "startMs": 300, "endMs": 700}
		]
	}`)

	ds, err := newNormalizer().DecodeTiming(doc, "infer")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}
	if len(ds.Sentences) != 2 {
		t.Errorf("got %d sentences, want 2 inferred", len(ds.Sentences))
	}
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ``},
		{"no chunks", `{"chunks": []}`},
		{"invalid json", `{"chunks": [}`},
		{"unknown chunk type", `{"chunks": [{"type": "phoneme", "value": "x", "startMs": 0, "endMs": 10}]}`},
		{"missing timing", `{"chunks": [{"type": "word", "value": "x"}]}`},
		{"inverted interval", `{"chunks": [{"type": "word", "value": "x", "startMs": 100, "endMs": 100}]}`},
		{"negative start", `{"chunks": [{"type": "word", "value": "x", "startMs": -5, "endMs": 10}]}`},
		{"overlapping words", `{"chunks": [
			{"type": "word", "value": "x", "startMs": 0, "endMs": 300},
			{"type": "word", "value": "y", "startMs": 200, "endMs": 400}
		]}`},
		{"mixed top level", `{"chunks": [
			{"type": "word", "value": "x", "startMs": 0, "endMs": 100},
			{"type": "sentence", "value": "y", "chunks": []}
		]}`},
		{"only empty words", `{"chunks": [{"type": "word", "value": " ", "startMs": 0, "endMs": 100}]}`},
	}

	n := newNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.DecodeTiming([]byte(tt.doc), "bad")
			if err == nil {
				t.Fatal("expected an error, got none")
			}
			if !errors.Is(err, timing.ErrMalformedTiming) {
				t.Errorf("error %v does not match ErrMalformedTiming", err)
			}
		})
	}
}

func TestMalformedDataErrorDetail(t *testing.T) {
	doc := []byte(`{"chunks": [
		{"type": "word", "value": "ok", "startMs": 0, "endMs": 100},
		{"type": "word", "value": "bad", "startMs": 200, "endMs": 150}
	]}`)

	_, err := newNormalizer().DecodeTiming(doc, "detail")
	var detail *timing.MalformedDataError
	if !errors.As(err, &detail) {
		t.Fatalf("error %v is not a MalformedDataError", err)
	}
	if detail.ContentID != "detail" {
		t.Errorf("detail content ID = %q, want %q", detail.ContentID, "detail")
	}
	if detail.Index != 1 {
		t.Errorf("detail index = %d, want 1", detail.Index)
	}
}

func TestEncodeDecodeDataset(t *testing.T) {
	ds, err := newNormalizer().DecodeTiming([]byte(`{
		"chunks": [
			{"type": "word", "value": "Round.", "startMs": 0, "endMs": 500},
			{"type": "word", "value": "Trip.", "startMs": 600, "endMs": 1000}
		]
	}`), "roundtrip")
	if err != nil {
		t.Fatalf("DecodeTiming failed: %v", err)
	}

	data, err := timing.EncodeDataset(ds)
	if err != nil {
		t.Fatalf("EncodeDataset failed: %v", err)
	}
	back, err := timing.DecodeDataset(data)
	if err != nil {
		t.Fatalf("DecodeDataset failed: %v", err)
	}
	if back.ContentID != ds.ContentID || len(back.Words) != len(ds.Words) ||
		len(back.Sentences) != len(ds.Sentences) || back.TotalDurationMs != ds.TotalDurationMs {
		t.Errorf("round trip changed the dataset: %+v vs %+v", back, ds)
	}
}

func TestDecodeDatasetRejectsCorrupt(t *testing.T) {
	// Coverage gap: word 1 claimed by no sentence.
	corrupt := []byte(`{
		"version": "1.0",
		"words": [
			{"word": "a", "startMs": 0, "endMs": 100, "sentenceIndex": 0},
			{"word": "b", "startMs": 100, "endMs": 200, "sentenceIndex": 0}
		],
		"sentences": [
			{"text": "a", "startMs": 0, "endMs": 100, "wordStartIndex": 0, "wordEndIndex": 0}
		],
		"totalDurationMs": 200
	}`)

	if _, err := timing.DecodeDataset(corrupt); !errors.Is(err, timing.ErrMalformedTiming) {
		t.Errorf("corrupt dataset error = %v, want ErrMalformedTiming", err)
	}
}
