// Package timing provides the timing data model for narrated audio:
// raw speech-mark decoding, normalization into index-aligned word and
// sentence collections, and position lookup used to drive word and
// sentence highlighting during playback.
//
// All times are integer milliseconds and every interval is half-open:
// a word is active for positions in [StartMs, EndMs).
package timing

// DatasetVersion is the schema version written into persisted dataset JSON.
const DatasetVersion = "1.0"

// NoActiveIndex is returned by lookups when no entry is active, i.e. the
// position precedes the first word or the dataset is empty.
const NoActiveIndex = -1

// Word is a single spoken word with its playback interval and the index of
// the sentence it belongs to. CharStart/CharEnd are offsets into the source
// transcript when the upstream aligner provided them, zero otherwise.
type Word struct {
	Text          string `json:"word"`
	StartMs       int64  `json:"startMs"`
	EndMs         int64  `json:"endMs"`
	CharStart     int    `json:"charStart,omitempty"`
	CharEnd       int    `json:"charEnd,omitempty"`
	SentenceIndex int    `json:"sentenceIndex"`
}

// Sentence is a contiguous run of words spoken as one sentence. Word
// indices are inclusive on both ends.
type Sentence struct {
	Text           string `json:"text"`
	StartMs        int64  `json:"startMs"`
	EndMs          int64  `json:"endMs"`
	StartWordIndex int    `json:"wordStartIndex"`
	EndWordIndex   int    `json:"wordEndIndex"`
}

// Dataset is a normalized timing collection for one piece of content.
// Datasets are immutable after normalization and safe to share between
// sessions; reloading content produces a new Dataset rather than mutating
// an existing one.
type Dataset struct {
	Version         string     `json:"version"`
	ContentID       string     `json:"contentId,omitempty"`
	Words           []Word     `json:"words"`
	Sentences       []Sentence `json:"sentences"`
	TotalDurationMs int64      `json:"totalDurationMs"`
}

// Validate checks the structural invariants every normalized dataset must
// hold: ordered non-overlapping words, sentence coverage without index gaps
// or overlap, and sentence times matching the covered words. Cached data
// that fails validation is treated as corrupt and discarded.
func (d *Dataset) Validate() error {
	if len(d.Words) == 0 {
		if len(d.Sentences) != 0 {
			return malformed(d.ContentID, -1, "sentences present without words")
		}
		return nil
	}
	if len(d.Sentences) == 0 {
		return malformed(d.ContentID, -1, "words present without sentences")
	}

	for i, w := range d.Words {
		if w.EndMs <= w.StartMs {
			return malformed(d.ContentID, i, "word interval end %dms <= start %dms", w.EndMs, w.StartMs)
		}
		if i > 0 && w.StartMs < d.Words[i-1].EndMs {
			return malformed(d.ContentID, i, "word overlaps previous (start %dms < previous end %dms)",
				w.StartMs, d.Words[i-1].EndMs)
		}
		if w.SentenceIndex < 0 || w.SentenceIndex >= len(d.Sentences) {
			return malformed(d.ContentID, i, "word sentence index %d out of range", w.SentenceIndex)
		}
	}

	for i, s := range d.Sentences {
		if s.StartWordIndex > s.EndWordIndex {
			return malformed(d.ContentID, i, "sentence word range [%d, %d] inverted",
				s.StartWordIndex, s.EndWordIndex)
		}
		if s.EndWordIndex >= len(d.Words) {
			return malformed(d.ContentID, i, "sentence end word index %d out of range", s.EndWordIndex)
		}
		switch {
		case i == 0 && s.StartWordIndex != 0:
			return malformed(d.ContentID, i, "first sentence starts at word %d, not 0", s.StartWordIndex)
		case i > 0 && s.StartWordIndex != d.Sentences[i-1].EndWordIndex+1:
			return malformed(d.ContentID, i, "sentence coverage gap: starts at word %d after previous end %d",
				s.StartWordIndex, d.Sentences[i-1].EndWordIndex)
		}
		if s.StartMs != d.Words[s.StartWordIndex].StartMs || s.EndMs != d.Words[s.EndWordIndex].EndMs {
			return malformed(d.ContentID, i, "sentence times [%d, %d) do not match covered words",
				s.StartMs, s.EndMs)
		}
		for w := s.StartWordIndex; w <= s.EndWordIndex; w++ {
			if d.Words[w].SentenceIndex != i {
				return malformed(d.ContentID, w, "word assigned to sentence %d but covered by sentence %d",
					d.Words[w].SentenceIndex, i)
			}
		}
	}
	if last := d.Sentences[len(d.Sentences)-1].EndWordIndex; last != len(d.Words)-1 {
		return malformed(d.ContentID, -1, "trailing words after last sentence (covered through %d of %d)",
			last, len(d.Words)-1)
	}

	if lastEnd := d.Words[len(d.Words)-1].EndMs; d.TotalDurationMs < lastEnd {
		return malformed(d.ContentID, -1, "total duration %dms shorter than last word end %dms",
			d.TotalDurationMs, lastEnd)
	}
	return nil
}

// WordCount returns the number of words in the dataset.
func (d *Dataset) WordCount() int {
	return len(d.Words)
}

// SentenceCount returns the number of sentences in the dataset.
func (d *Dataset) SentenceCount() int {
	return len(d.Sentences)
}
