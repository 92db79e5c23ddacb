package timing

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// NormalizerConfig configures raw timing normalization.
type NormalizerConfig struct {
	// PauseThresholdMs closes an unpunctuated sentence on silence gaps
	// longer than this when sentence structure has to be inferred.
	PauseThresholdMs int64
	Logger           *log.Logger
}

// DefaultNormalizerConfig returns the standard configuration.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		PauseThresholdMs: DefaultPauseThresholdMs,
	}
}

// Normalizer converts raw upstream timing documents into validated,
// index-aligned datasets. It validates timing, it never authors it: word
// intervals pass through exactly as the aligner produced them, and silence
// gaps between words are left in place for lookup-time hold-last handling.
type Normalizer struct {
	pauseThresholdMs int64
	logger           *log.Logger
}

// NewNormalizer creates a normalizer. Zero-value config fields fall back
// to defaults.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	if cfg.PauseThresholdMs <= 0 {
		cfg.PauseThresholdMs = DefaultPauseThresholdMs
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Normalizer{
		pauseThresholdMs: cfg.PauseThresholdMs,
		logger:           cfg.Logger,
	}
}

// DecodeTiming interprets a raw timing payload of either supported family:
// a prebuilt dataset document (top-level "words", sentence coverage repaired
// if declared ranges have gaps) or a speech-mark chunk document (flat words
// or nested sentence containers).
func (n *Normalizer) DecodeTiming(data []byte, contentID string) (*Dataset, error) {
	var probe struct {
		Words []Word `json:"words"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && len(probe.Words) > 0 {
		var ds Dataset
		if err := json.Unmarshal(data, &ds); err != nil {
			return nil, malformed(contentID, -1, "invalid dataset JSON: %v", err)
		}
		return n.normalizeDataset(&ds, contentID)
	}

	raw, err := DecodeChunks(data)
	if err != nil {
		return nil, err
	}
	return n.Normalize(raw, contentID)
}

// Normalize converts a decoded speech-mark document into a dataset.
// Word chunks with empty text are dropped with a logged skip; chunks with
// missing or inverted timing, out-of-order starts, or unknown types fail
// with ErrMalformedTiming. When the document carries sentence containers,
// that grouping is trusted; flat word lists get inferred sentence
// boundaries.
func (n *Normalizer) Normalize(raw RawTiming, contentID string) (*Dataset, error) {
	if len(raw.Chunks) == 0 {
		return nil, malformed(contentID, -1, "no chunks in document")
	}

	nested := false
	for i, c := range raw.Chunks {
		switch c.Type {
		case ChunkSentence:
			nested = true
		case ChunkWord:
		default:
			return nil, malformed(contentID, i, "unknown chunk type %q", c.Type)
		}
	}

	var (
		words     []Word
		sentences []Sentence
		err       error
	)
	if nested {
		words, sentences, err = n.collectNested(raw.Chunks, contentID)
	} else {
		words, err = n.collectWords(raw.Chunks, contentID, 0)
	}
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, malformed(contentID, -1, "no usable words in document")
	}
	if err := checkOrdering(words, contentID); err != nil {
		return nil, err
	}
	if !nested {
		sentences = InferSentences(words, n.pauseThresholdMs)
	}

	return n.finalize(words, sentences, raw.TotalDurationMs, contentID)
}

// collectWords validates a run of word chunks. indexBase offsets chunk
// positions in error messages when collecting out of nested containers.
func (n *Normalizer) collectWords(chunks []Chunk, contentID string, indexBase int) ([]Word, error) {
	words := make([]Word, 0, len(chunks))
	for i, c := range chunks {
		pos := indexBase + i
		if c.Type != ChunkWord {
			return nil, malformed(contentID, pos, "expected word chunk, got %q", c.Type)
		}
		text := strings.TrimSpace(c.Value)
		if text == "" {
			n.logger.Debug("dropping empty word chunk", "content", contentID, "chunk", pos)
			continue
		}
		if c.StartMs == nil || c.EndMs == nil {
			return nil, malformed(contentID, pos, "word %q missing timing", text)
		}
		start, end := *c.StartMs, *c.EndMs
		if start < 0 {
			return nil, malformed(contentID, pos, "word %q has negative start %dms", text, start)
		}
		if end <= start {
			return nil, malformed(contentID, pos, "word %q interval end %dms <= start %dms", text, end, start)
		}
		w := Word{Text: text, StartMs: start, EndMs: end}
		if c.CharStart != nil {
			w.CharStart = *c.CharStart
		}
		if c.CharEnd != nil {
			w.CharEnd = *c.CharEnd
		}
		words = append(words, w)
	}
	return words, nil
}

// collectNested flattens sentence containers into one word list, trusting
// the container grouping. Container times are re-derived from the words
// they hold; containers left empty after drops are skipped whole.
func (n *Normalizer) collectNested(chunks []Chunk, contentID string) ([]Word, []Sentence, error) {
	var words []Word
	sentences := make([]Sentence, 0, len(chunks))
	seen := 0
	for ci, c := range chunks {
		group, err := n.collectWords(c.Chunks, contentID, seen)
		if err != nil {
			return nil, nil, err
		}
		seen += len(c.Chunks)
		if len(group) == 0 {
			n.logger.Debug("dropping empty sentence container", "content", contentID, "chunk", ci)
			continue
		}
		text := strings.TrimSpace(c.Value)
		if text == "" {
			text = joinWords(group)
		}
		start := len(words)
		words = append(words, group...)
		sentences = append(sentences, Sentence{
			Text:           text,
			StartWordIndex: start,
			EndWordIndex:   len(words) - 1,
		})
	}
	return words, sentences, nil
}

// normalizeDataset repairs and validates a prebuilt dataset document.
// Declared sentence grouping is trusted, but coverage is made continuous:
// index gaps between declared sentences are absorbed into the earlier
// sentence, head and tail words are pulled into the first and last
// sentence, and sentence times are re-derived from the covered words.
func (n *Normalizer) normalizeDataset(ds *Dataset, contentID string) (*Dataset, error) {
	if ds.ContentID == "" {
		ds.ContentID = contentID
	}
	if len(ds.Words) == 0 {
		return nil, malformed(contentID, -1, "no words in dataset document")
	}
	for i := range ds.Words {
		ds.Words[i].Text = strings.TrimSpace(ds.Words[i].Text)
		if ds.Words[i].Text == "" {
			return nil, malformed(contentID, i, "empty word text in dataset document")
		}
		if ds.Words[i].EndMs <= ds.Words[i].StartMs {
			return nil, malformed(contentID, i, "word interval end %dms <= start %dms",
				ds.Words[i].EndMs, ds.Words[i].StartMs)
		}
	}
	if err := checkOrdering(ds.Words, contentID); err != nil {
		return nil, err
	}

	sentences := ds.Sentences
	if len(sentences) == 0 {
		sentences = InferSentences(ds.Words, n.pauseThresholdMs)
	} else {
		sentences = n.repairCoverage(ds.Words, sentences, contentID)
	}
	return n.finalize(ds.Words, sentences, ds.TotalDurationMs, ds.ContentID)
}

// repairCoverage makes declared sentence ranges cover the word list
// exactly once, keeping declared texts. Index gaps between sentences are
// absorbed into the earlier sentence's end; overlaps push the later
// sentence forward; head and tail words fall to the first and last
// sentence.
func (n *Normalizer) repairCoverage(words []Word, declared []Sentence, contentID string) []Sentence {
	sentences := make([]Sentence, len(declared))
	copy(sentences, declared)
	sort.SliceStable(sentences, func(i, j int) bool {
		return sentences[i].StartWordIndex < sentences[j].StartWordIndex
	})

	last := len(words) - 1
	repaired := make([]Sentence, 0, len(sentences))
	for i := range sentences {
		s := sentences[i]
		if s.EndWordIndex > last {
			s.EndWordIndex = last
		}
		if len(repaired) == 0 {
			if s.StartWordIndex != 0 {
				n.logger.Debug("pulling head words into first sentence",
					"content", contentID, "declaredStart", s.StartWordIndex)
				s.StartWordIndex = 0
			}
		} else {
			prev := &repaired[len(repaired)-1]
			switch {
			case s.StartWordIndex > prev.EndWordIndex+1:
				n.logger.Debug("absorbing coverage gap into earlier sentence",
					"content", contentID, "sentence", len(repaired)-1,
					"declaredEnd", prev.EndWordIndex, "absorbedThrough", s.StartWordIndex-1)
				prev.EndWordIndex = s.StartWordIndex - 1
			case s.StartWordIndex <= prev.EndWordIndex:
				s.StartWordIndex = prev.EndWordIndex + 1
			}
		}
		if s.StartWordIndex > last || s.EndWordIndex < s.StartWordIndex {
			// Nothing left for this sentence to cover.
			continue
		}
		repaired = append(repaired, s)
	}
	if len(repaired) == 0 {
		return InferSentences(words, n.pauseThresholdMs)
	}
	repaired[len(repaired)-1].EndWordIndex = last
	return repaired
}

// finalize assigns word sentence indexes, re-derives sentence times,
// computes the total duration, and runs the invariant check.
func (n *Normalizer) finalize(words []Word, sentences []Sentence, declaredTotal int64, contentID string) (*Dataset, error) {
	for si := range sentences {
		sentences[si].StartMs = words[sentences[si].StartWordIndex].StartMs
		sentences[si].EndMs = words[sentences[si].EndWordIndex].EndMs
		for w := sentences[si].StartWordIndex; w <= sentences[si].EndWordIndex; w++ {
			words[w].SentenceIndex = si
		}
	}

	total := words[len(words)-1].EndMs
	if declaredTotal > total {
		total = declaredTotal
	}

	ds := &Dataset{
		Version:         DatasetVersion,
		ContentID:       contentID,
		Words:           words,
		Sentences:       sentences,
		TotalDurationMs: total,
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	n.logger.Debug("normalized timing dataset",
		"content", contentID,
		"words", len(words),
		"sentences", len(sentences),
		"durationMs", total)
	return ds, nil
}

func checkOrdering(words []Word, contentID string) error {
	for i := 1; i < len(words); i++ {
		if words[i].StartMs < words[i-1].EndMs {
			return malformed(contentID, i, "word %q starts at %dms before previous end %dms",
				words[i].Text, words[i].StartMs, words[i-1].EndMs)
		}
	}
	return nil
}
