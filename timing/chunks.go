package timing

import (
	"bytes"
	"encoding/json"
)

// Chunk type values produced by upstream aligners.
const (
	ChunkWord     = "word"
	ChunkSentence = "sentence"
)

// Chunk is one entry of an upstream speech-mark document: a word, or a
// sentence container whose Chunks hold the words it spans. Times are
// pointers so that absent fields can be told apart from zero.
type Chunk struct {
	Type      string
	Value     string
	StartMs   *int64
	EndMs     *int64
	CharStart *int
	CharEnd   *int
	Chunks    []Chunk
}

// rawChunk tolerates the key variants different aligner versions emit:
// startMs/start_time/start, endMs/end_time/end, value/word.
type rawChunk struct {
	Type      string     `json:"type"`
	Value     *string    `json:"value"`
	Word      *string    `json:"word"`
	StartMs   *int64     `json:"startMs"`
	StartTime *int64     `json:"start_time"`
	Start     *int64     `json:"start"`
	EndMs     *int64     `json:"endMs"`
	EndTime   *int64     `json:"end_time"`
	End       *int64     `json:"end"`
	CharStart *int       `json:"charStart"`
	CharSnake *int       `json:"char_start"`
	CharEnd   *int       `json:"charEnd"`
	CharEndSn *int       `json:"char_end"`
	Chunks    []rawChunk `json:"chunks"`
}

func (r rawChunk) chunk() Chunk {
	c := Chunk{
		Type:      r.Type,
		StartMs:   firstInt64(r.StartMs, r.StartTime, r.Start),
		EndMs:     firstInt64(r.EndMs, r.EndTime, r.End),
		CharStart: firstInt(r.CharStart, r.CharSnake),
		CharEnd:   firstInt(r.CharEnd, r.CharEndSn),
	}
	switch {
	case r.Value != nil:
		c.Value = *r.Value
	case r.Word != nil:
		c.Value = *r.Word
	}
	if len(r.Chunks) > 0 {
		c.Chunks = make([]Chunk, len(r.Chunks))
		for i, child := range r.Chunks {
			c.Chunks[i] = child.chunk()
		}
	}
	return c
}

func firstInt64(ptrs ...*int64) *int64 {
	for _, p := range ptrs {
		if p != nil {
			return p
		}
	}
	return nil
}

func firstInt(ptrs ...*int) *int {
	for _, p := range ptrs {
		if p != nil {
			return p
		}
	}
	return nil
}

// RawTiming is a decoded speech-mark document before normalization.
type RawTiming struct {
	Chunks          []Chunk
	TotalDurationMs int64
}

type rawTiming struct {
	Chunks          []rawChunk `json:"chunks"`
	TotalDurationMs int64      `json:"totalDurationMs"`
}

// DecodeChunks parses an upstream speech-mark document. Both supported
// shapes are accepted: an object with a top-level "chunks" list, or a bare
// JSON array of chunks. Decoding only reads what the aligner wrote;
// structural problems surface in Normalize.
func DecodeChunks(data []byte) (RawTiming, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return RawTiming{}, malformed("", -1, "empty document")
	}

	var doc rawTiming
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Chunks); err != nil {
			return RawTiming{}, malformed("", -1, "invalid chunk array: %v", err)
		}
	} else {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return RawTiming{}, malformed("", -1, "invalid document: %v", err)
		}
	}

	raw := RawTiming{
		Chunks:          make([]Chunk, len(doc.Chunks)),
		TotalDurationMs: doc.TotalDurationMs,
	}
	for i, c := range doc.Chunks {
		raw.Chunks[i] = c.chunk()
	}
	return raw, nil
}

// DecodeDataset parses a persisted normalized dataset and validates it.
// Used by the cache tiers; validation failures mean the entry is corrupt.
func DecodeDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, malformed("", -1, "invalid dataset JSON: %v", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// EncodeDataset serializes a dataset for the persistent tier.
func EncodeDataset(ds *Dataset) ([]byte, error) {
	if ds.Version == "" {
		versioned := *ds
		versioned.Version = DatasetVersion
		return json.Marshal(&versioned)
	}
	return json.Marshal(ds)
}
