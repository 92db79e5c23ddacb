package timing

import "sort"

// Indices pairs the active word and sentence for one playback position.
// Either field is NoActiveIndex when the position precedes the first word.
type Indices struct {
	Word     int
	Sentence int
}

// Index resolves playback positions against one dataset. It keeps a
// locality hint (the last matched word) so that the steady 60Hz query
// stream, positions creeping forward a few dozen milliseconds per frame,
// resolves in O(1) without touching the binary search. The hint is an
// optimization only: lookups return the same result hot or cold.
//
// An Index belongs to a single playback session and is not safe for
// concurrent use. The underlying dataset is immutable and may be shared by
// any number of Index values.
type Index struct {
	ds   *Dataset
	hint int
}

// NewIndex creates an index over a normalized dataset.
func NewIndex(ds *Dataset) *Index {
	return &Index{ds: ds, hint: NoActiveIndex}
}

// Dataset returns the indexed dataset.
func (x *Index) Dataset() *Dataset {
	return x.ds
}

// ResetLocality clears the locality hint. Called after seeks, where the
// previous position has no bearing on the next lookup.
func (x *Index) ResetLocality() {
	x.hint = NoActiveIndex
}

// ActiveIndices resolves both the active word and its sentence with a
// single search, so the pair can never disagree about which sentence the
// current word belongs to.
func (x *Index) ActiveIndices(positionMs int64) Indices {
	w := x.lookup(positionMs)
	if w == NoActiveIndex {
		return Indices{Word: NoActiveIndex, Sentence: NoActiveIndex}
	}
	return Indices{Word: w, Sentence: x.ds.Words[w].SentenceIndex}
}

// ActiveWordIndex returns the index of the word whose interval contains
// positionMs. Positions inside a silence gap or past the end of the last
// word resolve to the nearest preceding word (the highlight holds through
// silence rather than flickering off). Positions before the first word
// return NoActiveIndex.
func (x *Index) ActiveWordIndex(positionMs int64) int {
	return x.lookup(positionMs)
}

// ActiveSentenceIndex returns the sentence owning the active word, with
// the same hold-last behavior as ActiveWordIndex.
func (x *Index) ActiveSentenceIndex(positionMs int64) int {
	w := x.lookup(positionMs)
	if w == NoActiveIndex {
		return NoActiveIndex
	}
	return x.ds.Words[w].SentenceIndex
}

// lookup finds the greatest word index whose start is <= positionMs.
func (x *Index) lookup(positionMs int64) int {
	words := x.ds.Words
	if len(words) == 0 || positionMs < words[0].StartMs {
		x.hint = NoActiveIndex
		return NoActiveIndex
	}

	// Locality fast path: the common frame-to-frame case stays on the
	// hinted word or moves to a neighbor.
	if h := x.hint; h >= 0 {
		for _, j := range [3]int{h, h + 1, h - 1} {
			if x.covers(j, positionMs) {
				x.hint = j
				return j
			}
		}
	}

	// Cold path: greatest i with words[i].StartMs <= positionMs.
	i := sort.Search(len(words), func(i int) bool {
		return words[i].StartMs > positionMs
	}) - 1
	x.hint = i
	return i
}

// covers reports whether word j is the active word for positionMs under
// hold-last semantics: its start has been reached and the next word's
// start has not.
func (x *Index) covers(j int, positionMs int64) bool {
	words := x.ds.Words
	if j < 0 || j >= len(words) {
		return false
	}
	if positionMs < words[j].StartMs {
		return false
	}
	return j == len(words)-1 || positionMs < words[j+1].StartMs
}
