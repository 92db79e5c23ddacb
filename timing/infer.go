package timing

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultPauseThresholdMs is the silence gap between consecutive words that
// closes a sentence even without terminal punctuation. Natural pauses
// between sentences in narrated speech sit well above this; pauses inside a
// sentence stay below it.
const DefaultPauseThresholdMs = 350

// Multi-letter dotted acronyms: U.S., U.S.A., i.e., e.g. and friends.
var acronymRegex = regexp.MustCompile(`^[A-Za-z]\.(?:[A-Za-z]\.?)+$`)

// Abbreviations that never close a sentence, regardless of what follows.
// Titles almost always precede a capitalized name.
var titleAbbreviations = makeSet(
	"dr", "mr", "mrs", "ms", "prof", "sr", "jr", "rev", "gen", "col",
	"sgt", "capt", "lt", "cmdr", "st", "hon", "fr",
)

// Abbreviations that usually continue a sentence. A following capitalized
// word is taken as a genuine sentence break; a lowercase word or a number
// means the sentence runs on ("e.g. apples", "Jan. 15").
var commonAbbreviations = makeSet(
	// latin and editorial
	"etc", "vs", "eg", "ie", "cf", "al", "approx", "dept", "est", "min",
	"max", "no", "vol", "pp", "ed",
	// corporate
	"inc", "corp", "ltd", "co", "llc",
	// months
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct",
	"nov", "dec",
	// days
	"mon", "tue", "wed", "thu", "fri", "sat", "sun",
	// measures
	"ft", "in", "oz", "lb", "lbs", "kg", "km", "cm", "mm", "mi", "hr", "sec",
)

func makeSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// InferSentences groups words into sentences when the upstream timing data
// carries no sentence structure of its own. A sentence closes on terminal
// punctuation (unless the token is a known abbreviation or dotted acronym),
// on a silence gap longer than pauseThresholdMs, and at the end of input.
//
// The words must already be validated and ordered; returned sentences cover
// the input without gaps. Word SentenceIndex fields are not touched here;
// the normalizer assigns them from the returned coverage.
//
// Abbreviation handling is a heuristic over a fixed list; tokens outside
// the list that legitimately end with a dot (rare foreign abbreviations,
// initials in unusual positions) will split a sentence early.
func InferSentences(words []Word, pauseThresholdMs int64) []Sentence {
	if len(words) == 0 {
		return nil
	}
	if pauseThresholdMs <= 0 {
		pauseThresholdMs = DefaultPauseThresholdMs
	}

	sentences := make([]Sentence, 0, len(words)/8+1)
	start := 0
	for i := range words {
		last := i == len(words)-1

		closes := last
		if !closes {
			next := words[i+1]
			switch {
			case endsSentence(words[i].Text, next.Text):
				closes = true
			case next.StartMs-words[i].EndMs > pauseThresholdMs:
				closes = true
			}
		}
		if !closes {
			continue
		}

		sentences = append(sentences, Sentence{
			Text:           joinWords(words[start : i+1]),
			StartMs:        words[start].StartMs,
			EndMs:          words[i].EndMs,
			StartWordIndex: start,
			EndWordIndex:   i,
		})
		start = i + 1
	}
	return sentences
}

// endsSentence reports whether a word token terminates a sentence, given
// the token that follows it.
func endsSentence(token, next string) bool {
	trimmed := strings.TrimRightFunc(token, isTrailingCloser)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '!', '?':
		return true
	case '.':
	default:
		return false
	}

	// Terminal dot: guard against abbreviations before splitting.
	bare := strings.ToLower(strings.TrimSuffix(trimmed, "."))
	bare = strings.TrimLeftFunc(bare, func(r rune) bool { return !unicode.IsLetter(r) })
	if bare == "" {
		// Stray punctuation ("...", "5.") is not something to judge a
		// sentence boundary by; let the pause heuristic decide.
		return false
	}
	switch {
	case titleAbbreviations[bare]:
		return false
	case acronymRegex.MatchString(trimmed):
		return false
	case commonAbbreviations[bare]:
		// "etc. Then we left" is a break; "e.g. apples" and "Jan. 15" run on.
		return startsUpper(next)
	}
	return true
}

// isTrailingCloser matches quotes and brackets that may follow terminal
// punctuation: `word."` still ends a sentence.
func isTrailingCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}

func startsUpper(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) {
			if unicode.IsDigit(r) {
				return false
			}
			continue
		}
		return unicode.IsUpper(r)
	}
	return false
}

func joinWords(words []Word) string {
	if len(words) == 1 {
		return words[0].Text
	}
	var b strings.Builder
	size := len(words) - 1
	for i := range words {
		size += len(words[i].Text)
	}
	b.Grow(size)
	for i := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i].Text)
	}
	return b.String()
}
