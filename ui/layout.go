package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/lessoncast/readalong/timing"
)

// transcriptLayout arranges a dataset's words into wrapped lines, one
// sentence per paragraph. Geometry is computed once per (dataset, width)
// pair; per-frame rendering only restyles the precomputed cells, so a
// highlight update never re-measures text.
type transcriptLayout struct {
	ds    *timing.Dataset
	width int
	cells []wordCell
	lines [][]int // cell indices per line; a nil line is a paragraph break
}

// wordCell is the laid-out position of a single word, measured in
// terminal cells.
type wordCell struct {
	line  int
	col   int
	width int
}

func newTranscriptLayout(ds *timing.Dataset, width int) *transcriptLayout {
	if width < 1 {
		width = 1
	}
	l := &transcriptLayout{
		ds:    ds,
		width: width,
		cells: make([]wordCell, len(ds.Words)),
	}
	for i := range ds.Sentences {
		if i > 0 {
			l.lines = append(l.lines, nil)
		}
		l.wrapSentence(&ds.Sentences[i])
	}
	return l
}

// wrapSentence lays one sentence out greedily. A word wider than the wrap
// width gets a line of its own rather than being split.
func (l *transcriptLayout) wrapSentence(s *timing.Sentence) {
	var line []int
	col := 0
	for wi := s.StartWordIndex; wi <= s.EndWordIndex && wi < len(l.ds.Words); wi++ {
		w := runewidth.StringWidth(l.ds.Words[wi].Text)
		gap := 0
		if col > 0 {
			gap = 1
		}
		if col > 0 && col+gap+w > l.width {
			l.lines = append(l.lines, line)
			line = nil
			col, gap = 0, 0
		}
		l.cells[wi] = wordCell{line: len(l.lines), col: col + gap, width: w}
		line = append(line, wi)
		col += gap + w
	}
	if len(line) > 0 {
		l.lines = append(l.lines, line)
	}
}

// lineOf reports the line a word landed on, or -1 for an out-of-range
// index. Used to keep the active word scrolled into view.
func (l *transcriptLayout) lineOf(wordIndex int) int {
	if wordIndex < 0 || wordIndex >= len(l.cells) {
		return -1
	}
	return l.cells[wordIndex].line
}

func (l *transcriptLayout) lineCount() int {
	return len(l.lines)
}

// render paints the transcript for one highlight state. The active word
// takes the accent style, the rest of its sentence the bright style, and
// everything else stays dim.
func (l *transcriptLayout) render(active timing.Indices) string {
	var b strings.Builder
	for li, cells := range l.lines {
		if li > 0 {
			b.WriteByte('\n')
		}
		for n, wi := range cells {
			if n > 0 {
				b.WriteByte(' ')
			}
			w := &l.ds.Words[wi]
			switch {
			case wi == active.Word:
				b.WriteString(activeWordStyle.Render(w.Text))
			case w.SentenceIndex == active.Sentence:
				b.WriteString(activeSentenceStyle.Render(w.Text))
			default:
				b.WriteString(transcriptStyle.Render(w.Text))
			}
		}
	}
	return b.String()
}
