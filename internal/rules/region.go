package rules

import (
	"sort"
	"unicode/utf8"
)

// LineIndex converts byte offsets of one text into 1-based line and column numbers.
// It is built per target and must not outlive it.
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Position returns the line and column of offset. Columns count runes.
func (l *LineIndex) Position(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(l.text) {
		offset = len(l.text)
	}
	i := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	return i + 1, utf8.RuneCountInString(l.text[l.starts[i]:offset]) + 1
}

// Lines returns the number of lines in the indexed text.
func (l *LineIndex) Lines() int {
	return len(l.starts)
}
