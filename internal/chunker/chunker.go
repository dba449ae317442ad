package chunker

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"textanywhere/internal/errs"
)

// Chunk is a contiguous slice of a document's text. Start and End are
// character (rune) offsets into the document, End exclusive.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// separator is one level of the split hierarchy. A nil re means characters.
type separator struct {
	name string
	re   *regexp.Regexp
}

// separators are ordered coarsest to finest.
var separators = []separator{
	{name: "paragraph", re: regexp.MustCompile(`\n\n+`)},
	{name: "line", re: regexp.MustCompile(`\n`)},
	{name: "sentence", re: regexp.MustCompile(`[.!?]+[ \t]+|[。！？]+`)},
	{name: "word", re: regexp.MustCompile(`[ \t]+`)},
	{name: "character"},
}

// Splitter partitions text into windows of at most size characters where
// consecutive windows share exactly overlap characters.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the window policy. Overlap must be smaller than size.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errs.Config("chunk_size", strconv.Itoa(size), "must be greater than 0")
	}
	if overlap < 0 {
		return nil, errs.Config("chunk_overlap", strconv.Itoa(overlap), "must not be negative")
	}
	if overlap >= size {
		return nil, errs.Config("chunk_overlap", strconv.Itoa(overlap), "must be less than chunk_size "+strconv.Itoa(size))
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the target maximum characters per chunk.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the characters shared by consecutive chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// step is the largest piece that always fits after an overlap prefix.
func (s *Splitter) step() int { return s.size - s.overlap }

// Split returns the chunks of text in document order.
func (s *Splitter) Split(text string) []Chunk {
	if text == "" {
		return nil
	}
	pieces := s.pieces(text, 0, nil)

	bounds := make([]int, 1, len(pieces)+1)
	for _, p := range pieces {
		bounds = append(bounds, bounds[len(bounds)-1]+utf8.RuneCountInString(p))
	}
	runes := []rune(text)
	n := len(runes)

	var chunks []Chunk
	start, prevEnd := 0, 0
	for {
		end := s.windowEnd(bounds, start, prevEnd)
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end >= n {
			break
		}
		prevEnd = end
		start = end - s.overlap
	}
	return chunks
}

// windowEnd picks the furthest piece boundary that keeps the window within
// size. When no such boundary lies past prevEnd the next unit is taken whole.
// The window always extends beyond the overlap so the next start advances.
func (s *Splitter) windowEnd(bounds []int, start, prevEnd int) int {
	n := bounds[len(bounds)-1]
	limit := start + s.size

	var end int
	if j := sort.SearchInts(bounds, limit+1) - 1; j >= 0 && bounds[j] > prevEnd {
		end = bounds[j]
	} else {
		end = bounds[sort.SearchInts(bounds, prevEnd+1)]
	}
	for end-start <= s.overlap && end < n {
		end = bounds[sort.SearchInts(bounds, end+1)]
	}
	return end
}

// pieces splits text on the coarsest separator present at or below level,
// recursing into pieces longer than the step. Pieces concatenate back to
// text. Above the word level each piece keeps its trailing separator; at the
// word level whitespace runs become pieces of their own so a window can end
// before them.
func (s *Splitter) pieces(text string, level int, out []string) []string {
	for i := level; i < len(separators); i++ {
		sep := separators[i]
		if sep.re == nil {
			return appendRunes(out, text)
		}
		if !sep.re.MatchString(text) {
			continue
		}
		if sep.name == "word" {
			return s.wordPieces(text, sep.re, out)
		}
		for _, p := range splitKeep(text, sep.re) {
			if utf8.RuneCountInString(p) <= s.step() {
				out = append(out, p)
				continue
			}
			out = s.pieces(p, i+1, out)
		}
		return out
	}
	return appendRunes(out, text)
}

// wordPieces emits words and whitespace runs. An oversized word is kept
// whole when text holds at least two words; a lone run without spaces (a
// URL, base64, unspaced script) and oversized whitespace fall back to
// characters.
func (s *Splitter) wordPieces(text string, re *regexp.Regexp, out []string) []string {
	parts := splitAround(text, re)
	words := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			words++
		}
	}
	for _, p := range parts {
		switch {
		case utf8.RuneCountInString(p) <= s.step():
			out = append(out, p)
		case words >= 2 && strings.TrimSpace(p) != "":
			out = append(out, p)
		default:
			out = appendRunes(out, p)
		}
	}
	return out
}

func appendRunes(out []string, text string) []string {
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

// splitKeep cuts text after every match of re.
func splitKeep(text string, re *regexp.Regexp) []string {
	var parts []string
	prev := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[1] > prev {
			parts = append(parts, text[prev:m[1]])
			prev = m[1]
		}
	}
	if prev < len(text) {
		parts = append(parts, text[prev:])
	}
	return parts
}

// splitAround cuts text before and after every match of re, so matches
// become parts of their own.
func splitAround(text string, re *regexp.Regexp) []string {
	var parts []string
	prev := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[0] > prev {
			parts = append(parts, text[prev:m[0]])
		}
		if m[1] > m[0] {
			parts = append(parts, text[m[0]:m[1]])
		}
		prev = m[1]
	}
	if prev < len(text) {
		parts = append(parts, text[prev:])
	}
	return parts
}
