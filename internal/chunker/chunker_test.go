package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"textanywhere/internal/errs"
)

const sampleDoc = `Storage backends list files under a root path. Each listing is fresh!

Selection drops directories and empty files. Names are matched from the start.
Timestamps are compared against the start date and the watermark? Only newer files pass.

Extraction decodes bytes into text. Chunking then walks the text with a window.
Überprüfung der Größe: jede Zeile zählt Zeichen, nicht Bytes. Ça marche très bien.

The last paragraph is short.`

func mustSplitter(t *testing.T, size, overlap int) *Splitter {
	t.Helper()
	s, err := NewSplitter(size, overlap)
	if err != nil {
		t.Fatalf("NewSplitter(%d, %d): %v", size, overlap, err)
	}
	return s
}

func TestNewSplitterRejectsBadPolicy(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{10, 10},
		{10, 11},
		{0, 0},
		{-5, 0},
		{10, -1},
	}
	for _, c := range cases {
		if _, err := NewSplitter(c.size, c.overlap); !errors.Is(err, errs.ErrConfiguration) {
			t.Errorf("NewSplitter(%d, %d) err = %v, want configuration error", c.size, c.overlap, err)
		}
	}
}

func TestSplitCharacterWindows(t *testing.T) {
	s := mustSplitter(t, 10, 3)
	chunks := s.Split("abcdefghijklmno")
	want := []string{"abcdefghij", "hijklmno"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %+v, want %d", len(chunks), chunks, len(want))
	}
	for i, c := range chunks {
		if c.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Text, want[i])
		}
	}
	if chunks[1].Start-chunks[0].Start != 7 {
		t.Fatalf("window should advance by 7, got %d", chunks[1].Start-chunks[0].Start)
	}
}

func TestSplitEmptyAndShort(t *testing.T) {
	s := mustSplitter(t, 20, 5)
	if got := s.Split(""); got != nil {
		t.Fatalf("empty text should give no chunks, got %+v", got)
	}
	got := s.Split("short text")
	if len(got) != 1 || got[0].Text != "short text" || got[0].Index != 0 {
		t.Fatalf("short text should be one chunk, got %+v", got)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s := mustSplitter(t, 12, 2)
	chunks := s.Split("aaaa aaaa\n\nbbbb bbbb")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "aaaa aaaa\n\n" {
		t.Fatalf("first chunk should end at the paragraph break, got %q", chunks[0].Text)
	}
	if chunks[1].Text != "\n\nbbbb bbbb" {
		t.Fatalf("second chunk = %q", chunks[1].Text)
	}
}

func TestSplitKeepsIndivisibleWordWhole(t *testing.T) {
	const word = "supercalifragilisticexpialidocious"
	s := mustSplitter(t, 10, 2)
	chunks := s.Split("tiny " + word + " end")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks %+v", len(chunks), chunks)
	}
	found := false
	for _, c := range chunks {
		if strings.Contains(c.Text, word) {
			found = true
		}
	}
	if !found {
		t.Fatalf("long word was truncated: %+v", chunks)
	}
	assertReconstructs(t, "tiny "+word+" end", chunks, 2)
}

func TestSplitProperties(t *testing.T) {
	configs := []struct{ size, overlap int }{
		{50, 10},
		{80, 20},
		{200, 0},
		{25, 5},
		{2000, 500},
	}
	for _, cfg := range configs {
		s := mustSplitter(t, cfg.size, cfg.overlap)
		chunks := s.Split(sampleDoc)
		if len(chunks) == 0 {
			t.Fatalf("size=%d: no chunks", cfg.size)
		}
		assertChunkLaws(t, sampleDoc, chunks, cfg.size, cfg.overlap)
	}
}

func TestSplitWhitespaceRuns(t *testing.T) {
	cases := []struct {
		text          string
		size, overlap int
	}{
		{"abcdefgh   ijk lmn", 10, 2},
		{"Hello.     World. Again.", 6, 0},
		{"a  b   c    d     e      f", 4, 1},
		{"one two\t\t\tthree    four\n\n\n\nfive   six", 8, 3},
		{"pdf   text    with     wide      gaps", 7, 2},
		{"     one and two     ", 5, 1},
	}
	for _, c := range cases {
		s := mustSplitter(t, c.size, c.overlap)
		assertChunkLaws(t, c.text, s.Split(c.text), c.size, c.overlap)
	}
}

func TestSplitUnspacedParagraphInLongerDocument(t *testing.T) {
	para := strings.Repeat("这是一个没有空格的中文句子。", 300)
	s := mustSplitter(t, 100, 20)

	alone := s.Split(para)
	doc := para + "\n\n结束"
	chunks := s.Split(doc)
	assertChunkLaws(t, doc, chunks, 100, 20)
	assertChunkLaws(t, para, alone, 100, 20)
	if chunks[0].Text != alone[0].Text {
		t.Fatalf("first chunk depends on later text: %q vs %q", chunks[0].Text, alone[0].Text)
	}
}

func TestSplitUnspacedLineFallsBackToCharacters(t *testing.T) {
	blob := strings.Repeat(`{"k":1,"v":"x"},`, 40)
	for _, doc := range []string{
		"header line\n" + blob + "\nfooter",
		"notes:\n\n" + strings.Repeat("QUJDREVGR0hJSktMTU5PUFFSU1RVVldYWVo=", 20) + " \n",
	} {
		s := mustSplitter(t, 50, 10)
		assertChunkLaws(t, doc, s.Split(doc), 50, 10)
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := mustSplitter(t, 40, 8)
	a := s.Split(sampleDoc)
	b := s.Split(sampleDoc)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("split is not deterministic")
	}
}

func assertReconstructs(t *testing.T, text string, chunks []Chunk, overlap int) {
	t.Helper()
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		b.WriteString(string([]rune(c.Text)[overlap:]))
	}
	if b.String() != text {
		t.Fatalf("chunks do not reconstruct the text:\n got %q\nwant %q", b.String(), text)
	}
}

// assertChunkLaws checks the size ceiling, exact overlap, offsets, indexes
// and round trip. Callers only pass texts without words longer than the step.
func assertChunkLaws(t *testing.T, text string, chunks []Chunk, size, overlap int) {
	t.Helper()
	assertReconstructs(t, text, chunks, overlap)
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("size=%d: chunk %d has index %d", size, i, c.Index)
		}
		if n := utf8.RuneCountInString(c.Text); n > size {
			t.Errorf("size=%d overlap=%d: chunk %d has %d chars: %q", size, overlap, i, n, c.Text)
		}
		if c.Text == "" {
			t.Errorf("size=%d: chunk %d is empty", size, i)
		}
		if i == 0 {
			continue
		}
		prev := []rune(chunks[i-1].Text)
		cur := []rune(c.Text)
		tail := string(prev[len(prev)-overlap:])
		head := string(cur[:overlap])
		if tail != head {
			t.Errorf("size=%d overlap=%d: chunks %d/%d overlap %q vs %q", size, overlap, i-1, i, tail, head)
		}
		if c.Start != chunks[i-1].End-overlap {
			t.Errorf("size=%d: chunk %d starts at %d, want %d", size, i, c.Start, chunks[i-1].End-overlap)
		}
	}
}
