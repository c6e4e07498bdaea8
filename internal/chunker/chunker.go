// Package chunker splits bill text into overlapping, section-aware
// chunks with stable offsets into the original document.
package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// headingPattern matches the structural markers congressional bill text
// uses for sections and titles, anchored at the start of a line.
var headingPattern = regexp.MustCompile(`^(SEC\.|SECTION|TITLE|§)\s*([0-9]+[A-Za-z]?|[IVXLCDM]+)\b`)

// Chunker splits document text into overlapping chunks, preferring
// section and sentence boundaries near the target size.
//
// Chunking is deterministic: the same text always yields byte-identical
// chunk boundaries, so re-ingesting unchanged text reproduces the same
// chunk IDs and offsets.
type Chunker struct {
	chunkSize int
	overlap   int
	tolerance float64
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithTolerance sets the boundary search window as a fraction of the
// chunk size.
func WithTolerance(tolerance float64) Option {
	return func(c *Chunker) {
		if tolerance > 0 && tolerance < 1 {
			c.tolerance = tolerance
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: domain.DefaultChunkSize,
		overlap:   domain.DefaultChunkOverlap,
		tolerance: domain.DefaultBoundaryTolerance,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// marker is a detected section heading and its byte offset.
type marker struct {
	offset int
	label  string
}

// Chunk splits document text into ordered chunks. Empty input yields an
// empty sequence. Input that is not valid UTF-8 fails with
// domain.ErrDocumentParse.
func (c *Chunker) Chunk(documentID, text string) ([]domain.Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("document %s is not valid UTF-8: %w", documentID, domain.ErrDocumentParse)
	}
	if text == "" {
		return []domain.Chunk{}, nil
	}

	markers := scanSections(text)
	n := len(text)

	estimated := n/(c.chunkSize-c.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	position := 0

	for start < n {
		end := c.boundary(text, markers, start)

		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(documentID, position),
			DocumentID: documentID,
			Text:       text[start:end],
			Section:    sectionFor(markers, start),
			StartChar:  start,
			EndChar:    end,
		})
		position++

		if end >= n {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// boundary picks the end offset for a chunk beginning at start. Section
// markers inside the tolerance window win over sentence breaks, which
// win over a hard cut at the target size.
func (c *Chunker) boundary(text string, markers []marker, start int) int {
	n := len(text)
	ideal := start + c.chunkSize
	if ideal >= n {
		return n
	}

	window := int(float64(c.chunkSize) * c.tolerance)
	lo := ideal - window
	// The next chunk starts at end-overlap; the boundary must clear the
	// overlap or the walk stalls.
	if lo <= start+c.overlap {
		lo = start + c.overlap + 1
	}
	hi := ideal + window
	if hi > n {
		hi = n
	}
	if lo >= hi {
		return snapToRune(text, ideal, start)
	}

	// Break right before a section heading so a section never starts
	// mid-chunk when a heading falls inside the window.
	if m := lastMarkerIn(markers, lo, hi); m >= 0 {
		return m
	}

	for p := hi; p > lo; p-- {
		if isSentenceBreak(text, p) {
			return p
		}
	}

	return snapToRune(text, ideal, start)
}

// snapToRune moves a hard-cut offset back to the nearest rune start so
// a multi-byte character is never split across chunks.
func snapToRune(text string, end, start int) int {
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// isSentenceBreak reports whether position p in text is a safe break
// point: just after sentence-ending punctuation or a line break.
func isSentenceBreak(text string, p int) bool {
	prev := text[p-1]
	if prev == '\n' {
		return true
	}
	if prev == '.' || prev == '!' || prev == '?' || prev == ';' {
		return p >= len(text) || text[p] == ' ' || text[p] == '\n' || text[p] == '\t'
	}
	return false
}

// scanSections finds structural headings and their byte offsets.
func scanSections(text string) []marker {
	var markers []marker

	offset := 0
	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[offset:]
			lineEnd = len(line)
		} else {
			line = text[offset : offset+lineEnd]
		}

		trimmed := strings.TrimLeft(line, " \t")
		if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
			indent := len(line) - len(trimmed)
			markers = append(markers, marker{
				offset: offset + indent,
				label:  headingLabel(m[1], m[2]),
			})
		}

		offset += lineEnd + 1
	}

	return markers
}

// headingLabel normalises a matched heading into a short section label,
// e.g. "SEC. 101" or "TITLE IV".
func headingLabel(kind, number string) string {
	if kind == "§" {
		return "§ " + number
	}
	return kind + " " + number
}

// sectionFor returns the label of the nearest marker at or before the
// given offset, or the preamble sentinel when none precedes it.
func sectionFor(markers []marker, offset int) string {
	i := sort.Search(len(markers), func(i int) bool {
		return markers[i].offset > offset
	})
	if i == 0 {
		return domain.PreambleSection
	}
	return markers[i-1].label
}

// lastMarkerIn returns the offset of the last marker within [lo, hi],
// or -1 when the window contains none.
func lastMarkerIn(markers []marker, lo, hi int) int {
	best := -1
	for _, m := range markers {
		if m.offset >= lo && m.offset <= hi {
			best = m.offset
		}
		if m.offset > hi {
			break
		}
	}
	return best
}
