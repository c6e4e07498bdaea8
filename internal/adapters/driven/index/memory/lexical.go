package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// Ensure LexicalIndex implements the interface.
var _ driven.LexicalIndex = (*LexicalIndex)(nil)

// BM25 parameters. Standard values; not worth configuring until a
// relevance evaluation says otherwise.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// lexicalDoc is one tokenised chunk.
type lexicalDoc struct {
	chunkID   string
	position  int
	termFreqs map[string]int
	length    int
}

// lexicalGeneration is an immutable snapshot of one document's keyword
// index: tokenised chunks plus corpus statistics for BM25 scoring.
type lexicalGeneration struct {
	docs      []lexicalDoc
	docFreqs  map[string]int
	avgLength float64
}

// LexicalIndex provides per-document BM25 keyword search.
type LexicalIndex struct {
	mu          sync.RWMutex
	generations map[string]*lexicalGeneration
}

// NewLexicalIndex creates an empty keyword index.
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{
		generations: make(map[string]*lexicalGeneration),
	}
}

// Rebuild atomically replaces the keyword index for a document.
func (idx *LexicalIndex) Rebuild(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if documentID == "" {
		return fmt.Errorf("rebuild lexical index: empty document ID: %w", domain.ErrInvalidInput)
	}

	gen := &lexicalGeneration{
		docs:     make([]lexicalDoc, 0, len(chunks)),
		docFreqs: make(map[string]int),
	}

	totalLength := 0
	for i, chunk := range chunks {
		tokens := tokenize(chunk.Text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term := range freqs {
			gen.docFreqs[term]++
		}
		gen.docs = append(gen.docs, lexicalDoc{
			chunkID:   chunk.ID,
			position:  i,
			termFreqs: freqs,
			length:    len(tokens),
		})
		totalLength += len(tokens)
	}
	if len(gen.docs) > 0 {
		gen.avgLength = float64(totalLength) / float64(len(gen.docs))
	}

	idx.mu.Lock()
	idx.generations[documentID] = gen
	idx.mu.Unlock()

	logger.Debug("Lexical index rebuilt for %s: %d chunks, %d terms", documentID, len(gen.docs), len(gen.docFreqs))
	return nil
}

// Search scores the document's chunks against the query with BM25 and
// returns up to k hits with positive scores, best first. Ties break on
// ascending chunk position.
func (idx *LexicalIndex) Search(_ context.Context, documentID string, query string, k int) ([]driven.LexicalHit, error) {
	if k <= 0 {
		return []driven.LexicalHit{}, nil
	}

	idx.mu.RLock()
	gen := idx.generations[documentID]
	idx.mu.RUnlock()

	if gen == nil || len(gen.docs) == 0 {
		return []driven.LexicalHit{}, nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return []driven.LexicalHit{}, nil
	}

	n := float64(len(gen.docs))
	hits := make([]driven.LexicalHit, 0, len(gen.docs))

	for _, doc := range gen.docs {
		var score float64
		for _, term := range queryTerms {
			tf := doc.termFreqs[term]
			if tf == 0 {
				continue
			}
			df := float64(gen.docFreqs[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			normLen := 1 - bm25B + bm25B*float64(doc.length)/gen.avgLength
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*normLen)
		}
		if score > 0 {
			hits = append(hits, driven.LexicalHit{
				ChunkID:  doc.chunkID,
				Position: doc.position,
				Score:    score,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove drops a document's index.
func (idx *LexicalIndex) Remove(_ context.Context, documentID string) error {
	idx.mu.Lock()
	delete(idx.generations, documentID)
	idx.mu.Unlock()
	return nil
}

// Close releases resources.
func (idx *LexicalIndex) Close() error {
	idx.mu.Lock()
	idx.generations = make(map[string]*lexicalGeneration)
	idx.mu.Unlock()
	return nil
}

// tokenize lowercases text and splits it into letter/digit runs.
// Identifier tokens like "402(a)(3)" split into their components, which
// keeps section references matchable without a legal-citation parser.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
