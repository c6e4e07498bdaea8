package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// LinkStats counts the per-candidate outcomes of one linking pass.
// Rejections are a quality signal, not a failure.
type LinkStats struct {
	Exact    int
	Fuzzy    int
	Rejected int
}

// Linker resolves a facet's claimed phrase/chunk references into
// character-offset provenance links, or drops them when the source
// text cannot substantiate the claim.
//
// Linking is pure: identical (facet, chunks) input always produces
// identical output, even though the upstream generator is not
// deterministic.
type Linker struct {
	cfg domain.LinkerConfig
}

// NewLinker creates a linker.
func NewLinker(cfg domain.LinkerConfig) *Linker {
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = domain.DefaultOverlapThreshold
	}
	return &Linker{cfg: cfg}
}

// Link validates each candidate claim in the facet against the chunks
// actually retrieved for it. Exact substring hits win; fuzzy repair
// covers paraphrase; everything else is rejected. Returned links are
// ordered by the phrase's first occurrence in the facet text.
func (l *Linker) Link(facet domain.AnalysisFacet, chunks []domain.Chunk) ([]domain.ProvenanceLink, LinkStats) {
	var stats LinkStats

	if facet.Ungenerated || facet.Text == "" {
		return []domain.ProvenanceLink{}, stats
	}

	byID := make(map[string]domain.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.ID] = chunk
	}

	links := make([]domain.ProvenanceLink, 0, len(facet.Claims))

	for _, candidate := range l.candidates(facet, chunks) {
		link, outcome := l.resolve(facet, candidate, byID)
		switch outcome {
		case outcomeExact:
			stats.Exact++
			links = append(links, link)
		case outcomeFuzzy:
			stats.Fuzzy++
			links = append(links, link)
		default:
			stats.Rejected++
		}
	}

	sort.SliceStable(links, func(i, j int) bool {
		return strings.Index(facet.Text, links[i].SummaryPhrase) < strings.Index(facet.Text, links[j].SummaryPhrase)
	})

	logger.Debug("Linker %s: %d exact, %d fuzzy, %d rejected",
		facet.Kind, stats.Exact, stats.Fuzzy, stats.Rejected)
	return links, stats
}

type linkOutcome int

const (
	outcomeRejected linkOutcome = iota
	outcomeExact
	outcomeFuzzy
)

// linkCandidate is one phrase to substantiate, with the chunk IDs to
// try in order.
type linkCandidate struct {
	phrase   string
	chunkIDs []string
}

// candidates extracts the phrases to link. Model-tagged claims carry
// their claimed chunk; untagged text falls back to sentence
// segmentation tried against every retrieved chunk in document order.
func (l *Linker) candidates(facet domain.AnalysisFacet, chunks []domain.Chunk) []linkCandidate {
	if len(facet.Claims) > 0 {
		out := make([]linkCandidate, 0, len(facet.Claims))
		for _, claim := range facet.Claims {
			out = append(out, linkCandidate{
				phrase:   strings.TrimSpace(claim.Phrase),
				chunkIDs: []string{claim.ChunkID},
			})
		}
		return out
	}

	allIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		allIDs[i] = chunk.ID
	}

	sentences := splitSentences(facet.Text)
	out := make([]linkCandidate, 0, len(sentences))
	for _, sentence := range sentences {
		out = append(out, linkCandidate{phrase: sentence, chunkIDs: allIDs})
	}
	return out
}

// resolve locates one candidate phrase. The claimed chunk must be in
// the retrieved set (guards against hallucinated references) and the
// phrase must appear in the facet text (guards against invented
// phrases the renderer could never highlight).
func (l *Linker) resolve(facet domain.AnalysisFacet, candidate linkCandidate, byID map[string]domain.Chunk) (domain.ProvenanceLink, linkOutcome) {
	if candidate.phrase == "" || !strings.Contains(facet.Text, candidate.phrase) {
		return domain.ProvenanceLink{}, outcomeRejected
	}

	// Exact pass over all claimed chunks first: a verbatim hit in a
	// later chunk beats a fuzzy hit in an earlier one.
	for _, chunkID := range candidate.chunkIDs {
		chunk, ok := byID[chunkID]
		if !ok || !facet.Retrieved(chunkID) {
			continue
		}
		if start := strings.Index(chunk.Text, candidate.phrase); start >= 0 {
			return domain.ProvenanceLink{
				Facet:         facet.Kind,
				SummaryPhrase: candidate.phrase,
				SourceChunkID: chunk.ID,
				Start:         start,
				End:           start + len(candidate.phrase),
				Exact:         true,
			}, outcomeExact
		}
	}

	for _, chunkID := range candidate.chunkIDs {
		chunk, ok := byID[chunkID]
		if !ok || !facet.Retrieved(chunkID) {
			continue
		}
		if start, end, ok := l.fuzzyLocate(candidate.phrase, chunk.Text); ok {
			return domain.ProvenanceLink{
				Facet:         facet.Kind,
				SummaryPhrase: candidate.phrase,
				SourceChunkID: chunk.ID,
				Start:         start,
				End:           end,
				Exact:         false,
			}, outcomeFuzzy
		}
	}

	return domain.ProvenanceLink{}, outcomeRejected
}

// fuzzyLocate finds a span of chunk text that substantiates a
// paraphrased phrase. Both sides are normalised (lowercase, punctuation
// stripped, light suffix stemming); the phrase's token containment in
// the chunk must clear the threshold, then the minimal covering window
// in the original text gives the offsets. An ordered-subsequence window
// is preferred; paraphrase often reorders ("fifty million dollars
// allocated" against "shall allocate $50,000,000"), so an unordered
// covering window is accepted as fallback.
func (l *Linker) fuzzyLocate(phrase, chunkText string) (int, int, bool) {
	phraseTokens := uniqueTokens(normalizeTokens(phrase))
	if len(phraseTokens) == 0 {
		return 0, 0, false
	}

	chunkTokens := tokenizeWithOffsets(chunkText)
	inChunk := make(map[string]bool, len(chunkTokens))
	for _, tok := range chunkTokens {
		inChunk[tok.norm] = true
	}

	matched := make(map[string]bool)
	var matchedOrdered []string
	for _, tok := range phraseTokens {
		if inChunk[tok] {
			matched[tok] = true
			matchedOrdered = append(matchedOrdered, tok)
		}
	}

	overlap := float64(len(matched)) / float64(len(phraseTokens))
	if overlap < l.cfg.OverlapThreshold {
		return 0, 0, false
	}

	if l.cfg.PreferOrdered {
		if start, end, ok := orderedWindow(chunkTokens, matchedOrdered); ok {
			return start, end, true
		}
	}
	return coveringWindow(chunkTokens, matched)
}

// splitSentences splits text into sentences at common terminators.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// spanToken is a normalised token with its byte span in the original
// text.
type spanToken struct {
	norm  string
	start int
	end   int
}

// tokenizeWithOffsets splits text into normalised tokens that remember
// where they came from.
func tokenizeWithOffsets(text string) []spanToken {
	var tokens []spanToken

	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if norm := normalizeToken(text[start:i]); norm != "" {
				tokens = append(tokens, spanToken{norm: norm, start: start, end: i})
			}
			start = -1
		}
	}
	if start >= 0 {
		if norm := normalizeToken(text[start:]); norm != "" {
			tokens = append(tokens, spanToken{norm: norm, start: start, end: len(text)})
		}
	}
	return tokens
}

// normalizeTokens normalises every token of a phrase.
func normalizeTokens(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if norm := normalizeToken(tok); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// normalizeToken lowercases and applies light suffix stemming, enough
// to let "allocated" meet "allocate" without a real stemmer.
func normalizeToken(tok string) string {
	tok = strings.ToLower(tok)

	for _, suffix := range []string{"ing", "ed", "es", "ly"} {
		if strings.HasSuffix(tok, suffix) && len(tok) > len(suffix)+2 {
			tok = strings.TrimSuffix(tok, suffix)
			break
		}
	}
	if strings.HasSuffix(tok, "s") && len(tok) > 3 {
		tok = tok[:len(tok)-1]
	}
	if strings.HasSuffix(tok, "e") && len(tok) > 3 {
		tok = tok[:len(tok)-1]
	}
	return tok
}

// uniqueTokens keeps the first occurrence of each token, preserving
// order.
func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// orderedWindow finds the smallest chunk window containing the matched
// tokens as a subsequence in phrase order.
func orderedWindow(chunkTokens []spanToken, ordered []string) (int, int, bool) {
	if len(ordered) == 0 {
		return 0, 0, false
	}

	bestStart, bestEnd := -1, -1
	for i := 0; i < len(chunkTokens); i++ {
		if chunkTokens[i].norm != ordered[0] {
			continue
		}
		// Greedy forward match of the remaining tokens.
		next := 1
		j := i
		for ; j < len(chunkTokens) && next < len(ordered); j++ {
			if j > i && chunkTokens[j].norm == ordered[next] {
				next++
			}
		}
		if next < len(ordered) {
			break // not enough tokens left for a full match
		}
		end := chunkTokens[i].end
		if j > i {
			end = chunkTokens[j-1].end
		}
		if bestStart < 0 || end-chunkTokens[i].start < bestEnd-bestStart {
			bestStart, bestEnd = chunkTokens[i].start, end
		}
	}

	if bestStart < 0 {
		return 0, 0, false
	}
	return bestStart, bestEnd, true
}

// coveringWindow finds the smallest chunk window containing every
// matched token at least once, in any order.
func coveringWindow(chunkTokens []spanToken, matched map[string]bool) (int, int, bool) {
	if len(matched) == 0 {
		return 0, 0, false
	}

	counts := make(map[string]int)
	covered := 0
	bestStart, bestEnd := -1, -1

	left := 0
	for right := 0; right < len(chunkTokens); right++ {
		tok := chunkTokens[right].norm
		if matched[tok] {
			counts[tok]++
			if counts[tok] == 1 {
				covered++
			}
		}

		for covered == len(matched) {
			start, end := chunkTokens[left].start, chunkTokens[right].end
			if bestStart < 0 || end-start < bestEnd-bestStart {
				bestStart, bestEnd = start, end
			}
			leftTok := chunkTokens[left].norm
			if matched[leftTok] {
				counts[leftTok]--
				if counts[leftTok] == 0 {
					covered--
				}
			}
			left++
		}
	}

	if bestStart < 0 {
		return 0, 0, false
	}
	return bestStart, bestEnd, true
}
