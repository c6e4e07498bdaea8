package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
	"github.com/openuspolitics/billtrace/internal/logger"
)

// analystSystemPrompt frames every generation call. The model is held
// to the retrieved chunks; anything it cannot trace to a visible chunk
// is out of bounds.
const analystSystemPrompt = `You are a non-partisan legislative analyst in the style of the Congressional Research Service. You explain US congressional bills in plain English for a general audience.

You will be shown numbered excerpts from one bill. Base every statement solely on those excerpts. Do not use outside knowledge about the bill, its sponsors, or related legislation. Do not speculate about intent or predict passage. If the excerpts do not support an answer, say so briefly instead of guessing.`

// responseContract is appended to every prompt. The linker depends on
// each claim phrase being copied verbatim from the response text.
const responseContract = `Respond with a single JSON object and nothing else, in this exact shape:
{
  "text": "<your analysis prose>",
  "claims": [
    {"phrase": "<exact contiguous substring of your text>", "chunk_id": "<id of the excerpt supporting it>"}
  ]
}
Every factual claim in "text" must appear in "claims" with the chunk_id of the excerpt it is drawn from. Each phrase must be copied character-for-character from "text". Never cite a chunk_id that is not shown above.`

// facetQueries drive retrieval for each facet. Phrased as keyword-rich
// questions so both the dense and lexical rankings have purchase.
var facetQueries = map[domain.FacetKind]string{
	domain.FacetSummary:         "purpose of this bill what does this bill do main provisions summary",
	domain.FacetProvisions:      "key provisions requirements programs established amendments prohibitions duties",
	domain.FacetPracticalImpact: "who is affected practical effect implementation effective date compliance individuals businesses",
	domain.FacetFiscalImpact:    "appropriations funding authorized amounts cost budget fiscal year millions dollars revenue",
}

// facetInstructions give the per-facet task description.
var facetInstructions = map[domain.FacetKind]string{
	domain.FacetSummary: "Write a plain English summary of what this bill does, in 2-4 sentences a general reader can follow.",
	domain.FacetProvisions: "List the key provisions of this bill. State each provision as one clear sentence describing what the bill requires, establishes, amends or prohibits.",
	domain.FacetPracticalImpact: "Explain the practical impact of this bill: who is affected, how their situation changes, and when.",
	domain.FacetFiscalImpact: "Describe the fiscal impact of this bill: appropriations, authorized amounts, costs and revenue effects, with the specific dollar amounts the excerpts give.",
}

// fiscalKeywords gate the fiscal facet. A bill whose retrieved context
// carries none of these has nothing for the model to say about money.
var fiscalKeywords = []string{
	"appropriat", "authorized to be", "fund", "million", "billion",
	"fiscal year", "$", "cost", "revenue", "budget",
}

// refusalMarkers catch responses where the model broke role instead of
// analysing. Such a response is a failed attempt, never saved output.
var refusalMarkers = []string{
	"as an ai", "i cannot", "i can't", "i am unable", "i'm unable",
	"i do not have access", "i don't have access",
}

// Generator produces one grounded analysis facet per call, holding the
// model to retrieved chunks only.
type Generator struct {
	llm driven.LLMService
	cfg domain.GenerationConfig
}

// NewGenerator creates a generator backed by the given LLM service.
func NewGenerator(llm driven.LLMService, cfg domain.GenerationConfig) *Generator {
	return &Generator{llm: llm, cfg: cfg}
}

// FacetQuery returns the retrieval query used to ground a facet.
func FacetQuery(kind domain.FacetKind) string {
	return facetQueries[kind]
}

// generationPayload is the JSON shape the model is instructed to emit.
type generationPayload struct {
	Text   string         `json:"text"`
	Claims []domain.Claim `json:"claims"`
}

// Generate produces the facet of the given kind from retrieved chunks.
// An empty chunk set yields an ungenerated facet without calling the
// model. On exhausted retries the facet fails closed: no text, no
// claims, error reported upward.
func (g *Generator) Generate(ctx context.Context, kind domain.FacetKind, billTitle string, chunks []domain.ScoredChunk) (domain.AnalysisFacet, error) {
	if !kind.IsValid() {
		return domain.AnalysisFacet{}, fmt.Errorf("unknown facet kind %q: %w", kind, domain.ErrInvalidInput)
	}

	if len(chunks) == 0 {
		logger.Debug("Facet %s: empty retrieval, marking ungenerated", kind)
		return domain.AnalysisFacet{Kind: kind, Ungenerated: true}, nil
	}

	if kind == domain.FacetFiscalImpact && !hasFiscalContent(chunks) {
		logger.Debug("Facet %s: no fiscal language in retrieved chunks, marking ungenerated", kind)
		return domain.AnalysisFacet{Kind: kind, Ungenerated: true}, nil
	}

	trimmed := trimToBudget(chunks, g.cfg.ContextBudget)
	if len(trimmed) < len(chunks) {
		logger.Debug("Facet %s: trimmed context from %d to %d chunks for budget %d",
			kind, len(chunks), len(trimmed), g.cfg.ContextBudget)
	}

	prompt := buildPrompt(kind, billTitle, trimmed)

	payload, err := g.generateWithRetry(ctx, kind, prompt)
	if err != nil {
		return domain.AnalysisFacet{}, err
	}

	supporting := make([]string, len(trimmed))
	for i, sc := range trimmed {
		supporting[i] = sc.Chunk.ID
	}

	return domain.AnalysisFacet{
		Kind:               kind,
		Text:               strings.TrimSpace(payload.Text),
		SupportingChunkIDs: supporting,
		Claims:             payload.Claims,
	}, nil
}

// generateWithRetry calls the model with exponential backoff. A
// response that fails parsing or trips the refusal guard counts as a
// failed attempt.
func (g *Generator) generateWithRetry(ctx context.Context, kind domain.FacetKind, prompt string) (*generationPayload, error) {
	attempts := g.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := g.cfg.RetryBaseDelay << (attempt - 1)
			logger.Debug("Facet %s: retry %d/%d after %s", kind, attempt, attempts-1, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		raw, err := g.llm.Generate(ctx, prompt, driven.GenerateOptions{
			System:      analystSystemPrompt,
			MaxTokens:   1500,
			Temperature: 0,
		})
		if err != nil {
			lastErr = err
			logger.Warn("Facet %s: generation attempt %d failed: %v", kind, attempt+1, err)
			continue
		}

		payload, err := parseGeneration(raw)
		if err != nil {
			lastErr = err
			logger.Warn("Facet %s: unparseable response on attempt %d: %v", kind, attempt+1, err)
			continue
		}

		if marker := refusalMarker(payload.Text); marker != "" {
			lastErr = fmt.Errorf("model refused (%q)", marker)
			logger.Warn("Facet %s: refusal on attempt %d: %v", kind, attempt+1, lastErr)
			continue
		}

		return payload, nil
	}

	return nil, fmt.Errorf("facet %s after %d attempts: %v: %w", kind, attempts, lastErr, domain.ErrGenerationFailed)
}

// buildPrompt assembles the bounded context and instruction for one
// facet. Chunk IDs and sections are visible to the model so it can tag
// its claims.
func buildPrompt(kind domain.FacetKind, billTitle string, chunks []domain.ScoredChunk) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Bill: %s\n\nExcerpts from the bill text:\n\n", billTitle)
	for _, sc := range chunks {
		fmt.Fprintf(&sb, "[Chunk ID: %s] (Section: %s)\n%s\n\n", sc.Chunk.ID, sc.Chunk.Section, sc.Chunk.Text)
	}

	sb.WriteString(facetInstructions[kind])
	sb.WriteString("\n\n")
	sb.WriteString(responseContract)

	return sb.String()
}

// trimToBudget drops the lowest-scored chunks until the concatenated
// text fits the budget. Input arrives sorted best-first, so trimming
// is a deterministic prefix. The top chunk is always kept.
func trimToBudget(chunks []domain.ScoredChunk, budget int) []domain.ScoredChunk {
	if budget <= 0 {
		return chunks
	}

	total := 0
	for i, sc := range chunks {
		total += len(sc.Chunk.Text)
		if total > budget && i > 0 {
			return chunks[:i]
		}
	}
	return chunks
}

// parseGeneration decodes the model's JSON response, tolerating a
// markdown code fence around it.
func parseGeneration(raw string) (*generationPayload, error) {
	cleaned := stripFences(raw)

	var payload generationPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return nil, fmt.Errorf("generation response has empty text")
	}
	return &payload, nil
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json" or empty).
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// hasFiscalContent reports whether any retrieved chunk carries fiscal
// language.
func hasFiscalContent(chunks []domain.ScoredChunk) bool {
	for _, sc := range chunks {
		text := strings.ToLower(sc.Chunk.Text)
		for _, kw := range fiscalKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}

// refusalMarker returns the matched marker when the response looks like
// a refusal rather than analysis, or "" when it is clean.
func refusalMarker(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range refusalMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}
