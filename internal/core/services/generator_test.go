package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openuspolitics/billtrace/internal/core/domain"
	"github.com/openuspolitics/billtrace/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockLLM implements driven.LLMService for testing.
type mockLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
	systems   []string
}

func (m *mockLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.systems = append(m.systems, opts.System)

	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func fastGenConfig() domain.GenerationConfig {
	return domain.GenerationConfig{
		ContextBudget:  16000,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}
}

func scoredChunks(texts ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(texts))
	for i, text := range texts {
		out[i] = domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:         domain.ChunkID("hr-1", i),
				DocumentID: "hr-1",
				Text:       text,
				Section:    "SEC. 2",
				EndChar:    len(text),
			},
			Score: 1.0 - float64(i)*0.1,
		}
	}
	return out
}

func TestGenerator_Success(t *testing.T) {
	llm := &mockLLM{responses: []string{
		`{"text": "The bill establishes a grant program.", "claims": [{"phrase": "a grant program", "chunk_id": "hr-1_chunk_0"}]}`,
	}}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetSummary, "Rural Hospital Act",
		scoredChunks("The Secretary shall establish a grant program."))
	require.NoError(t, err)

	assert.Equal(t, domain.FacetSummary, facet.Kind)
	assert.Equal(t, "The bill establishes a grant program.", facet.Text)
	assert.False(t, facet.Ungenerated)
	require.Len(t, facet.Claims, 1)
	assert.Equal(t, "hr-1_chunk_0", facet.Claims[0].ChunkID)
	assert.Equal(t, []string{"hr-1_chunk_0"}, facet.SupportingChunkIDs)
}

func TestGenerator_PromptContainsChunkIDsAndSections(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"text": "ok", "claims": []}`}}
	gen := NewGenerator(llm, fastGenConfig())

	_, err := gen.Generate(context.Background(), domain.FacetSummary, "Rural Hospital Act",
		scoredChunks("The Secretary shall establish a grant program."))
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "[Chunk ID: hr-1_chunk_0]")
	assert.Contains(t, prompt, "(Section: SEC. 2)")
	assert.Contains(t, prompt, "Rural Hospital Act")
	assert.Contains(t, llm.systems[0], "non-partisan")
}

func TestGenerator_EmptyRetrievalNeverCallsModel(t *testing.T) {
	llm := &mockLLM{}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetSummary, "Some Act", nil)
	require.NoError(t, err)

	assert.True(t, facet.Ungenerated)
	assert.Empty(t, facet.Text)
	assert.Equal(t, 0, llm.calls)
}

func TestGenerator_FiscalGate(t *testing.T) {
	llm := &mockLLM{}
	gen := NewGenerator(llm, fastGenConfig())

	// No fiscal language anywhere in the retrieved context.
	facet, err := gen.Generate(context.Background(), domain.FacetFiscalImpact, "Naming Act",
		scoredChunks("The facility shall be known as the John Smith Federal Building."))
	require.NoError(t, err)

	assert.True(t, facet.Ungenerated)
	assert.Equal(t, 0, llm.calls)
}

func TestGenerator_FiscalGatePassesWithFiscalLanguage(t *testing.T) {
	llm := &mockLLM{responses: []string{`{"text": "Authorizes $50 million.", "claims": []}`}}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetFiscalImpact, "Funding Act",
		scoredChunks("There is authorized to be appropriated $50 million for fiscal year 2026."))
	require.NoError(t, err)

	assert.False(t, facet.Ungenerated)
	assert.Equal(t, 1, llm.calls)
}

func TestGenerator_StripsMarkdownFences(t *testing.T) {
	llm := &mockLLM{responses: []string{
		"```json\n{\"text\": \"The bill does things.\", \"claims\": []}\n```",
	}}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetSummary, "Some Act",
		scoredChunks("Some provision text."))
	require.NoError(t, err)
	assert.Equal(t, "The bill does things.", facet.Text)
}

func TestGenerator_RetriesThenSucceeds(t *testing.T) {
	llm := &mockLLM{
		errs: []error{errors.New("rate limited"), nil},
		responses: []string{
			"", // consumed by the error attempt
			`{"text": "Second try.", "claims": []}`,
		},
	}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetSummary, "Some Act",
		scoredChunks("Some provision text."))
	require.NoError(t, err)
	assert.Equal(t, "Second try.", facet.Text)
	assert.Equal(t, 2, llm.calls)
}

func TestGenerator_FailsClosedAfterRetries(t *testing.T) {
	apiErr := errors.New("api unavailable")
	llm := &mockLLM{errs: []error{apiErr, apiErr, apiErr}}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetSummary, "Some Act",
		scoredChunks("Some provision text."))
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 3, llm.calls)

	// Fail closed: no text, no claims.
	assert.Empty(t, facet.Text)
	assert.Empty(t, facet.Claims)
}

func TestGenerator_RejectsRefusals(t *testing.T) {
	refusal := `{"text": "As an AI, I cannot analyze legislation.", "claims": []}`
	llm := &mockLLM{responses: []string{refusal, refusal, refusal}}
	gen := NewGenerator(llm, fastGenConfig())

	_, err := gen.Generate(context.Background(), domain.FacetSummary, "Some Act",
		scoredChunks("Some provision text."))
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 3, llm.calls)
}

func TestGenerator_RetriesUnparseableResponse(t *testing.T) {
	llm := &mockLLM{responses: []string{
		"I think this bill is about hospitals.",
		`{"text": "Grounded answer.", "claims": []}`,
	}}
	gen := NewGenerator(llm, fastGenConfig())

	facet, err := gen.Generate(context.Background(), domain.FacetSummary, "Some Act",
		scoredChunks("Some provision text."))
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer.", facet.Text)
	assert.Equal(t, 2, llm.calls)
}

func TestTrimToBudget(t *testing.T) {
	chunks := scoredChunks(
		strings.Repeat("a", 100),
		strings.Repeat("b", 100),
		strings.Repeat("c", 100),
	)

	t.Run("all fit", func(t *testing.T) {
		assert.Len(t, trimToBudget(chunks, 400), 3)
	})

	t.Run("drops lowest scored", func(t *testing.T) {
		trimmed := trimToBudget(chunks, 250)
		require.Len(t, trimmed, 2)
		assert.Equal(t, "hr-1_chunk_0", trimmed[0].Chunk.ID)
		assert.Equal(t, "hr-1_chunk_1", trimmed[1].Chunk.ID)
	})

	t.Run("always keeps the top chunk", func(t *testing.T) {
		trimmed := trimToBudget(chunks, 10)
		require.Len(t, trimmed, 1)
		assert.Equal(t, "hr-1_chunk_0", trimmed[0].Chunk.ID)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, trimToBudget(chunks, 250), trimToBudget(chunks, 250))
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
}
