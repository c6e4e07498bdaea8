package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDocumentParse indicates malformed or unreadable bill text.
	// Fatal for that document; reported, never retried inside the core.
	ErrDocumentParse = errors.New("document parse failed")

	// ErrIndexVersionMismatch indicates embedding model version drift
	// within one index. Fatal; the caller must force a full re-embed.
	ErrIndexVersionMismatch = errors.New("index embedding version mismatch")

	// ErrGenerationFailed indicates a facet's generation exhausted its
	// retries. The facet fails closed: no text, no links, no placeholder.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Analysis and linking are disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion cannot index without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrLexicalIndexUnavailable indicates the lexical index is not configured.
	ErrLexicalIndexUnavailable = errors.New("lexical index unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
