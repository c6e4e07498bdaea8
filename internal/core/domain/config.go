package domain

import "time"

// Default pipeline parameters. Each is overridable from the config file;
// none is read from the environment.
const (
	// DefaultChunkSize is the target chunk size in characters.
	DefaultChunkSize = 1500

	// DefaultChunkOverlap is the rolling overlap between consecutive
	// chunks in characters.
	DefaultChunkOverlap = 300

	// DefaultBoundaryTolerance is the fraction of the target size a
	// chunk boundary may move to land on a sentence or section break.
	DefaultBoundaryTolerance = 0.10

	// DefaultDenseWeight and DefaultLexicalWeight combine the two
	// retrieval rankings. They should sum to 1.
	DefaultDenseWeight   = 0.6
	DefaultLexicalWeight = 0.4

	// DefaultTopK is the number of chunks retrieved per facet query.
	DefaultTopK = 8

	// DefaultContextBudget is the maximum total characters of chunk
	// text handed to the model per facet (~4000 tokens).
	DefaultContextBudget = 16000

	// DefaultOverlapThreshold is the minimum normalized token overlap
	// between a phrase and its located span for a link to be emitted.
	DefaultOverlapThreshold = 0.5

	// DefaultMaxAttempts bounds generation retries per facet.
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay seeds the exponential backoff between
	// generation attempts.
	DefaultRetryBaseDelay = 2 * time.Second
)

// ChunkerConfig configures the document chunker.
type ChunkerConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int

	// Overlap is the rolling overlap in characters.
	Overlap int

	// BoundaryTolerance is the ±fraction of ChunkSize within which a
	// sentence or section boundary is preferred over a hard cut.
	BoundaryTolerance float64
}

// DefaultChunkerConfig returns the documented chunker defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:         DefaultChunkSize,
		Overlap:           DefaultChunkOverlap,
		BoundaryTolerance: DefaultBoundaryTolerance,
	}
}

// RetrievalConfig configures the hybrid retriever.
type RetrievalConfig struct {
	// DenseWeight and LexicalWeight combine the normalized rankings.
	DenseWeight   float64
	LexicalWeight float64

	// TopK is the number of chunks returned per query.
	TopK int

	// DedupeOverlap is the character-range overlap above which a
	// lower-ranked chunk is dropped as a near-duplicate. It must sit
	// above the chunker overlap or adjacent chunks would be dropped.
	DedupeOverlap int
}

// DefaultRetrievalConfig returns the documented retrieval defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DenseWeight:   DefaultDenseWeight,
		LexicalWeight: DefaultLexicalWeight,
		TopK:          DefaultTopK,
		DedupeOverlap: DefaultChunkOverlap * 2,
	}
}

// GenerationConfig configures the grounded analysis generator.
type GenerationConfig struct {
	// ContextBudget caps total chunk characters per prompt.
	ContextBudget int

	// MaxAttempts bounds retries per facet call.
	MaxAttempts int

	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration
}

// DefaultGenerationConfig returns the documented generation defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		ContextBudget:  DefaultContextBudget,
		MaxAttempts:    DefaultMaxAttempts,
		RetryBaseDelay: DefaultRetryBaseDelay,
	}
}

// LinkerConfig configures the provenance linker.
type LinkerConfig struct {
	// OverlapThreshold is the minimum token containment ratio
	// (|phrase ∩ span| / |phrase|) for fuzzy repair to emit a link.
	OverlapThreshold float64

	// PreferOrdered makes the linker look for an ordered subsequence
	// window before falling back to an unordered covering window.
	PreferOrdered bool
}

// DefaultLinkerConfig returns the documented linker defaults.
func DefaultLinkerConfig() LinkerConfig {
	return LinkerConfig{
		OverlapThreshold: DefaultOverlapThreshold,
		PreferOrdered:    true,
	}
}

// Config is the explicit configuration value object handed to each
// component at construction.
type Config struct {
	Chunker    ChunkerConfig
	Retrieval  RetrievalConfig
	Generation GenerationConfig
	Linker     LinkerConfig

	// Workers bounds how many documents are processed in parallel.
	Workers int
}

// DefaultConfig returns the full documented default configuration.
func DefaultConfig() Config {
	return Config{
		Chunker:    DefaultChunkerConfig(),
		Retrieval:  DefaultRetrievalConfig(),
		Generation: DefaultGenerationConfig(),
		Linker:     DefaultLinkerConfig(),
		Workers:    4,
	}
}
