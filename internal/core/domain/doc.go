// Package domain defines the core business entities for billtrace.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Bill: Raw legislative text handed over by the external fetcher
//   - Chunk: An offset-addressable slice of a bill's text
//   - EmbeddingRecord: A chunk's vector representation
//   - AnalysisFacet: One piece of generated analysis, pre-validation
//   - ProvenanceLink: A validated phrase-to-source mapping
//   - BillRecord: The aggregate persisted per bill
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
