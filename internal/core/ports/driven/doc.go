// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - RecordStore: Bill record persistence (chunks, analysis, provenance)
//   - EmbeddingService: Generates vector embeddings for ingestion
//   - VectorIndex: Per-document dense retrieval index
//   - LexicalIndex: Per-document BM25 keyword index
//
// # Analysis-only Interfaces
//
// These are only needed for the expensive analyze stage; ingestion runs
// without them (the cheap/expensive split of the pipeline):
//
//   - LLMService: Language model operations for grounded generation
//   - Classifier: Topic labelling of analyzed bills (optional, can be nil)
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
