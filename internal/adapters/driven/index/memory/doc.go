// Package memory provides in-process retrieval indexes. Both indexes
// key their data per document and replace a document's entries with a
// generation swap, so readers never observe a partial rebuild.
package memory
