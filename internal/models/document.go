// Package models defines core data structures for documents, chunks, and search results.
package models

// Document is a text blob with optional caller-supplied metadata. Documents
// are only held for the duration of ingestion; once chunked and embedded,
// nothing refers back to them.
type Document struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Chunk is a contiguous fragment of exactly one document.
// DocID is the document's position within its ingestion batch, ChunkID the
// fragment's position among the document's chunks (0 <= ChunkID < TotalChunks).
type Chunk struct {
	Text        string                 `json:"text"`
	DocID       int                    `json:"doc_id"`
	ChunkID     int                    `json:"chunk_id"`
	TotalChunks int                    `json:"total_chunks"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResult is a single retrieval hit. Distance is squared Euclidean
// (smaller = more similar); Score is the bounded conversion 1/(1+distance).
type SearchResult struct {
	Text     string                 `json:"text"`
	Distance float64                `json:"distance"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
