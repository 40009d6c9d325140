package models

// Document is a unit of text submitted for ingestion. It is never persisted
// itself; only its digest and derived chunks are.
type Document struct {
	Text   string
	Source string
	Digest string
}

// IngestedDocument is a registry row recording a completed ingestion.
// At most one row exists per digest.
type IngestedDocument struct {
	Digest     string
	Source     string
	ChunkCount int
}

// Chunk is a token-bounded slice of a document's text.
type Chunk struct {
	Content string
	Source  string
	Index   int
}

// StoredChunk is the persisted form of a chunk plus its embedding.
type StoredChunk struct {
	Content   string
	Embedding []float32
	Source    string
	Index     int
}

// Candidate is a stored chunk returned by vector search with its
// cosine similarity to the query.
type Candidate struct {
	Content    string
	Source     string
	ChunkIndex int
	Similarity float64
}

// RerankedResult is a candidate with a cross-encoder relevance score
// attached.
type RerankedResult struct {
	Candidate
	Relevance float64
}

// Citation links a numbered claim in an answer back to its source chunk.
// Text holds a display excerpt, not the full chunk content.
type Citation struct {
	ID         int     `json:"id"`
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Relevance  float64 `json:"relevance"`
}
