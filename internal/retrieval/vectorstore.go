package retrieval

import (
	"time"
)

// VectorStore is the interface for the semantic article index. The current
// implementation uses SQLite with brute-force cosine similarity; an
// ANN-capable backend can replace it behind this interface when the corpus
// outgrows linear scans.
type VectorStore interface {
	// Insert adds index rows.
	Insert(records []Record) error

	// Search returns the top-K records most similar to vector, restricted to
	// rows published inside [from, to]. Zero times disable the window.
	Search(vector []float32, topK int, from, to time.Time) ([]ScoredRecord, error)

	// DeleteByArticleID removes all index rows for one article.
	DeleteByArticleID(articleID string) error

	// Count returns the number of index rows.
	Count() (int, error)
}

// Record is one row of the semantic index. It is self-describing: the
// canonical URL and publish time are stored beside the vector so search
// results can be cited without joining the articles table.
type Record struct {
	ID           string
	ArticleID    string
	CanonicalURL string
	PublishedAt  time.Time
	Embedding    []float32
	CreatedAt    time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
