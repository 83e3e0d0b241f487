package retrieval

import (
	"context"
	"time"
)

// Retriever combines embedding and vector search to find articles
// semantically close to a query inside a publish-time window.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K most similar index records
// published inside [from, to].
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, from, to time.Time) ([]ScoredRecord, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(vec, topK, from, to)
}
