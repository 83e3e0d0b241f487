package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joonpak/stockradar/internal/provider"
	"github.com/joonpak/stockradar/internal/retrieval"
	"github.com/joonpak/stockradar/internal/storage"
)

// ArticleStore persists collected articles. Implemented by *storage.Store.
type ArticleStore interface {
	InsertArticle(a storage.Article) (inserted bool, err error)
}

// Embedder generates embedding vectors for article text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorInserter adds rows to the semantic index.
type VectorInserter interface {
	Insert(records []retrieval.Record) error
}

// Collector fans a query out to all configured providers, deduplicates the
// merged results by canonical URL, and persists new articles along with
// their index vectors.
type Collector struct {
	adapters []provider.Adapter
	store    ArticleStore
	embedder Embedder
	vectors  VectorInserter
}

func NewCollector(adapters []provider.Adapter, store ArticleStore, embedder Embedder, vectors VectorInserter) *Collector {
	return &Collector{
		adapters: adapters,
		store:    store,
		embedder: embedder,
		vectors:  vectors,
	}
}

// Result summarizes one collection run.
type Result struct {
	Fetched        int               `json:"fetched"`
	Inserted       int               `json:"inserted"`
	Duplicates     int               `json:"duplicates"`
	ProviderErrors map[string]string `json:"provider_errors,omitempty"`
}

// Collect runs one collection pass. Provider failures degrade to warnings in
// Result.ProviderErrors; the run only fails on storage errors.
func (c *Collector) Collect(ctx context.Context, query string) (Result, error) {
	keywords := provider.SplitKeywords(query)

	// Fan out to all providers concurrently; collect per-adapter results so
	// the merged order stays deterministic regardless of completion order.
	fetched := make([][]provider.Article, len(c.adapters))
	errs := make([]error, len(c.adapters))
	var wg sync.WaitGroup
	for i, a := range c.adapters {
		wg.Add(1)
		go func(i int, a provider.Adapter) {
			defer wg.Done()
			articles, err := a.Fetch(ctx, keywords)
			if err != nil {
				errs[i] = err
				return
			}
			fetched[i] = articles
		}(i, a)
	}
	wg.Wait()

	result := Result{ProviderErrors: map[string]string{}}
	for i, a := range c.adapters {
		if errs[i] != nil {
			slog.Warn("provider fetch failed", "provider", a.Name(), "error", errs[i])
			result.ProviderErrors[a.Name()] = errs[i].Error()
			continue
		}
		result.Fetched += len(fetched[i])
	}
	if len(result.ProviderErrors) == 0 {
		result.ProviderErrors = nil
	}

	// Deduplicate within the batch by canonical URL, first seen wins.
	seen := make(map[string]struct{})
	var fresh []storage.Article
	now := time.Now().UTC()
	for i := range c.adapters {
		for _, a := range fetched[i] {
			canonical, err := provider.CanonicalURL(a.URL)
			if err != nil || canonical == "" {
				slog.Warn("skipping article with unparseable url", "provider", a.Provider, "url", a.URL)
				continue
			}
			if _, dup := seen[canonical]; dup {
				result.Duplicates++
				continue
			}
			seen[canonical] = struct{}{}
			fresh = append(fresh, storage.Article{
				ID:           uuid.NewString(),
				Title:        a.Title,
				Summary:      a.Summary,
				Source:       a.Source,
				Provider:     a.Provider,
				CanonicalURL: canonical,
				PublishedAt:  a.PublishedAt,
				CollectedAt:  now,
			})
		}
	}

	// Persist; the UNIQUE index deduplicates against earlier runs.
	var inserted []storage.Article
	for _, a := range fresh {
		ok, err := c.store.InsertArticle(a)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			result.Duplicates++
			continue
		}
		result.Inserted++
		inserted = append(inserted, a)
	}

	if len(inserted) == 0 {
		return result, nil
	}

	// Index the new articles. Embedding failure is not fatal: articles are
	// already stored and a later run can re-collect the window.
	texts := make([]string, len(inserted))
	for i, a := range inserted {
		texts[i] = a.Title + "\n\n" + a.Summary
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		slog.Warn("embedding batch failed, articles stored without vectors", "count", len(inserted), "error", err)
		return result, nil
	}

	records := make([]retrieval.Record, len(inserted))
	for i, a := range inserted {
		records[i] = retrieval.Record{
			ID:           uuid.NewString(),
			ArticleID:    a.ID,
			CanonicalURL: a.CanonicalURL,
			PublishedAt:  a.PublishedAt,
			Embedding:    vectors[i],
			CreatedAt:    now,
		}
	}
	if err := c.vectors.Insert(records); err != nil {
		slog.Warn("vector insert failed, articles stored without vectors", "count", len(records), "error", err)
	}

	return result, nil
}
