package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joonpak/stockradar/internal/llm"
	"github.com/joonpak/stockradar/internal/retrieval"
	"github.com/joonpak/stockradar/internal/storage"
)

// retrievalQuery describes the kind of news the analysis cares about; the
// semantic search ranks the window's articles against it.
const retrievalQuery = "주가에 큰 영향을 미치는 뉴스: 기업 실적 발표, 정부 정책 변화, 산업 동향 변화, 인수합병, 금리 및 거시경제 지표"

const scoreBatchSize = 10

// ChatClient is the LLM surface the selector needs. *llm.Client satisfies it.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error)
}

// ArticleGetter hydrates article rows for index hits. Implemented by *storage.Store.
type ArticleGetter interface {
	GetArticlesByIDs(ids []string) ([]storage.Article, error)
}

// Retriever finds candidate articles inside the analysis window.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, from, to time.Time) ([]retrieval.ScoredRecord, error)
}

// ScoredArticle is one selected article with its relevance score.
type ScoredArticle struct {
	Article storage.Article
	Score   float64
	Reason  string
}

// Selector picks the articles most likely to move the market: semantic
// retrieval narrows the window to candidates, then an LLM scores them in
// batches. If the LLM is unavailable the similarity order stands.
type Selector struct {
	retriever      Retriever
	articles       ArticleGetter
	chat           ChatClient
	candidateLimit int
	target         int
	timeout        time.Duration
}

func New(retriever Retriever, articles ArticleGetter, chat ChatClient, candidateLimit, target int, timeout time.Duration) *Selector {
	if candidateLimit <= 0 {
		candidateLimit = 100
	}
	if target <= 0 {
		target = 20
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Selector{
		retriever:      retriever,
		articles:       articles,
		chat:           chat,
		candidateLimit: candidateLimit,
		target:         target,
		timeout:        timeout,
	}
}

// Select returns up to target articles published inside [from, to], ordered
// by relevance score descending with newer articles winning ties.
func (s *Selector) Select(ctx context.Context, from, to time.Time) ([]ScoredArticle, error) {
	hits, err := s.retriever.Retrieve(ctx, retrievalQuery, s.candidateLimit, from, to)
	if err != nil {
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	similarity := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ArticleID
		similarity[h.ArticleID] = float64(h.Score)
	}

	// Rows can vanish between indexing and selection; missing IDs are skipped.
	articles, err := s.articles.GetArticlesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidate articles: %w", err)
	}
	if len(articles) == 0 {
		return nil, nil
	}

	scored := s.scoreWithLLM(ctx, articles, similarity)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Article.PublishedAt.After(scored[j].Article.PublishedAt)
	})

	if len(scored) > s.target {
		scored = scored[:s.target]
	}
	return scored, nil
}

// scoreResponse is the JSON shape the scoring prompt asks for.
type scoreResponse struct {
	Scores []struct {
		ArticleID string  `json:"article_id"`
		Score     float64 `json:"score"`
		Reason    string  `json:"reason"`
	} `json:"scores"`
}

// scoreWithLLM scores candidates in batches. A malformed batch falls back to
// a neutral 0.5 for its members; if every batch fails the similarity order
// is used instead.
func (s *Selector) scoreWithLLM(ctx context.Context, articles []storage.Article, similarity map[string]float64) []ScoredArticle {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	scored := make([]ScoredArticle, len(articles))
	for i, a := range articles {
		scored[i] = ScoredArticle{Article: a, Score: 0.5}
	}
	byID := make(map[string]*ScoredArticle, len(articles))
	for i := range scored {
		byID[scored[i].Article.ID] = &scored[i]
	}

	anyBatchOK := false
	for start := 0; start < len(articles); start += scoreBatchSize {
		end := start + scoreBatchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]

		raw, err := s.chat.Chat(ctx, scorePrompt(batch), true)
		if err != nil {
			slog.Warn("relevance scoring batch failed, using neutral scores", "batch_start", start, "error", err)
			continue
		}
		resp, err := parseScores(raw)
		if err != nil {
			slog.Warn("relevance scoring batch unparseable, using neutral scores", "batch_start", start, "error", err)
			continue
		}
		anyBatchOK = true
		for _, sc := range resp.Scores {
			if sa, ok := byID[sc.ArticleID]; ok {
				sa.Score = clamp01(sc.Score)
				sa.Reason = sc.Reason
			}
		}
	}

	if !anyBatchOK {
		slog.Warn("all relevance scoring batches failed, falling back to similarity order")
		for i := range scored {
			scored[i].Score = clamp01(similarity[scored[i].Article.ID])
			scored[i].Reason = "의미 유사도 기반 선정"
		}
	}
	return scored
}

func scorePrompt(batch []storage.Article) []llm.Message {
	var b strings.Builder
	b.WriteString("다음 뉴스 기사들이 주식 시장에 미칠 영향력을 0.0에서 1.0 사이 점수로 평가하라.\n")
	b.WriteString("기업 실적, 정책 변화, 산업 동향, 인수합병, 거시경제 지표를 다루는 기사에 높은 점수를 준다.\n\n")
	for _, a := range batch {
		fmt.Fprintf(&b, "[%s]\n제목: %s\n요약: %s\n\n", a.ID, a.Title, a.Summary)
	}
	b.WriteString(`JSON으로만 응답하라: {"scores":[{"article_id":"...","score":0.0,"reason":"..."}]}`)

	return []llm.Message{
		{Role: "system", Content: "당신은 한국 주식 시장 뉴스의 영향력을 평가하는 애널리스트다."},
		{Role: "user", Content: b.String()},
	}
}

// parseScores handles models that wrap JSON in markdown fences or filler text.
func parseScores(raw string) (scoreResponse, error) {
	cleaned := stripToJSON(raw)
	var resp scoreResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return scoreResponse{}, fmt.Errorf("parsing score response: %w", err)
	}
	if len(resp.Scores) == 0 {
		return scoreResponse{}, fmt.Errorf("score response has no scores")
	}
	return resp, nil
}

// stripToJSON extracts the JSON object from a model response that may carry
// markdown code fences or conversational filler.
func stripToJSON(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}
	return cleaned
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
