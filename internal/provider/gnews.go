package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const gnewsDefaultBaseURL = "https://gnews.io/api/v4"

// GNews queries the GNews search API for Korean-language news.
type GNews struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewGNews(apiKey, baseURL string) *GNews {
	if baseURL == "" {
		baseURL = gnewsDefaultBaseURL
	}
	return &GNews{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *GNews) Name() string { return "gnews" }

type gnewsResponse struct {
	Articles []gnewsArticle `json:"articles"`
}

type gnewsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

func (g *GNews) Fetch(ctx context.Context, keywords []string) ([]Article, error) {
	query := strings.Join(keywords, " OR ")

	params := url.Values{}
	params.Set("q", query)
	params.Set("lang", "ko")
	params.Set("country", "kr")
	params.Set("max", "100")
	params.Set("apikey", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating gnews request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gnews request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gnews: unexpected status %d", resp.StatusCode)
	}

	var result gnewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding gnews response: %w", err)
	}

	articles := make([]Article, 0, len(result.Articles))
	for _, a := range result.Articles {
		if a.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			slog.Warn("skipping gnews item with bad publishedAt", "publishedAt", a.PublishedAt, "url", a.URL)
			continue
		}
		articles = append(articles, Article{
			Title:       a.Title,
			Summary:     a.Description,
			Source:      a.Source.Name,
			Provider:    g.Name(),
			URL:         a.URL,
			PublishedAt: publishedAt,
		})
	}
	return articles, nil
}
