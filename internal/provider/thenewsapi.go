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

const theNewsAPIDefaultBaseURL = "https://api.thenewsapi.com/v1"

// TheNewsAPI queries the thenewsapi.com all-news endpoint (up to 50 results).
type TheNewsAPI struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewTheNewsAPI(apiToken, baseURL string) *TheNewsAPI {
	if baseURL == "" {
		baseURL = theNewsAPIDefaultBaseURL
	}
	return &TheNewsAPI{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *TheNewsAPI) Name() string { return "thenewsapi" }

type theNewsAPIResponse struct {
	Data []theNewsAPIItem `json:"data"`
}

type theNewsAPIItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Source      string `json:"source"`
}

func (t *TheNewsAPI) Fetch(ctx context.Context, keywords []string) ([]Article, error) {
	// "|" is thenewsapi's OR operator in search.
	query := strings.Join(keywords, " | ")

	params := url.Values{}
	params.Set("api_token", t.apiToken)
	params.Set("search", query)
	params.Set("language", "ko")
	params.Set("limit", "50")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/news/all?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating thenewsapi request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("thenewsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thenewsapi: unexpected status %d", resp.StatusCode)
	}

	var result theNewsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding thenewsapi response: %w", err)
	}

	articles := make([]Article, 0, len(result.Data))
	for _, item := range result.Data {
		if item.URL == "" {
			continue
		}
		publishedAt, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			slog.Warn("skipping thenewsapi item with bad published_at", "published_at", item.PublishedAt, "url", item.URL)
			continue
		}
		articles = append(articles, Article{
			Title:       item.Title,
			Summary:     item.Description,
			Source:      item.Source,
			Provider:    t.Name(),
			URL:         item.URL,
			PublishedAt: publishedAt,
		})
	}
	return articles, nil
}
