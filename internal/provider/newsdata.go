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
	"unicode/utf8"
)

const newsDataDefaultBaseURL = "https://newsdata.io/api/1"

// The free tier rejects q parameters over 100 characters with a 422.
const newsDataMaxQueryLen = 100

// NewsData queries the newsdata.io latest-news API. The free tier returns at
// most 10 results per request; this adapter takes one page.
type NewsData struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewNewsData(apiKey, baseURL string) *NewsData {
	if baseURL == "" {
		baseURL = newsDataDefaultBaseURL
	}
	return &NewsData{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *NewsData) Name() string { return "newsdata" }

type newsDataResponse struct {
	Status  string         `json:"status"`
	Results []newsDataItem `json:"results"`
}

type newsDataItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	PubDate     string `json:"pubDate"`
	SourceID    string `json:"source_id"`
}

// newsDataQuery joins keywords with " OR ", keeping only the leading
// keywords that fit the upstream's query length cap.
func newsDataQuery(keywords []string) string {
	var query string
	for _, kw := range keywords {
		candidate := kw
		if query != "" {
			candidate = query + " OR " + kw
		}
		if utf8.RuneCountInString(candidate) > newsDataMaxQueryLen {
			break
		}
		query = candidate
	}
	if query == "" && len(keywords) > 0 {
		// A single over-long keyword still yields a best-effort query.
		query = string([]rune(keywords[0])[:newsDataMaxQueryLen])
	}
	return query
}

func (n *NewsData) Fetch(ctx context.Context, keywords []string) ([]Article, error) {
	query := newsDataQuery(keywords)

	params := url.Values{}
	params.Set("apikey", n.apiKey)
	params.Set("q", query)
	params.Set("language", "ko")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/latest?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating newsdata request: %w", err)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsdata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsdata: unexpected status %d", resp.StatusCode)
	}

	var result newsDataResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding newsdata response: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("newsdata: status %q", result.Status)
	}

	articles := make([]Article, 0, len(result.Results))
	for _, item := range result.Results {
		if item.Link == "" {
			continue
		}
		// pubDate is "2006-01-02 15:04:05" in UTC.
		publishedAt, err := time.Parse(time.DateTime, item.PubDate)
		if err != nil {
			slog.Warn("skipping newsdata item with bad pubDate", "pubDate", item.PubDate, "url", item.Link)
			continue
		}
		articles = append(articles, Article{
			Title:       item.Title,
			Summary:     item.Description,
			Source:      item.SourceID,
			Provider:    n.Name(),
			URL:         item.Link,
			PublishedAt: publishedAt.UTC(),
		})
	}
	return articles, nil
}
