package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const naverDefaultBaseURL = "https://openapi.naver.com"

// Naver queries the Naver news search API. It returns the most articles of
// the four providers (up to 100 per request) and is the primary source for
// Korean market news.
type Naver struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewNaver creates a Naver adapter. baseURL overrides the production
// endpoint; pass "" outside tests.
func NewNaver(clientID, clientSecret, baseURL string) *Naver {
	if baseURL == "" {
		baseURL = naverDefaultBaseURL
	}
	return &Naver{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *Naver) Name() string { return "naver" }

type naverResponse struct {
	Items []naverItem `json:"items"`
}

type naverItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

func (n *Naver) Fetch(ctx context.Context, keywords []string) ([]Article, error) {
	// "|" is Naver's OR operator.
	query := strings.Join(keywords, " | ")

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", "100")
	params.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/v1/search/news.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating naver request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", n.clientID)
	req.Header.Set("X-Naver-Client-Secret", n.clientSecret)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("naver: unexpected status %d", resp.StatusCode)
	}

	var result naverResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding naver response: %w", err)
	}

	articles := make([]Article, 0, len(result.Items))
	for _, item := range result.Items {
		link := item.OriginalLink
		if link == "" {
			link = item.Link
		}
		if link == "" {
			continue
		}

		publishedAt, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			slog.Warn("skipping naver item with bad pubDate", "pubDate", item.PubDate, "url", link)
			continue
		}

		articles = append(articles, Article{
			Title:       cleanNaverText(item.Title),
			Summary:     cleanNaverText(item.Description),
			Source:      hostOf(link),
			Provider:    n.Name(),
			URL:         link,
			PublishedAt: publishedAt,
		})
	}
	return articles, nil
}

// cleanNaverText strips the <b> highlight tags Naver wraps around matched
// keywords and unescapes HTML entities.
func cleanNaverText(s string) string {
	r := strings.NewReplacer("<b>", "", "</b>", "")
	return html.UnescapeString(r.Replace(s))
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
