package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joonpak/stockradar/internal/llm"
	"github.com/joonpak/stockradar/internal/selector"
)

// industryResponse is the JSON shape the prediction prompt asks for.
type industryResponse struct {
	Industries []struct {
		Name              string   `json:"name"`
		ImpactLevel       string   `json:"impact_level"`
		ImpactDescription string   `json:"impact_description"`
		TrendDirection    string   `json:"trend_direction"`
		SelectionReason   string   `json:"selection_reason"`
		RelatedArticleIDs []string `json:"related_article_ids"`
	} `json:"industries"`
}

// predictIndustries asks the model which industries the selected articles
// affect. Article references outside the selection are removed; an industry
// left with no valid references is dropped entirely.
func predictIndustries(ctx context.Context, chat ChatClient, selected []selector.ScoredArticle) ([]Industry, error) {
	raw, err := chat.Chat(ctx, industryPrompt(selected), true)
	if err != nil {
		return nil, fmt.Errorf("predicting industries: %w", err)
	}

	var resp industryResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parsing industry response: %w", err)
	}
	if len(resp.Industries) == 0 {
		return nil, fmt.Errorf("industry response names no industries")
	}

	valid := make(map[string]bool, len(selected))
	for _, s := range selected {
		valid[s.Article.ID] = true
	}

	industries := make([]Industry, 0, len(resp.Industries))
	for _, in := range resp.Industries {
		refs := make([]string, 0, len(in.RelatedArticleIDs))
		for _, id := range in.RelatedArticleIDs {
			if valid[id] {
				refs = append(refs, id)
			} else {
				slog.Warn("industry references unknown article, removing",
					"industry", in.Name, "article_id", id)
			}
		}
		if len(refs) == 0 {
			slog.Warn("dropping industry with no valid article references", "industry", in.Name)
			continue
		}
		industries = append(industries, Industry{
			Name:              in.Name,
			ImpactLevel:       normalizeImpact(in.ImpactLevel),
			ImpactDescription: in.ImpactDescription,
			TrendDirection:    in.TrendDirection,
			SelectionReason:   in.SelectionReason,
			RelatedArticleIDs: refs,
		})
	}
	if len(industries) == 0 {
		return nil, fmt.Errorf("no industry survived article reference validation")
	}
	return industries, nil
}

func industryPrompt(selected []selector.ScoredArticle) []llm.Message {
	var b strings.Builder
	b.WriteString("다음 뉴스 기사들을 분석하여 주가 상승이 예상되는 산업을 3~7개 선정하라.\n")
	b.WriteString("각 산업마다 영향 수준(high/medium/low), 영향 설명, 추세 방향, 선정 이유, 근거 기사 ID 목록을 제시하라.\n")
	b.WriteString("related_article_ids에는 아래 목록에 있는 기사 ID만 사용하라.\n\n")
	for _, s := range selected {
		fmt.Fprintf(&b, "[%s]\n제목: %s\n요약: %s\n\n", s.Article.ID, s.Article.Title, s.Article.Summary)
	}
	b.WriteString(`JSON으로만 응답하라: {"industries":[{"name":"...","impact_level":"high","impact_description":"...","trend_direction":"...","selection_reason":"...","related_article_ids":["..."]}]}`)

	return []llm.Message{
		{Role: "system", Content: "당신은 뉴스에서 산업별 시장 영향을 도출하는 한국 주식 시장 애널리스트다."},
		{Role: "user", Content: b.String()},
	}
}

// normalizeImpact folds model variations onto the three canonical levels.
func normalizeImpact(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high", "높음":
		return "high"
	case "low", "낮음":
		return "low"
	default:
		return "medium"
	}
}

// extractJSON pulls the JSON object out of a model response that may carry
// markdown code fences or conversational filler.
func extractJSON(raw string) string {
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
