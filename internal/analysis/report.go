package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joonpak/stockradar/internal/llm"
	"github.com/joonpak/stockradar/internal/storage"
)

// articleImpact is how one article bears on an industry, stored inside the
// industry's related_article_ids JSON.
type articleImpact struct {
	ArticleID string `json:"article_id"`
	Impact    string `json:"impact_on_industry,omitempty"`
}

// reportResponse is the JSON shape the synthesis prompt asks for.
type reportResponse struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Industries []struct {
		Name              string `json:"name"`
		ImpactDescription string `json:"impact_description"`
		TrendDirection    string `json:"trend_direction"`
		SelectionReason   string `json:"selection_reason"`
		ArticleImpacts    []struct {
			ArticleID string `json:"article_id"`
			Impact    string `json:"impact_on_industry"`
		} `json:"article_impacts"`
		Companies []struct {
			StockCode string `json:"stock_code"`
			StockName string `json:"stock_name"`
			Reasoning string `json:"reasoning"`
		} `json:"companies"`
	} `json:"industries"`
}

// synthesizeReport runs the final narrative LLM call and reconciles its
// output against the computed pipeline data. The model writes prose; the
// extractor's codes, registry data, and health scores stay authoritative.
func synthesizeReport(ctx context.Context, chat ChatClient, state *RunState) (storage.Report, error) {
	raw, err := chat.Chat(ctx, reportPrompt(state), true)
	if err != nil {
		return storage.Report{}, fmt.Errorf("synthesizing report: %w", err)
	}
	var resp reportResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return storage.Report{}, fmt.Errorf("parsing report response: %w", err)
	}

	report := storage.Report{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(resp.Title),
		Summary:      strings.TrimSpace(resp.Summary),
		AnalysisDate: state.AnalysisDate,
		CreatedAt:    time.Now().UTC(),
	}
	if report.Title == "" {
		report.Title = fmt.Sprintf("%s 시장 분석 리포트", state.AnalysisDate)
	}

	narratives := make(map[string]int, len(resp.Industries))
	for i, in := range resp.Industries {
		narratives[in.Name] = i
	}

	for _, industry := range state.Industries {
		ri := storage.ReportIndustry{
			ID:                uuid.NewString(),
			ReportID:          report.ID,
			Name:              industry.Name,
			ImpactLevel:       industry.ImpactLevel,
			ImpactDescription: industry.ImpactDescription,
			TrendDirection:    industry.TrendDirection,
			SelectionReason:   industry.SelectionReason,
		}

		companies := industry.Companies
		impacts := defaultImpacts(industry)
		if idx, ok := narratives[industry.Name]; ok {
			nar := resp.Industries[idx]
			if nar.ImpactDescription != "" {
				ri.ImpactDescription = nar.ImpactDescription
			}
			if nar.TrendDirection != "" {
				ri.TrendDirection = nar.TrendDirection
			}
			if nar.SelectionReason != "" {
				ri.SelectionReason = nar.SelectionReason
			}
			impacts = mergeImpacts(industry, nar.ArticleImpacts)
			companies = reconcileCompanies(industry, nar.Companies)
		} else {
			slog.Warn("synthesis omitted industry, keeping computed data", "industry", industry.Name)
		}

		refs, err := json.Marshal(impacts)
		if err != nil {
			return storage.Report{}, err
		}
		ri.RelatedArticleIDs = string(refs)

		for _, c := range companies {
			rc := storage.ReportCompany{
				ID:           uuid.NewString(),
				IndustryID:   ri.ID,
				StockCode:    c.StockCode,
				StockName:    c.StockName,
				RegistryCode: c.RegistryCode,
				Reasoning:    c.Reasoning,
			}
			if hs, ok := state.Health[c.StockCode]; ok {
				score := hs.Score
				rc.HealthScore = &score
				breakdown, err := json.Marshal(hs.Breakdown)
				if err != nil {
					return storage.Report{}, err
				}
				rc.ScoreBreakdown = string(breakdown)
			}
			ri.Companies = append(ri.Companies, rc)
		}
		report.Industries = append(report.Industries, ri)
	}

	for _, s := range state.Selected {
		report.Articles = append(report.Articles, storage.ReportArticle{
			ArticleID: s.Article.ID,
			Score:     s.Score,
			Reason:    s.Reason,
		})
	}
	return report, nil
}

// reconcileCompanies keeps the model's rewritten company list only when at
// least one of its stock codes matches an extracted company; otherwise the
// extractor's list stands verbatim. The model only ever rewrites prose for
// companies the extractor found: narrated entries absent from the extraction
// are dropped, and registry codes always come from the extractor.
func reconcileCompanies(industry Industry, narrated []struct {
	StockCode string `json:"stock_code"`
	StockName string `json:"stock_name"`
	Reasoning string `json:"reasoning"`
}) []Company {
	extracted := make(map[string]Company, len(industry.Companies))
	for _, c := range industry.Companies {
		extracted[c.StockCode] = c
	}

	matched := false
	for _, n := range narrated {
		if _, ok := extracted[strings.TrimSpace(n.StockCode)]; ok {
			matched = true
			break
		}
	}
	if !matched {
		if len(narrated) > 0 {
			slog.Warn("synthesis company list shares no stock code with extraction, using extracted list",
				"industry", industry.Name)
		}
		return industry.Companies
	}

	out := make([]Company, 0, len(narrated))
	for _, n := range narrated {
		code := strings.TrimSpace(n.StockCode)
		ex, ok := extracted[code]
		if !ok {
			slog.Warn("synthesis added company outside the extraction, dropping",
				"industry", industry.Name, "stock_code", code, "stock_name", n.StockName)
			continue
		}
		c := Company{
			StockCode:    code,
			StockName:    strings.TrimSpace(n.StockName),
			RegistryCode: ex.RegistryCode,
			Reasoning:    n.Reasoning,
		}
		if c.StockName == "" {
			c.StockName = ex.StockName
		}
		out = append(out, c)
	}
	return out
}

func defaultImpacts(industry Industry) []articleImpact {
	out := make([]articleImpact, len(industry.RelatedArticleIDs))
	for i, id := range industry.RelatedArticleIDs {
		out[i] = articleImpact{ArticleID: id}
	}
	return out
}

// mergeImpacts attaches per-article impact narratives to the industry's
// validated references. Narrated IDs outside the reference set are ignored.
func mergeImpacts(industry Industry, narrated []struct {
	ArticleID string `json:"article_id"`
	Impact    string `json:"impact_on_industry"`
}) []articleImpact {
	byID := make(map[string]string, len(narrated))
	for _, n := range narrated {
		byID[n.ArticleID] = n.Impact
	}
	out := defaultImpacts(industry)
	for i := range out {
		out[i].Impact = byID[out[i].ArticleID]
	}
	return out
}

func reportPrompt(state *RunState) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "분석 날짜: %s\n\n", state.AnalysisDate)
	b.WriteString("아래 분석 결과를 바탕으로 시장 분석 리포트를 작성하라.\n")
	b.WriteString("summary는 500~800자, <p> 태그로 문단을 구분한다.\n")
	b.WriteString("각 산업마다 서술을 다듬고, 근거 기사별로 산업에 미치는 영향(impact_on_industry)을 서술하라.\n")
	b.WriteString("기업 목록은 아래 추출 결과를 기준으로 하되 서술(reasoning)을 보강하라. 종목코드를 바꾸지 마라.\n\n")

	b.WriteString("선정 기사:\n")
	for _, s := range state.Selected {
		fmt.Fprintf(&b, "[%s] %s (%s)\n", s.Article.ID, s.Article.Title, s.Article.Source)
	}
	b.WriteString("\n산업 분석:\n")
	for _, in := range state.Industries {
		fmt.Fprintf(&b, "- %s (영향: %s, 추세: %s): %s\n  근거 기사: %s\n",
			in.Name, in.ImpactLevel, in.TrendDirection, in.ImpactDescription,
			strings.Join(in.RelatedArticleIDs, ", "))
		for _, c := range in.Companies {
			line := fmt.Sprintf("  - %s(%s)", c.StockName, c.StockCode)
			if hs, ok := state.Health[c.StockCode]; ok {
				line += fmt.Sprintf(" 재무건전성 %.2f", hs.Score)
			}
			fmt.Fprintf(&b, "%s: %s\n", line, c.Reasoning)
		}
	}

	b.WriteString("\nJSON으로만 응답하라: ")
	b.WriteString(`{"title":"...","summary":"<p>...</p>","industries":[{"name":"...","impact_description":"...","trend_direction":"...","selection_reason":"...","article_impacts":[{"article_id":"...","impact_on_industry":"..."}],"companies":[{"stock_code":"...","stock_name":"...","reasoning":"..."}]}]}`)

	return []llm.Message{
		{Role: "system", Content: "당신은 기관 투자자를 위한 일일 시장 분석 리포트를 작성하는 애널리스트다."},
		{Role: "user", Content: b.String()},
	}
}
