package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joonpak/stockradar/internal/llm"
	"github.com/joonpak/stockradar/internal/selector"
	"github.com/joonpak/stockradar/internal/storage"
)

var (
	stockCodeRe    = regexp.MustCompile(`^\d{6}$`)
	registryCodeRe = regexp.MustCompile(`^\d{8}$`)
)

// companyResponse is the JSON shape the extraction prompt asks for.
type companyResponse struct {
	Companies []struct {
		StockCode    string `json:"stock_code"`
		StockName    string `json:"stock_name"`
		RegistryCode string `json:"registry_code"`
		Reasoning    string `json:"reasoning"`
	} `json:"companies"`
}

// extractCompanies asks the model which listed companies stand to benefit in
// one industry. Entries without a well-formed 6-digit stock code are
// discarded; malformed registry codes are repaired from the static table
// when the stock code is known, left empty otherwise.
func extractCompanies(ctx context.Context, chat ChatClient, industry Industry, articles []storage.Article) ([]Company, error) {
	raw, err := chat.Chat(ctx, companyPrompt(industry, articles), true)
	if err != nil {
		return nil, fmt.Errorf("extracting companies for %s: %w", industry.Name, err)
	}

	var resp companyResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parsing company response for %s: %w", industry.Name, err)
	}

	companies := make([]Company, 0, len(resp.Companies))
	seen := make(map[string]bool, len(resp.Companies))
	for _, c := range resp.Companies {
		code := strings.TrimSpace(c.StockCode)
		if !stockCodeRe.MatchString(code) {
			slog.Warn("discarding company with malformed stock code",
				"industry", industry.Name, "stock_name", c.StockName, "stock_code", c.StockCode)
			continue
		}
		if seen[code] {
			continue
		}
		seen[code] = true

		registry := strings.TrimSpace(c.RegistryCode)
		if !registryCodeRe.MatchString(registry) {
			registry = lookupRegistryCode(code)
		}
		companies = append(companies, Company{
			StockCode:    code,
			StockName:    strings.TrimSpace(c.StockName),
			RegistryCode: registry,
			Reasoning:    c.Reasoning,
		})
	}
	return companies, nil
}

func companyPrompt(industry Industry, articles []storage.Article) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "산업: %s\n영향 설명: %s\n추세: %s\n\n", industry.Name, industry.ImpactDescription, industry.TrendDirection)
	b.WriteString("위 산업에서 수혜가 예상되는 한국 상장기업을 2~5개 추출하라.\n")
	b.WriteString("stock_code는 6자리 종목코드, registry_code는 8자리 DART 고유번호다. 확실하지 않으면 registry_code는 빈 문자열로 둔다.\n\n")
	if len(articles) > 0 {
		b.WriteString("근거 기사:\n")
		for _, a := range articles {
			fmt.Fprintf(&b, "- %s: %s\n", a.Title, a.Summary)
		}
		b.WriteString("\n")
	}
	b.WriteString(`JSON으로만 응답하라: {"companies":[{"stock_code":"005930","stock_name":"삼성전자","registry_code":"00126380","reasoning":"..."}]}`)

	return []llm.Message{
		{Role: "system", Content: "당신은 산업 동향에서 수혜 기업을 찾아내는 한국 주식 시장 애널리스트다."},
		{Role: "user", Content: b.String()},
	}
}

// articlesForIndustry resolves an industry's article references against the
// selection. Missing references were already pruned during prediction.
func articlesForIndustry(industry Industry, selected []selector.ScoredArticle) []storage.Article {
	byID := make(map[string]storage.Article, len(selected))
	for _, s := range selected {
		byID[s.Article.ID] = s.Article
	}
	out := make([]storage.Article, 0, len(industry.RelatedArticleIDs))
	for _, id := range industry.RelatedArticleIDs {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out
}
