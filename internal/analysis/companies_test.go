package analysis

import (
	"context"
	"testing"

	"github.com/joonpak/stockradar/internal/llm"
)

func TestExtractCompanies_ValidatesCodes(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"companies":[
				{"stock_code":"005930","stock_name":"삼성전자","registry_code":"00126380","reasoning":"ok"},
				{"stock_code":"삼성전자","stock_name":"삼성전자","registry_code":"","reasoning":"code is a name"},
				{"stock_code":"12345","stock_name":"짧은코드","registry_code":"","reasoning":"five digits"},
				{"stock_code":"000660","stock_name":"SK하이닉스","registry_code":"bad","reasoning":"registry repaired"},
				{"stock_code":"999999","stock_name":"무명기업","registry_code":"junk","reasoning":"not in table"}
			]}`, nil
		},
	}

	got, err := extractCompanies(context.Background(), chat, Industry{Name: "반도체"}, nil)
	if err != nil {
		t.Fatalf("extractCompanies: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d companies, want 3 (malformed stock codes discarded)", len(got))
	}

	if got[0].StockCode != "005930" || got[0].RegistryCode != "00126380" {
		t.Errorf("company 0 = %+v, well-formed registry code must pass through", got[0])
	}
	if got[1].StockCode != "000660" || got[1].RegistryCode != "00164779" {
		t.Errorf("company 1 = %+v, registry code must be repaired from the static table", got[1])
	}
	if got[2].StockCode != "999999" || got[2].RegistryCode != "" {
		t.Errorf("company 2 = %+v, unmapped company kept with empty registry code", got[2])
	}
}

func TestExtractCompanies_DeduplicatesStockCodes(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"companies":[
				{"stock_code":"005930","stock_name":"삼성전자","reasoning":"first"},
				{"stock_code":"005930","stock_name":"삼성전자","reasoning":"again"}
			]}`, nil
		},
	}
	got, err := extractCompanies(context.Background(), chat, Industry{Name: "반도체"}, nil)
	if err != nil {
		t.Fatalf("extractCompanies: %v", err)
	}
	if len(got) != 1 || got[0].Reasoning != "first" {
		t.Errorf("got %+v, want single first-seen entry", got)
	}
}

func TestExtractCompanies_Unparseable(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return "죄송합니다, 기업을 찾지 못했습니다.", nil
		},
	}
	if _, err := extractCompanies(context.Background(), chat, Industry{Name: "조선"}, nil); err == nil {
		t.Fatal("expected error on unparseable response")
	}
}

func TestArticlesForIndustry(t *testing.T) {
	sel := selected(3)
	industry := Industry{RelatedArticleIDs: []string{"a3", "a1", "gone"}}
	got := articlesForIndustry(industry, sel)
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2", len(got))
	}
	if got[0].ID != "a3" || got[1].ID != "a1" {
		t.Errorf("order = %s, %s; reference order must be preserved", got[0].ID, got[1].ID)
	}
}

func TestLookupRegistryCode(t *testing.T) {
	if got := lookupRegistryCode("005930"); got != "00126380" {
		t.Errorf("005930 → %q", got)
	}
	if got := lookupRegistryCode("123456"); got != "" {
		t.Errorf("unknown code → %q, want empty", got)
	}
}
