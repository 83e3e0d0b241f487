package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joonpak/stockradar/internal/llm"
)

func testState() *RunState {
	return &RunState{
		AnalysisDate: "2026-08-25",
		Selected:     selected(2),
		Industries: []Industry{{
			Name:              "반도체",
			ImpactLevel:       "high",
			ImpactDescription: "수요 회복",
			TrendDirection:    "상승",
			RelatedArticleIDs: []string{"a1", "a2"},
			Companies: []Company{
				{StockCode: "005930", StockName: "삼성전자", RegistryCode: "00126380", Reasoning: "업황 수혜"},
				{StockCode: "000660", StockName: "SK하이닉스", RegistryCode: "00164779", Reasoning: "메모리 가격"},
			},
		}},
		Health: map[string]HealthScore{
			"005930": {Score: 0.84, Breakdown: ScoreBreakdown{RevenueGrowth: 1.0}},
		},
	}
}

func TestSynthesizeReport_ReconcilesAgainstComputedData(t *testing.T) {
	// The model keeps 005930 with fresh prose and drops 000660.
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"title":"리포트","summary":"<p>요약.</p>","industries":[{
				"name":"반도체",
				"impact_description":"수요 회복 가속",
				"article_impacts":[{"article_id":"a1","impact_on_industry":"수요 신호"},{"article_id":"ghost","impact_on_industry":"무시"}],
				"companies":[
					{"stock_code":"005930","stock_name":"삼성전자","reasoning":"대표 수혜주"}
				]}]}`, nil
		},
	}

	report, err := synthesizeReport(context.Background(), chat, testState())
	if err != nil {
		t.Fatalf("synthesizeReport: %v", err)
	}
	if len(report.Industries) != 1 {
		t.Fatalf("industries = %d", len(report.Industries))
	}
	in := report.Industries[0]

	// One shared stock code keeps the model's list.
	if len(in.Companies) != 1 {
		t.Fatalf("companies = %+v, want model's reconciled list", in.Companies)
	}
	if in.Companies[0].StockCode != "005930" || in.Companies[0].RegistryCode != "00126380" {
		t.Errorf("company 0 = %+v, registry must be filled from extraction", in.Companies[0])
	}
	if in.Companies[0].HealthScore == nil || *in.Companies[0].HealthScore != 0.84 {
		t.Errorf("health score = %v, want computed 0.84", in.Companies[0].HealthScore)
	}
	if in.Companies[0].Reasoning != "대표 수혜주" {
		t.Errorf("reasoning = %q, narrative prose must win", in.Companies[0].Reasoning)
	}

	// Per-article impacts attach to validated references only.
	var impacts []articleImpact
	if err := json.Unmarshal([]byte(in.RelatedArticleIDs), &impacts); err != nil {
		t.Fatalf("parsing related_article_ids: %v", err)
	}
	if len(impacts) != 2 {
		t.Fatalf("impacts = %+v", impacts)
	}
	if impacts[0].ArticleID != "a1" || impacts[0].Impact != "수요 신호" {
		t.Errorf("impact 0 = %+v", impacts[0])
	}
	if impacts[1].ArticleID != "a2" || impacts[1].Impact != "" {
		t.Errorf("impact 1 = %+v, unnarrated article keeps empty impact", impacts[1])
	}

	if in.ImpactDescription != "수요 회복 가속" {
		t.Errorf("impact description = %q", in.ImpactDescription)
	}
	if len(report.Articles) != 2 || report.Articles[0].ArticleID != "a1" {
		t.Errorf("report articles = %+v", report.Articles)
	}
}

func TestSynthesizeReport_DropsCompaniesOutsideExtraction(t *testing.T) {
	// 005930 matches the extraction; 999999 exists nowhere in the pipeline
	// data and must not reach the persisted report.
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"title":"리포트","summary":"<p>요약.</p>","industries":[{
				"name":"반도체",
				"companies":[
					{"stock_code":"005930","stock_name":"삼성전자","reasoning":"대표 수혜주"},
					{"stock_code":"999999","stock_name":"유령기업","reasoning":"모델이 지어냄"}
				]}]}`, nil
		},
	}

	report, err := synthesizeReport(context.Background(), chat, testState())
	if err != nil {
		t.Fatalf("synthesizeReport: %v", err)
	}
	companies := report.Industries[0].Companies
	if len(companies) != 1 {
		t.Fatalf("companies = %+v, want only the extracted match", companies)
	}
	if companies[0].StockCode != "005930" {
		t.Errorf("company = %+v", companies[0])
	}
	for _, c := range companies {
		if c.StockCode == "999999" {
			t.Error("company outside the extraction persisted into the report")
		}
	}
}

func TestSynthesizeReport_NoSharedCodeKeepsExtractedList(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"title":"리포트","summary":"<p>요약.</p>","industries":[{
				"name":"반도체",
				"companies":[{"stock_code":"035720","stock_name":"카카오","reasoning":"전혀 다른 목록"}]}]}`, nil
		},
	}

	report, err := synthesizeReport(context.Background(), chat, testState())
	if err != nil {
		t.Fatalf("synthesizeReport: %v", err)
	}
	companies := report.Industries[0].Companies
	if len(companies) != 2 {
		t.Fatalf("companies = %+v, want extracted list verbatim", companies)
	}
	if companies[0].StockCode != "005930" || companies[1].StockCode != "000660" {
		t.Errorf("companies = %+v", companies)
	}
	if companies[1].Reasoning != "메모리 가격" {
		t.Errorf("reasoning = %q, extraction reasoning must survive", companies[1].Reasoning)
	}
}

func TestSynthesizeReport_OmittedIndustryKeepsComputedData(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"title":"리포트","summary":"<p>요약.</p>","industries":[]}`, nil
		},
	}

	report, err := synthesizeReport(context.Background(), chat, testState())
	if err != nil {
		t.Fatalf("synthesizeReport: %v", err)
	}
	in := report.Industries[0]
	if in.ImpactDescription != "수요 회복" {
		t.Errorf("impact description = %q, computed prose must stand", in.ImpactDescription)
	}
	if len(in.Companies) != 2 {
		t.Errorf("companies = %d, want extracted list", len(in.Companies))
	}
}

func TestSynthesizeReport_EmptyTitleGetsDefault(t *testing.T) {
	chat := &mockChat{
		chatFn: func(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error) {
			return `{"title":"","summary":"<p>요약.</p>","industries":[]}`, nil
		},
	}
	report, err := synthesizeReport(context.Background(), chat, testState())
	if err != nil {
		t.Fatalf("synthesizeReport: %v", err)
	}
	if !strings.Contains(report.Title, "2026-08-25") {
		t.Errorf("title = %q, want date-based default", report.Title)
	}
}
