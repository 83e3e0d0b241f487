package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joonpak/stockradar/internal/finance"
	"github.com/joonpak/stockradar/internal/llm"
	"github.com/joonpak/stockradar/internal/selector"
	"github.com/joonpak/stockradar/internal/storage"
)

var (
	// ErrNoArticles means the analysis window held nothing to analyze. No
	// report is written.
	ErrNoArticles = errors.New("no articles in analysis window")

	// ErrDuplicateRun means a report for the date already exists and force
	// was not set. The existing report id accompanies the error.
	ErrDuplicateRun = errors.New("report already exists for date")
)

// ChatClient is the LLM surface the analysis stages share. *llm.Client
// satisfies it.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, jsonMode bool) (string, error)
}

// ArticleSelector picks the articles to analyze. *selector.Selector satisfies it.
type ArticleSelector interface {
	Select(ctx context.Context, from, to time.Time) ([]selector.ScoredArticle, error)
}

// Financials resolves metrics for extracted companies. *finance.Fetcher
// satisfies it.
type Financials interface {
	FetchAll(ctx context.Context, companies []finance.Company, fiscalYear int) map[string]finance.Metrics
}

// ReportStore is the persistence surface of the pipeline. Implemented by
// *storage.Store.
type ReportStore interface {
	GetReportIDByDate(analysisDate string) (string, error)
	SaveReport(r storage.Report, replace bool) error
}

// RunResult summarizes one analysis run.
type RunResult struct {
	ReportID           string `json:"report_id"`
	Status             string `json:"status"` // "completed", "already_exists", "failed"
	ArticlesConsidered int    `json:"articles_considered"`
	Industries         int    `json:"industries,omitempty"`
	Companies          int    `json:"companies,omitempty"`
}

// Pipeline runs the daily analysis: select articles, predict industries,
// extract companies, fetch financials, score health, synthesize the report.
// Stages are strictly sequential; each consumes the state the previous one
// produced.
type Pipeline struct {
	selector   ArticleSelector
	chat       ChatClient
	financials Financials
	reports    ReportStore
	location   *time.Location
}

func NewPipeline(sel ArticleSelector, chat ChatClient, financials Financials, reports ReportStore, loc *time.Location) *Pipeline {
	if loc == nil {
		loc = time.UTC
	}
	return &Pipeline{selector: sel, chat: chat, financials: financials, reports: reports, location: loc}
}

// Run analyzes one date. With force unset, an existing report for the date
// short-circuits before any model call and returns ErrDuplicateRun alongside
// a result carrying the existing id.
func (p *Pipeline) Run(ctx context.Context, analysisDate string, force bool) (RunResult, error) {
	if analysisDate == "" {
		analysisDate = time.Now().In(p.location).Format("2006-01-02")
	}

	if !force {
		id, err := p.reports.GetReportIDByDate(analysisDate)
		if err == nil {
			return RunResult{ReportID: id, Status: "already_exists"}, ErrDuplicateRun
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return RunResult{Status: "failed"}, fmt.Errorf("checking for existing report: %w", err)
		}
	}

	from, to, err := Window(analysisDate, p.location)
	if err != nil {
		return RunResult{Status: "failed"}, err
	}
	state := &RunState{AnalysisDate: analysisDate, From: from, To: to}
	log := slog.With("analysis_date", analysisDate)

	state.Selected, err = p.selector.Select(ctx, from, to)
	if err != nil {
		return RunResult{Status: "failed"}, fmt.Errorf("selecting articles: %w", err)
	}
	if len(state.Selected) == 0 {
		return RunResult{Status: "failed"}, ErrNoArticles
	}
	log.Info("articles selected", "count", len(state.Selected))

	state.Industries, err = predictIndustries(ctx, p.chat, state.Selected)
	if err != nil {
		return RunResult{Status: "failed", ArticlesConsidered: len(state.Selected)}, err
	}
	log.Info("industries predicted", "count", len(state.Industries))

	// One failed extraction drops that industry's companies, not the run.
	for i := range state.Industries {
		industry := &state.Industries[i]
		companies, err := extractCompanies(ctx, p.chat, *industry, articlesForIndustry(*industry, state.Selected))
		if err != nil {
			log.Warn("company extraction failed, industry keeps no companies",
				"industry", industry.Name, "error", err)
			continue
		}
		industry.Companies = companies
	}

	// The most recent completed fiscal year is the one before the analysis date.
	fiscalYear := mustYear(analysisDate) - 1
	state.Financials = p.financials.FetchAll(ctx, fetchTargets(state.Industries), fiscalYear)

	state.Health = make(map[string]HealthScore, len(state.Financials))
	for code, metrics := range state.Financials {
		state.Health[code] = CalculateHealth(metrics)
	}
	log.Info("financials resolved", "companies", len(state.Financials), "fiscal_year", fiscalYear)

	report, err := synthesizeReport(ctx, p.chat, state)
	if err != nil {
		return RunResult{Status: "failed", ArticlesConsidered: len(state.Selected)}, err
	}
	if err := p.reports.SaveReport(report, force); err != nil {
		return RunResult{Status: "failed", ArticlesConsidered: len(state.Selected)},
			fmt.Errorf("saving report: %w", err)
	}

	result := RunResult{
		ReportID:           report.ID,
		Status:             "completed",
		ArticlesConsidered: len(state.Selected),
		Industries:         len(report.Industries),
	}
	for _, in := range report.Industries {
		result.Companies += len(in.Companies)
	}
	log.Info("analysis completed", "report_id", report.ID,
		"industries", result.Industries, "companies", result.Companies)
	return result, nil
}

// fetchTargets flattens the extracted companies, deduplicating stock codes
// that surfaced under multiple industries.
func fetchTargets(industries []Industry) []finance.Company {
	seen := make(map[string]bool)
	var targets []finance.Company
	for _, in := range industries {
		for _, c := range in.Companies {
			if seen[c.StockCode] {
				continue
			}
			seen[c.StockCode] = true
			targets = append(targets, finance.Company{StockCode: c.StockCode, RegistryCode: c.RegistryCode})
		}
	}
	return targets
}

func mustYear(analysisDate string) int {
	t, _ := time.Parse("2006-01-02", analysisDate)
	return t.Year()
}
