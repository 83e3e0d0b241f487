package analysis

import (
	"fmt"
	"time"

	"github.com/joonpak/stockradar/internal/finance"
	"github.com/joonpak/stockradar/internal/selector"
)

// RunState carries the intermediate products of one analysis run through the
// pipeline stages. Stages only ever append; earlier fields are read-only for
// later stages.
type RunState struct {
	AnalysisDate string // YYYY-MM-DD
	From         time.Time
	To           time.Time

	Selected   []selector.ScoredArticle
	Industries []Industry
	Financials map[string]finance.Metrics // by stock code
	Health     map[string]HealthScore     // by stock code
}

// Industry is one predicted industry with its supporting evidence.
type Industry struct {
	Name              string
	ImpactLevel       string // "high", "medium", "low"
	ImpactDescription string
	TrendDirection    string
	SelectionReason   string
	RelatedArticleIDs []string
	Companies         []Company
}

// Company is one extracted listed company.
type Company struct {
	StockCode    string // 6-digit KRX ticker
	StockName    string
	RegistryCode string // 8-digit DART corp code, may be empty
	Reasoning    string
}

// Window returns the analysis window for date D: from D-1 06:00 to
// D 23:59:59 in the given location. The overlap with the previous day
// catches after-hours news that moves the next session.
func Window(analysisDate string, loc *time.Location) (from, to time.Time, err error) {
	day, err := time.ParseInLocation("2006-01-02", analysisDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing analysis date %q: %w", analysisDate, err)
	}
	from = day.AddDate(0, 0, -1).Add(6 * time.Hour)
	to = day.Add(24*time.Hour - time.Second)
	return from, to, nil
}
