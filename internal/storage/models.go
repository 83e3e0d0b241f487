package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Article is one collected news item. Identity is the normalized canonical
// URL; the same story reported by two providers is stored once.
type Article struct {
	ID           string
	Title        string
	Summary      string
	Source       string
	Provider     string // "naver", "newsdata", "gnews", "thenewsapi"
	CanonicalURL string
	PublishedAt  time.Time
	CollectedAt  time.Time
}

// FinancialStatement is a cached set of fiscal-year line items for one company.
type FinancialStatement struct {
	StockCode    string
	RegistryCode string
	FiscalYear   int
	LineItems    string // JSON object stored as text
	FetchedAt    time.Time
}

type Report struct {
	ID           string
	Title        string
	Summary      string
	AnalysisDate string // YYYY-MM-DD
	CreatedAt    time.Time
	Industries   []ReportIndustry
	Articles     []ReportArticle
}

type ReportIndustry struct {
	ID                string
	ReportID          string
	Name              string
	ImpactLevel       string // "high", "medium", "low"
	ImpactDescription string
	TrendDirection    string
	SelectionReason   string
	RelatedArticleIDs string // JSON array stored as text
	Companies         []ReportCompany
}

type ReportCompany struct {
	ID             string
	IndustryID     string
	StockCode      string
	StockName      string
	RegistryCode   string
	HealthScore    *float64 // nil when financial data was unavailable
	ScoreBreakdown string   // JSON object stored as text
	Reasoning      string
}

// ReportArticle records which articles the analysis considered and why.
type ReportArticle struct {
	ArticleID string
	Score     float64
	Reason    string
}
