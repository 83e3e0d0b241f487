package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joonpak/stockradar/internal/analysis"
	"github.com/joonpak/stockradar/internal/ingest"
	"github.com/joonpak/stockradar/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Collector triggers one news collection run. *ingest.Collector satisfies it.
type Collector interface {
	Collect(ctx context.Context, query string) (ingest.Result, error)
}

// Analyzer runs the analysis pipeline for one date. *analysis.Pipeline
// satisfies it.
type Analyzer interface {
	Run(ctx context.Context, analysisDate string, force bool) (analysis.RunResult, error)
}

// ReportReader serves stored reports. Implemented by *storage.Store.
type ReportReader interface {
	GetReport(id string) (storage.Report, error)
	GetReportByDate(analysisDate string) (storage.Report, error)
}

type Deps struct {
	Collector Collector
	Analyzer  Analyzer
	Reports   ReportReader

	// DefaultQuery is used when a collect request names no query, matching
	// the CLI and scheduler behavior.
	DefaultQuery string
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/collect", handleCollect(deps))
	r.Post("/api/analyze", handleAnalyze(deps))
	r.Get("/api/reports", handleReportByDate(deps))
	r.Get("/api/reports/{id}", handleReport(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleCollect(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			query = deps.DefaultQuery
		}

		result, err := deps.Collector.Collect(r.Context(), query)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "collection failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

type analyzeRequest struct {
	Date  string `json:"date"`
	Force bool   `json:"force"`
}

func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Date != "" {
			if _, err := time.Parse("2006-01-02", req.Date); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "date must be YYYY-MM-DD")
				return
			}
		}

		result, err := deps.Analyzer.Run(r.Context(), req.Date, req.Force)
		switch {
		case errors.Is(err, analysis.ErrDuplicateRun):
			// Not an error for the caller; the existing report id is the answer.
		case errors.Is(err, analysis.ErrNoArticles):
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "no articles in analysis window")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "analysis failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

func handleReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Reports.GetReport(chi.URLParam(r, "id"))
		writeReport(w, report, err)
	}
}

func handleReportByDate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "date query parameter is required")
			return
		}
		report, err := deps.Reports.GetReportByDate(date)
		writeReport(w, report, err)
	}
}

func writeReport(w http.ResponseWriter, report storage.Report, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "report not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load report: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reportView(report))
}

// View DTOs keep the wire shape stable and decode the JSON columns the
// storage layer carries as text.

type reportDTO struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Summary      string        `json:"summary"`
	AnalysisDate string        `json:"analysis_date"`
	CreatedAt    time.Time     `json:"created_at"`
	Industries   []industryDTO `json:"industries"`
	Articles     []articleDTO  `json:"articles"`
}

type industryDTO struct {
	Name              string          `json:"name"`
	ImpactLevel       string          `json:"impact_level"`
	ImpactDescription string          `json:"impact_description"`
	TrendDirection    string          `json:"trend_direction"`
	SelectionReason   string          `json:"selection_reason,omitempty"`
	RelatedArticles   json.RawMessage `json:"related_articles"`
	Companies         []companyDTO    `json:"companies"`
}

type companyDTO struct {
	StockCode      string          `json:"stock_code"`
	StockName      string          `json:"stock_name"`
	RegistryCode   string          `json:"registry_code,omitempty"`
	HealthScore    *float64        `json:"health_score"`
	ScoreBreakdown json.RawMessage `json:"score_breakdown,omitempty"`
	Reasoning      string          `json:"reasoning"`
}

type articleDTO struct {
	ArticleID string  `json:"article_id"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

func reportView(r storage.Report) reportDTO {
	dto := reportDTO{
		ID:           r.ID,
		Title:        r.Title,
		Summary:      r.Summary,
		AnalysisDate: r.AnalysisDate,
		CreatedAt:    r.CreatedAt,
		Industries:   make([]industryDTO, 0, len(r.Industries)),
		Articles:     make([]articleDTO, 0, len(r.Articles)),
	}
	for _, in := range r.Industries {
		idto := industryDTO{
			Name:              in.Name,
			ImpactLevel:       in.ImpactLevel,
			ImpactDescription: in.ImpactDescription,
			TrendDirection:    in.TrendDirection,
			SelectionReason:   in.SelectionReason,
			RelatedArticles:   rawJSON(in.RelatedArticleIDs, "[]"),
			Companies:         make([]companyDTO, 0, len(in.Companies)),
		}
		for _, c := range in.Companies {
			idto.Companies = append(idto.Companies, companyDTO{
				StockCode:      c.StockCode,
				StockName:      c.StockName,
				RegistryCode:   c.RegistryCode,
				HealthScore:    c.HealthScore,
				ScoreBreakdown: rawJSON(c.ScoreBreakdown, ""),
				Reasoning:      c.Reasoning,
			})
		}
		dto.Industries = append(dto.Industries, idto)
	}
	for _, a := range r.Articles {
		dto.Articles = append(dto.Articles, articleDTO{ArticleID: a.ArticleID, Score: a.Score, Reason: a.Reason})
	}
	return dto
}

// rawJSON passes a stored JSON column through untouched, falling back when
// the column is empty or holds junk.
func rawJSON(s, fallback string) json.RawMessage {
	if json.Valid([]byte(s)) && s != "" {
		return json.RawMessage(s)
	}
	if fallback == "" {
		return nil
	}
	return json.RawMessage(fallback)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
