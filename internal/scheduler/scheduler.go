// Package scheduler runs the recurring collect and analyze jobs in-process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/joonpak/stockradar/internal/analysis"
	"github.com/joonpak/stockradar/internal/ingest"
)

// Collector triggers one collection run. *ingest.Collector satisfies it.
type Collector interface {
	Collect(ctx context.Context, query string) (ingest.Result, error)
}

// Analyzer runs the pipeline for one date. *analysis.Pipeline satisfies it.
type Analyzer interface {
	Run(ctx context.Context, analysisDate string, force bool) (analysis.RunResult, error)
}

// Config sets the cron specs and the defaults the jobs run with.
type Config struct {
	CollectSpec  string // e.g. "0 * * * *"
	AnalyzeSpec  string // e.g. "0 6 * * *"
	DefaultQuery string
	Location     *time.Location
}

// Scheduler wires the collect and analyze jobs onto a cron runner. Jobs use
// a background context bounded per run so a wedged upstream cannot pile up
// overlapping invocations forever.
type Scheduler struct {
	cron      *cron.Cron
	collector Collector
	analyzer  Analyzer
	cfg       Config
}

func New(collector Collector, analyzer Analyzer, cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(cfg.Location)),
		collector: collector,
		analyzer:  analyzer,
		cfg:       cfg,
	}

	if _, err := s.cron.AddFunc(cfg.CollectSpec, s.runCollect); err != nil {
		return nil, fmt.Errorf("invalid collect schedule %q: %w", cfg.CollectSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.AnalyzeSpec, s.runAnalyze); err != nil {
		return nil, fmt.Errorf("invalid analyze schedule %q: %w", cfg.AnalyzeSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started",
		"collect_spec", s.cfg.CollectSpec, "analyze_spec", s.cfg.AnalyzeSpec)
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) runCollect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.collector.Collect(ctx, s.cfg.DefaultQuery)
	if err != nil {
		slog.Error("scheduled collection failed", "error", err)
		return
	}
	slog.Info("scheduled collection finished",
		"fetched", result.Fetched, "inserted", result.Inserted, "duplicates", result.Duplicates)
}

func (s *Scheduler) runAnalyze() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	date := time.Now().In(s.cfg.Location).Format("2006-01-02")
	result, err := s.analyzer.Run(ctx, date, false)
	if errors.Is(err, analysis.ErrDuplicateRun) {
		slog.Info("scheduled analysis skipped, report exists", "analysis_date", date, "report_id", result.ReportID)
		return
	}
	if err != nil {
		slog.Error("scheduled analysis failed", "analysis_date", date, "error", err)
		return
	}
	slog.Info("scheduled analysis finished", "analysis_date", date, "report_id", result.ReportID)
}
