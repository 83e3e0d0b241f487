package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joonpak/stockradar/internal/analysis"
	"github.com/joonpak/stockradar/internal/ingest"
)

type fakeCollector struct {
	calls atomic.Int32
	query atomic.Value
}

func (f *fakeCollector) Collect(ctx context.Context, query string) (ingest.Result, error) {
	f.calls.Add(1)
	f.query.Store(query)
	return ingest.Result{}, nil
}

type fakeAnalyzer struct {
	calls atomic.Int32
	date  atomic.Value
}

func (f *fakeAnalyzer) Run(ctx context.Context, analysisDate string, force bool) (analysis.RunResult, error) {
	f.calls.Add(1)
	f.date.Store(analysisDate)
	return analysis.RunResult{Status: "completed"}, nil
}

func TestNew_RejectsBadSpecs(t *testing.T) {
	_, err := New(&fakeCollector{}, &fakeAnalyzer{}, Config{CollectSpec: "not a cron spec", AnalyzeSpec: "0 6 * * *"})
	if err == nil {
		t.Error("expected error on bad collect spec")
	}
	_, err = New(&fakeCollector{}, &fakeAnalyzer{}, Config{CollectSpec: "0 * * * *", AnalyzeSpec: "sometimes"})
	if err == nil {
		t.Error("expected error on bad analyze spec")
	}
}

func TestJobsRunDirectly(t *testing.T) {
	collector := &fakeCollector{}
	analyzer := &fakeAnalyzer{}
	s, err := New(collector, analyzer, Config{
		CollectSpec:  "0 * * * *",
		AnalyzeSpec:  "0 6 * * *",
		DefaultQuery: "주식,증시",
		Location:     time.UTC,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.runCollect()
	if collector.calls.Load() != 1 {
		t.Error("collect job did not run")
	}
	if got := collector.query.Load(); got != "주식,증시" {
		t.Errorf("query = %v", got)
	}

	s.runAnalyze()
	if analyzer.calls.Load() != 1 {
		t.Error("analyze job did not run")
	}
	want := time.Now().UTC().Format("2006-01-02")
	if got := analyzer.date.Load(); got != want {
		t.Errorf("date = %v, want %s", got, want)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakeCollector{}, &fakeAnalyzer{}, Config{
		CollectSpec: "0 * * * *",
		AnalyzeSpec: "0 6 * * *",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	s.Stop()
}
