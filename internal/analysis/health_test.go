package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/joonpak/stockradar/internal/finance"
)

func f(v float64) *float64 { return &v }

func TestCalculateHealth_AllStrong(t *testing.T) {
	hs := CalculateHealth(finance.Metrics{
		RevenueGrowth:         f(25),
		OperatingMargin:       f(18),
		OperatingProfitGrowth: f(30),
		DebtRatio:             f(20),
		CurrentRatio:          f(2.5),
	})
	if hs.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", hs.Score)
	}
	if hs.Breakdown.Stability != 1.0 {
		t.Errorf("stability = %v, want 1.0", hs.Breakdown.Stability)
	}
}

func TestCalculateHealth_AllWeak(t *testing.T) {
	hs := CalculateHealth(finance.Metrics{
		RevenueGrowth:         f(-30),
		OperatingMargin:       f(-5),
		OperatingProfitGrowth: f(-50),
		DebtRatio:             f(250),
		CurrentRatio:          f(0.3),
	})
	// Floor is the stability bucket's 0.2 minimum times its 0.2 weight.
	want := 0.2 * 0.2
	if math.Abs(hs.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", hs.Score, want)
	}
}

func TestCalculateHealth_MissingMetricsAreNeutral(t *testing.T) {
	hs := CalculateHealth(finance.Metrics{})
	if math.Abs(hs.Score-0.5) > 1e-9 {
		t.Errorf("score with no data = %v, want 0.5 neutral", hs.Score)
	}
	b := hs.Breakdown
	for name, v := range map[string]float64{
		"revenue_growth":          b.RevenueGrowth,
		"operating_margin":        b.OperatingMargin,
		"stability":               b.Stability,
		"operating_profit_growth": b.OperatingProfitGrowth,
	} {
		if math.Abs(v-0.5) > 1e-9 {
			t.Errorf("%s = %v, want 0.5", name, v)
		}
	}
}

func TestCalculateHealth_StabilityBlend(t *testing.T) {
	// Debt 40% scores 0.8, current ratio 1.2 scores 0.6.
	hs := CalculateHealth(finance.Metrics{DebtRatio: f(40), CurrentRatio: f(1.2)})
	want := 0.8*0.6 + 0.6*0.4
	if math.Abs(hs.Breakdown.Stability-want) > 1e-9 {
		t.Errorf("stability = %v, want %v", hs.Breakdown.Stability, want)
	}
}

func TestGrowthScoreThresholds(t *testing.T) {
	tests := []struct {
		pct  float64
		want float64
	}{
		{20, 1.0}, {19.9, 0.8}, {10, 0.8}, {9.9, 0.6}, {5, 0.6},
		{4.9, 0.4}, {0, 0.4}, {-0.1, 0.2}, {-10, 0.2}, {-10.1, 0.0},
	}
	for _, tt := range tests {
		if got := growthScore(tt.pct); got != tt.want {
			t.Errorf("growthScore(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestMarginScoreThresholds(t *testing.T) {
	tests := []struct {
		pct  float64
		want float64
	}{
		{15, 1.0}, {10, 0.8}, {5, 0.6}, {0, 0.4}, {-1, 0.0},
	}
	for _, tt := range tests {
		if got := marginScore(tt.pct); got != tt.want {
			t.Errorf("marginScore(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}

func TestDebtAndCurrentRatioThresholds(t *testing.T) {
	for _, tt := range []struct {
		pct  float64
		want float64
	}{
		{30, 1.0}, {50, 0.8}, {70, 0.6}, {100, 0.4}, {101, 0.2},
	} {
		if got := debtRatioScore(tt.pct); got != tt.want {
			t.Errorf("debtRatioScore(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
	for _, tt := range []struct {
		ratio float64
		want  float64
	}{
		{2.0, 1.0}, {1.5, 0.8}, {1.0, 0.6}, {0.5, 0.4}, {0.4, 0.2},
	} {
		if got := currentRatioScore(tt.ratio); got != tt.want {
			t.Errorf("currentRatioScore(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestWindow(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("loading location: %v", err)
	}
	from, to, err := Window("2026-08-25", loc)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	wantFrom := time.Date(2026, 8, 24, 6, 0, 0, 0, loc)
	wantTo := time.Date(2026, 8, 25, 23, 59, 59, 0, loc)
	if !from.Equal(wantFrom) {
		t.Errorf("from = %v, want %v", from, wantFrom)
	}
	if !to.Equal(wantTo) {
		t.Errorf("to = %v, want %v", to, wantTo)
	}

	if _, _, err := Window("25/08/2026", loc); err == nil {
		t.Error("expected error on malformed date")
	}
}
