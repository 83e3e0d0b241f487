package finance

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/joonpak/stockradar/internal/dart"
	"github.com/joonpak/stockradar/internal/storage"
)

type mockStatements struct {
	fn    func(ctx context.Context, registryCode string, fiscalYear int) (map[string]dart.Account, error)
	calls atomic.Int32
}

func (m *mockStatements) Statements(ctx context.Context, registryCode string, fiscalYear int) (map[string]dart.Account, error) {
	m.calls.Add(1)
	if m.fn != nil {
		return m.fn(ctx, registryCode, fiscalYear)
	}
	return samsungAccounts(), nil
}

func f(v float64) *float64 { return &v }

func samsungAccounts() map[string]dart.Account {
	return map[string]dart.Account{
		"revenue":             {Current: f(300), Prior: f(250)},
		"operating_profit":    {Current: f(30), Prior: f(10)},
		"net_income":          {Current: f(25)},
		"total_assets":        {Current: f(500)},
		"total_liabilities":   {Current: f(100)},
		"total_equity":        {Current: f(400)},
		"current_assets":      {Current: f(200)},
		"current_liabilities": {Current: f(80)},
	}
}

func openCache(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestFetch_DerivesMetrics(t *testing.T) {
	client := &mockStatements{}
	fetcher := NewFetcher(client, openCache(t))

	m, err := fetcher.Fetch(context.Background(), Company{StockCode: "005930", RegistryCode: "00126380"}, 2025)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if m.RevenueGrowth == nil || *m.RevenueGrowth != 20 {
		t.Errorf("revenue_growth = %v, want 20", m.RevenueGrowth)
	}
	if m.OperatingProfitGrowth == nil || *m.OperatingProfitGrowth != 200 {
		t.Errorf("operating_profit_growth = %v, want 200", m.OperatingProfitGrowth)
	}
	if m.OperatingMargin == nil || *m.OperatingMargin != 10 {
		t.Errorf("operating_margin = %v, want 10", m.OperatingMargin)
	}
	if m.DebtRatio == nil || *m.DebtRatio != 25 {
		t.Errorf("debt_ratio = %v, want 25", m.DebtRatio)
	}
	if m.CurrentRatio == nil || *m.CurrentRatio != 2.5 {
		t.Errorf("current_ratio = %v, want 2.5", m.CurrentRatio)
	}
	if m.EquityRatio == nil || *m.EquityRatio != 80 {
		t.Errorf("equity_ratio = %v, want 80", m.EquityRatio)
	}
}

func TestFetch_CacheFirst(t *testing.T) {
	client := &mockStatements{}
	fetcher := NewFetcher(client, openCache(t))
	company := Company{StockCode: "005930", RegistryCode: "00126380"}

	if _, err := fetcher.Fetch(context.Background(), company, 2025); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	m, err := fetcher.Fetch(context.Background(), company, 2025)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	if n := client.calls.Load(); n != 1 {
		t.Errorf("upstream called %d times, want 1 (cache hit must skip network)", n)
	}
	if m.RevenueGrowth == nil || *m.RevenueGrowth != 20 {
		t.Errorf("cached revenue_growth = %v, want 20", m.RevenueGrowth)
	}
}

func TestFetch_DifferentYearMissesCache(t *testing.T) {
	client := &mockStatements{}
	fetcher := NewFetcher(client, openCache(t))
	company := Company{StockCode: "005930", RegistryCode: "00126380"}

	if _, err := fetcher.Fetch(context.Background(), company, 2024); err != nil {
		t.Fatalf("Fetch 2024: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background(), company, 2025); err != nil {
		t.Fatalf("Fetch 2025: %v", err)
	}
	if n := client.calls.Load(); n != 2 {
		t.Errorf("upstream called %d times, want 2 (year is part of the key)", n)
	}
}

func TestFetch_MissingLineItemsAreNil(t *testing.T) {
	client := &mockStatements{
		fn: func(ctx context.Context, registryCode string, fiscalYear int) (map[string]dart.Account, error) {
			return map[string]dart.Account{
				"revenue": {Current: f(100)}, // no prior year, nothing else
			}, nil
		},
	}
	fetcher := NewFetcher(client, openCache(t))

	m, err := fetcher.Fetch(context.Background(), Company{StockCode: "000001", RegistryCode: "00000001"}, 2025)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if m.Revenue == nil || *m.Revenue != 100 {
		t.Errorf("revenue = %v, want 100", m.Revenue)
	}
	if m.RevenueGrowth != nil {
		t.Errorf("revenue_growth = %v, want nil without prior year", *m.RevenueGrowth)
	}
	if m.DebtRatio != nil || m.CurrentRatio != nil {
		t.Error("ratios must be nil when balance sheet items are missing")
	}
}

func TestFetch_NoClient(t *testing.T) {
	fetcher := NewFetcher(nil, openCache(t))
	_, err := fetcher.Fetch(context.Background(), Company{StockCode: "005930", RegistryCode: "00126380"}, 2025)
	if err == nil {
		t.Fatal("expected error without a configured client")
	}
}

func TestFetchAll_SkipsFailures(t *testing.T) {
	client := &mockStatements{
		fn: func(ctx context.Context, registryCode string, fiscalYear int) (map[string]dart.Account, error) {
			if registryCode == "00000002" {
				return nil, fmt.Errorf("%w for %s", dart.ErrNoData, registryCode)
			}
			return samsungAccounts(), nil
		},
	}
	fetcher := NewFetcher(client, openCache(t))

	companies := []Company{
		{StockCode: "005930", RegistryCode: "00126380"},
		{StockCode: "999999", RegistryCode: "00000002"}, // upstream failure
		{StockCode: "000660", RegistryCode: "00164779"},
		{StockCode: "123456", RegistryCode: ""}, // no registry code
	}
	got := fetcher.FetchAll(context.Background(), companies, 2025)

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (failures skipped, run continues)", len(got))
	}
	if _, ok := got["005930"]; !ok {
		t.Error("005930 missing from results")
	}
	if _, ok := got["000660"]; !ok {
		t.Error("000660 missing from results")
	}
}
