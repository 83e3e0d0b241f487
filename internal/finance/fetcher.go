package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joonpak/stockradar/internal/dart"
	"github.com/joonpak/stockradar/internal/storage"
)

// ErrNoClient is returned when no DART client is configured (missing API key).
var ErrNoClient = errors.New("financial data client not configured")

// Metrics are the derived indicators the health scorer consumes. Growth and
// margin values are percentages; current_ratio is a multiple. Nil means the
// underlying line items were missing from the filing.
type Metrics struct {
	Revenue               *float64 `json:"revenue,omitempty"`
	RevenueGrowth         *float64 `json:"revenue_growth,omitempty"`
	OperatingProfit       *float64 `json:"operating_profit,omitempty"`
	OperatingProfitGrowth *float64 `json:"operating_profit_growth,omitempty"`
	OperatingMargin       *float64 `json:"operating_margin,omitempty"`
	NetIncome             *float64 `json:"net_income,omitempty"`
	DebtRatio             *float64 `json:"debt_ratio,omitempty"`
	CurrentRatio          *float64 `json:"current_ratio,omitempty"`
	EquityRatio           *float64 `json:"equity_ratio,omitempty"`
}

// StatementsClient is the DART surface the fetcher needs. *dart.Client
// satisfies it.
type StatementsClient interface {
	Statements(ctx context.Context, registryCode string, fiscalYear int) (map[string]dart.Account, error)
}

// Cache is the write-through statement cache. Implemented by *storage.Store.
type Cache interface {
	GetFinancialStatement(stockCode, registryCode string, fiscalYear int) (storage.FinancialStatement, error)
	SaveFinancialStatement(fs storage.FinancialStatement) error
}

// Company identifies one fetch target.
type Company struct {
	StockCode    string
	RegistryCode string
}

// Fetcher resolves financial metrics cache-first: a cached row for
// (stock, registry, year) short-circuits the network entirely.
type Fetcher struct {
	client StatementsClient // nil when no DART key is configured
	cache  Cache
}

func NewFetcher(client StatementsClient, cache Cache) *Fetcher {
	return &Fetcher{client: client, cache: cache}
}

// Fetch returns metrics for one company and fiscal year.
func (f *Fetcher) Fetch(ctx context.Context, company Company, fiscalYear int) (Metrics, error) {
	cached, err := f.cache.GetFinancialStatement(company.StockCode, company.RegistryCode, fiscalYear)
	if err == nil {
		var m Metrics
		if jsonErr := json.Unmarshal([]byte(cached.LineItems), &m); jsonErr == nil {
			return m, nil
		}
		slog.Warn("corrupt cached financial statement, refetching",
			"stock_code", company.StockCode, "fiscal_year", fiscalYear)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Metrics{}, fmt.Errorf("reading financial cache: %w", err)
	}

	if f.client == nil {
		return Metrics{}, ErrNoClient
	}
	if company.RegistryCode == "" {
		return Metrics{}, fmt.Errorf("no registry code for %s", company.StockCode)
	}

	accounts, err := f.client.Statements(ctx, company.RegistryCode, fiscalYear)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetching statements for %s: %w", company.StockCode, err)
	}
	m := deriveMetrics(accounts)

	payload, err := json.Marshal(m)
	if err != nil {
		return Metrics{}, err
	}
	if err := f.cache.SaveFinancialStatement(storage.FinancialStatement{
		StockCode:    company.StockCode,
		RegistryCode: company.RegistryCode,
		FiscalYear:   fiscalYear,
		LineItems:    string(payload),
		FetchedAt:    time.Now().UTC(),
	}); err != nil {
		// A failed cache write only costs a refetch next time.
		slog.Warn("writing financial cache failed", "stock_code", company.StockCode, "error", err)
	}
	return m, nil
}

// FetchAll fetches metrics for many companies concurrently, bounded so the
// rate-limited upstream is not hammered. Per-company failures are logged and
// the company is left out of the result.
func (f *Fetcher) FetchAll(ctx context.Context, companies []Company, fiscalYear int) map[string]Metrics {
	results := make(map[string]Metrics, len(companies))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, company := range companies {
		company := company
		g.Go(func() error {
			m, err := f.Fetch(gCtx, company, fiscalYear)
			if err != nil {
				slog.Warn("skipping company without financial data",
					"stock_code", company.StockCode,
					"registry_code", company.RegistryCode,
					"fiscal_year", fiscalYear,
					"error", err)
				return nil
			}
			mu.Lock()
			results[company.StockCode] = m
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// deriveMetrics computes growth and ratio indicators from raw line items.
func deriveMetrics(accounts map[string]dart.Account) Metrics {
	var m Metrics

	revenue := accounts["revenue"]
	m.Revenue = revenue.Current
	m.RevenueGrowth = growth(revenue.Current, revenue.Prior)

	op := accounts["operating_profit"]
	m.OperatingProfit = op.Current
	m.OperatingProfitGrowth = growth(op.Current, op.Prior)
	m.OperatingMargin = ratio(op.Current, revenue.Current, 100)

	m.NetIncome = accounts["net_income"].Current

	liabilities := accounts["total_liabilities"].Current
	equity := accounts["total_equity"].Current
	m.DebtRatio = ratio(liabilities, equity, 100)
	m.EquityRatio = ratio(equity, accounts["total_assets"].Current, 100)
	m.CurrentRatio = ratio(accounts["current_assets"].Current, accounts["current_liabilities"].Current, 1)

	return m
}

// growth returns (current-prior)/|prior| as a percentage, or nil when either
// amount is missing or the prior year is zero.
func growth(current, prior *float64) *float64 {
	if current == nil || prior == nil || *prior == 0 {
		return nil
	}
	v := (*current - *prior) / math.Abs(*prior) * 100
	return &v
}

// ratio returns numerator/denominator scaled, or nil when either side is
// missing or the denominator is zero.
func ratio(numerator, denominator *float64, scale float64) *float64 {
	if numerator == nil || denominator == nil || *denominator == 0 {
		return nil
	}
	v := *numerator / *denominator * scale
	return &v
}
