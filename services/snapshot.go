package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"multibagger/models"
	"multibagger/observability"

	"github.com/shopspring/decimal"
)

const statementHistoryYears = 10

// SnapshotCache stores built snapshots between discovery runs.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error)
	SetSnapshot(ctx context.Context, snapshot *models.StockSnapshot, ttl time.Duration) error
}

// SnapshotProvider builds the data snapshot for one symbol.
type SnapshotProvider interface {
	Build(ctx context.Context, symbol string) (*models.StockSnapshot, error)
}

// SnapshotOptions configures a SnapshotBuilder.
type SnapshotOptions struct {
	BenchmarkSymbol string
	HistoryRange    string
	NewsPageSize    int
	CacheTTL        time.Duration
}

// SnapshotBuilder assembles a StockSnapshot from the configured data sources.
// Any source may be nil; a failing source leaves its section empty.
type SnapshotBuilder struct {
	fundamentals FundamentalsServiceInterface
	market       MarketDataServiceInterface
	exchange     ExchangeServiceInterface
	news         NewsAPIServiceInterface
	cache        SnapshotCache
	opts         SnapshotOptions
	now          func() time.Time

	benchMu      sync.Mutex
	benchmark    []models.PriceBar
	benchFetched time.Time

	flowMu      sync.Mutex
	flow        *models.FIIDIIFlow
	flowFetched time.Time
}

func NewSnapshotBuilder(
	fundamentals FundamentalsServiceInterface,
	market MarketDataServiceInterface,
	exchange ExchangeServiceInterface,
	news NewsAPIServiceInterface,
	cache SnapshotCache,
	opts SnapshotOptions,
) *SnapshotBuilder {
	if opts.HistoryRange == "" {
		opts.HistoryRange = "5y"
	}
	if opts.NewsPageSize <= 0 {
		opts.NewsPageSize = 10
	}
	return &SnapshotBuilder{
		fundamentals: fundamentals,
		market:       market,
		exchange:     exchange,
		news:         news,
		cache:        cache,
		opts:         opts,
		now:          time.Now,
	}
}

// Build returns a cached snapshot when fresh, otherwise fetches every section
// concurrently. It only fails when ctx is done.
func (b *SnapshotBuilder) Build(ctx context.Context, symbol string) (*models.StockSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	log := observability.WithSymbol(symbol)

	if b.cache != nil && b.opts.CacheTTL > 0 {
		cached, err := b.cache.GetSnapshot(ctx, symbol)
		if err != nil {
			log.Warn("snapshot cache read failed", "error", err)
		} else if cached != nil {
			log.Debug("snapshot cache hit")
			return cached, nil
		}
	}

	snap := &models.StockSnapshot{Symbol: symbol}
	var (
		profile *CompanyProfile
		holders *HolderSummary
		history *PriceHistory
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	fetch := func(section string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				log.Warn("snapshot section unavailable", "section", section, "error", err)
			}
		}()
	}

	if b.fundamentals != nil {
		fetch("financials", func() error {
			s, err := b.fundamentals.GetIncomeStatements(ctx, symbol, statementHistoryYears)
			mu.Lock()
			snap.Financials = s
			mu.Unlock()
			return err
		})
		fetch("balance_sheet", func() error {
			s, err := b.fundamentals.GetBalanceSheets(ctx, symbol, statementHistoryYears)
			mu.Lock()
			snap.BalanceSheet = s
			mu.Unlock()
			return err
		})
		fetch("cashflow", func() error {
			s, err := b.fundamentals.GetCashFlows(ctx, symbol, statementHistoryYears)
			mu.Lock()
			snap.CashFlow = s
			mu.Unlock()
			return err
		})
		fetch("profile", func() error {
			p, err := b.fundamentals.GetCompanyProfile(ctx, symbol)
			mu.Lock()
			profile = p
			mu.Unlock()
			return err
		})
	}

	if b.market != nil {
		fetch("prices", func() error {
			h, err := b.market.GetDailyBars(ctx, symbol, b.opts.HistoryRange)
			mu.Lock()
			history = h
			mu.Unlock()
			return err
		})
		fetch("holders", func() error {
			h, err := b.market.GetHolderSummary(ctx, symbol)
			mu.Lock()
			holders = h
			mu.Unlock()
			return err
		})
		fetch("benchmark", func() error {
			bars, err := b.benchmarkBars(ctx)
			mu.Lock()
			snap.Benchmark = bars
			mu.Unlock()
			return err
		})
	}

	if b.exchange != nil {
		fetch("bulk_deals", func() error {
			d, err := b.exchange.GetBulkDeals(ctx, symbol)
			mu.Lock()
			snap.BulkDeals = d
			mu.Unlock()
			return err
		})
		fetch("fii_dii", func() error {
			f, err := b.fiiDIIFlow(ctx)
			if f != nil {
				mu.Lock()
				snap.FIIDII = *f
				mu.Unlock()
			}
			return err
		})
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap.Info = companyInfo(profile, holders, len(snap.Financials) > 0)
	if holders != nil {
		snap.Shareholding = shareholding(holders)
		snap.MutualFunds = holders.FundHoldings
	}
	if history != nil {
		snap.Prices = history.Bars
		snap.CurrentPrice = history.RegularMarketPrice
	}
	if profile != nil && profile.Price > 0 {
		snap.CurrentPrice = profile.Price
	}

	// news needs the company name, so it runs after the profile
	if b.news != nil {
		query := snap.Info.Name
		if query == "" {
			query = TrimExchangeSuffix(symbol)
		}
		articles, err := b.news.GetNews(ctx, NewsQuery(query), b.opts.NewsPageSize)
		if err != nil {
			log.Warn("snapshot section unavailable", "section", "news", "error", err)
		}
		snap.News = articles
	}

	snap.FetchedAt = b.now()

	if b.cache != nil && b.opts.CacheTTL > 0 {
		if err := b.cache.SetSnapshot(ctx, snap, b.opts.CacheTTL); err != nil {
			log.Warn("snapshot cache write failed", "error", err)
		}
	}
	return snap, nil
}

// benchmarkBars fetches the benchmark once per cache TTL (or per hour when
// caching is disabled) and shares it across symbols.
func (b *SnapshotBuilder) benchmarkBars(ctx context.Context) ([]models.PriceBar, error) {
	if b.opts.BenchmarkSymbol == "" {
		return nil, nil
	}

	b.benchMu.Lock()
	defer b.benchMu.Unlock()

	if b.benchmark != nil && b.now().Sub(b.benchFetched) < b.sharedTTL() {
		return b.benchmark, nil
	}

	h, err := b.market.GetDailyBars(ctx, b.opts.BenchmarkSymbol, b.opts.HistoryRange)
	if err != nil {
		return b.benchmark, err
	}
	b.benchmark = h.Bars
	b.benchFetched = b.now()
	return b.benchmark, nil
}

// fiiDIIFlow is market-wide, so it is shared across symbols like the benchmark.
func (b *SnapshotBuilder) fiiDIIFlow(ctx context.Context) (*models.FIIDIIFlow, error) {
	b.flowMu.Lock()
	defer b.flowMu.Unlock()

	if b.flow != nil && b.now().Sub(b.flowFetched) < b.sharedTTL() {
		return b.flow, nil
	}

	f, err := b.exchange.GetFIIDIIFlows(ctx)
	if err != nil {
		return b.flow, err
	}
	b.flow = f
	b.flowFetched = b.now()
	return f, nil
}

func (b *SnapshotBuilder) sharedTTL() time.Duration {
	if b.opts.CacheTTL > 0 {
		return b.opts.CacheTTL
	}
	return time.Hour
}

func companyInfo(profile *CompanyProfile, holders *HolderSummary, hasFinancials bool) models.CompanyInfo {
	info := models.CompanyInfo{HasFiscalYearEnd: hasFinancials}
	if profile != nil {
		info.Name = profile.CompanyName
		info.Sector = profile.Sector
		info.Industry = profile.Industry
		info.BusinessSummary = profile.Description
		info.Website = profile.Website
		info.FoundingYear = profile.IPOYear()
		if profile.MarketCap > 0 {
			info.MarketCap = decimal.NewFromFloat(profile.MarketCap)
		}
	}
	if holders != nil {
		info.Sector = firstNonEmpty(info.Sector, holders.Sector)
		info.Industry = firstNonEmpty(info.Industry, holders.Industry)
		info.Website = firstNonEmpty(info.Website, holders.Website)
		if len(holders.BusinessSummary) > len(info.BusinessSummary) {
			info.BusinessSummary = holders.BusinessSummary
		}
		info.HasGovernanceDate = holders.HasGovernanceDate
		info.HasFiscalYearEnd = info.HasFiscalYearEnd || holders.HasFiscalYearEnd
	}
	return info
}

func shareholding(h *HolderSummary) models.Shareholding {
	public := 100 - h.InsidersPercent - h.InstitutionsPercent
	if public < 0 {
		public = 0
	}
	return models.Shareholding{
		PromoterPercent:      h.InsidersPercent,
		InstitutionalPercent: h.InstitutionsPercent,
		PublicPercent:        public,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
