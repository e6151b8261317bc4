package trading

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/models"
	"alpaca-trader/internal/secondary"
	"alpaca-trader/internal/store"
	"alpaca-trader/pkg/utils"
)

// fakeBroker scripts market data and order settlement for engine tests.
type fakeBroker struct {
	mu sync.Mutex

	marketOpen bool
	account    models.AccountState
	bars       map[string][]models.Bar
	quotes     map[string]models.Quote
	trades     map[string]models.Trade

	fill      bool // orders fill on the first poll
	fillPrice float64

	submitted []broker.OrderRequest
	cancelled []string
	counter   int
}

func (f *fakeBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	return f.marketOpen, nil
}

func (f *fakeBroker) GetAccountState(ctx context.Context) (*models.AccountState, error) {
	acct := f.account
	return &acct, nil
}

func (f *fakeBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	return f.bars[symbol], nil
}

func (f *fakeBroker) GetLatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	return f.quotes[symbol], nil
}

func (f *fakeBroker) GetLatestTrade(ctx context.Context, symbol string) (models.Trade, error) {
	return f.trades[symbol], nil
}

func (f *fakeBroker) SubmitOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	f.submitted = append(f.submitted, req)
	return fmt.Sprintf("order-%d", f.counter), nil
}

func (f *fakeBroker) GetOrderState(ctx context.Context, orderID string) (broker.OrderState, error) {
	if f.fill {
		return broker.OrderState{Status: models.OrderStatusFilled, FilledAvgPrice: f.fillPrice}, nil
	}
	return broker.OrderState{Status: models.OrderStatusPending}, nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

// fakeStore is an in-memory PositionStore.
type fakeStore struct {
	mu        sync.Mutex
	positions []models.Position
	dayTrades int
	counter   int
}

func (f *fakeStore) InsertOpenPosition(ctx context.Context, p *models.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		f.counter++
		p.ID = fmt.Sprintf("pos-%d", f.counter)
	}
	f.positions = append(f.positions, *p)
	return nil
}

func (f *fakeStore) ClosePosition(ctx context.Context, id string, salePrice float64, saleOrderID string, saleDate time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.positions {
		if f.positions[i].ID == id && f.positions[i].IsOpen() {
			d := saleDate
			pr := salePrice
			oid := saleOrderID
			f.positions[i].SaleDate = &d
			f.positions[i].SalePrice = &pr
			f.positions[i].SaleOrderID = &oid
			return nil
		}
	}
	return fmt.Errorf("position not found: %s", id)
}

func (f *fakeStore) OpenPositions(ctx context.Context, filter store.PositionFilter) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Position
	for _, p := range f.positions {
		if p.IsOpen() && (filter.Symbol == "" || p.Symbol == filter.Symbol) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) OpenSymbols(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range f.positions {
		if p.IsOpen() && !seen[p.Symbol] {
			seen[p.Symbol] = true
			out = append(out, p.Symbol)
		}
	}
	return out, nil
}

func (f *fakeStore) CountOpenPositions(ctx context.Context, symbol string) (int, error) {
	open, _ := f.OpenPositions(ctx, store.PositionFilter{Symbol: symbol})
	return len(open), nil
}

func (f *fakeStore) CountDayTrades(ctx context.Context, windowStart time.Time) (int, error) {
	return f.dayTrades, nil
}

func (f *fakeStore) Close() error { return nil }

func testConfig(symbols ...string) *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Symbols:     symbols,
			BuyEnabled:  true,
			SellEnabled: true,
		},
		Valuation: config.ValuationConfig{
			LimitBuffer:        0.001,
			SpreadLimit:        0.01,
			PriceVarianceLimit: 0.01,
			RSIPeriod:          1,
			BarHistoryDays:     5,
		},
		Sizing: config.SizingConfig{EnduranceDays: 5},
		Sell: config.SellConfig{
			RSILower:              30,
			RSIUpper:              70,
			SellSideMarginMinimum: 0.05,
			MarginInterestRate:    0.06,
			DayTradeLimit:         3,
		},
		Orders: config.OrdersConfig{
			Enabled:            true,
			WaitForLiveData:    time.Millisecond,
			FillPollIterations: 2,
			FillPollInterval:   time.Millisecond,
		},
	}
}

func downDayBroker() *fakeBroker {
	base := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	return &fakeBroker{
		marketOpen: true,
		account:    models.AccountState{Cash: 10000, Equity: 10000, BuyingPower: 10000},
		bars: map[string][]models.Bar{
			"AAPL": {
				{Date: base, Open: 100, Close: 100},
				{Date: base.AddDate(0, 0, 1), Open: 99, Close: 99},
			},
		},
		quotes:    map[string]models.Quote{"AAPL": {Symbol: "AAPL", Ask: 99.1, Bid: 99.0}},
		trades:    map[string]models.Trade{"AAPL": {Symbol: "AAPL", Price: 99}},
		fill:      true,
		fillPrice: 99.15,
	}
}

func newTestEngine(cfg *config.Config, b broker.Broker, st store.PositionStore, secondaryPrice float64) *Engine {
	sec := secondary.StaticSource{"AAPL": secondaryPrice}
	return NewEngine(cfg, zerolog.Nop(), b, nil, nil, sec, st)
}

func TestEngineRun_BuyPhaseRecordsFilledOrder(t *testing.T) {
	b := downDayBroker()
	st := &fakeStore{}
	engine := newTestEngine(testConfig("AAPL"), b, st, 99)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(b.submitted) != 1 {
		t.Fatalf("expected 1 submitted order, got %d", len(b.submitted))
	}
	req := b.submitted[0]
	if req.Side != models.OrderSideBuy || req.Symbol != "AAPL" {
		t.Errorf("unexpected order: %+v", req)
	}
	// (10000/5) / 99.2 = 20 shares
	if req.Quantity != 20 {
		t.Errorf("quantity = %d, want 20", req.Quantity)
	}
	if req.LimitPrice != 99.2 {
		t.Errorf("limit price = %v, want 99.2", req.LimitPrice)
	}

	open, _ := st.OpenPositions(context.Background(), store.PositionFilter{})
	if len(open) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(open))
	}
	if open[0].PurchasePrice != 99.15 {
		t.Errorf("purchase price = %v, want filled average 99.15", open[0].PurchasePrice)
	}
}

func TestEngineRun_MarketClosedDoesNothing(t *testing.T) {
	b := downDayBroker()
	b.marketOpen = false
	st := &fakeStore{}
	engine := newTestEngine(testConfig("AAPL"), b, st, 99)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(b.submitted) != 0 {
		t.Errorf("expected no orders on a closed market, got %d", len(b.submitted))
	}
}

func TestEngineRun_OrdersDisabledOnlyDecides(t *testing.T) {
	b := downDayBroker()
	st := &fakeStore{}
	cfg := testConfig("AAPL")
	cfg.Orders.Enabled = false
	engine := newTestEngine(cfg, b, st, 99)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(b.submitted) != 0 {
		t.Errorf("expected no submissions with orders disabled, got %d", len(b.submitted))
	}
}

func TestEngineRun_UnfilledBuyIsCancelled(t *testing.T) {
	b := downDayBroker()
	b.fill = false
	st := &fakeStore{}
	engine := newTestEngine(testConfig("AAPL"), b, st, 99)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(b.submitted) != 1 {
		t.Fatalf("expected 1 submitted order, got %d", len(b.submitted))
	}
	if len(b.cancelled) != 1 {
		t.Fatalf("expected the unfilled order to be cancelled, got %v", b.cancelled)
	}
	open, _ := st.OpenPositions(context.Background(), store.PositionFilter{})
	if len(open) != 0 {
		t.Errorf("no position row for an unfilled order, got %d", len(open))
	}
}

func TestEngineRun_SellPhaseClosesEligiblePosition(t *testing.T) {
	base := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	b := &fakeBroker{
		marketOpen: true,
		account:    models.AccountState{Cash: 5000, Equity: 15000},
		bars: map[string][]models.Bar{
			"AAPL": {
				{Date: base, Open: 100, Close: 100},
				{Date: base.AddDate(0, 0, 1), Open: 105, Close: 106},
			},
		},
		quotes:    map[string]models.Quote{"AAPL": {Symbol: "AAPL", Ask: 106.1, Bid: 106.0}},
		trades:    map[string]models.Trade{"AAPL": {Symbol: "AAPL", Price: 106}},
		fill:      true,
		fillPrice: 105.9,
	}
	st := &fakeStore{}
	st.InsertOpenPosition(context.Background(), &models.Position{
		Symbol:          "AAPL",
		Quantity:        10,
		PurchaseDate:    utils.SessionDate(time.Now().AddDate(0, 0, -10)),
		PurchasePrice:   100,
		PurchaseOrderID: "order-0",
	})

	cfg := testConfig("AAPL")
	cfg.Trading.BuyEnabled = false
	engine := newTestEngine(cfg, b, st, 106)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(b.submitted) != 1 {
		t.Fatalf("expected 1 sell order, got %d", len(b.submitted))
	}
	req := b.submitted[0]
	if req.Side != models.OrderSideSell || req.Quantity != 10 {
		t.Errorf("unexpected sell order: %+v", req)
	}
	// 106.0 * 0.999 rounded
	if req.LimitPrice != 105.89 {
		t.Errorf("limit price = %v, want 105.89", req.LimitPrice)
	}

	open, _ := st.OpenPositions(context.Background(), store.PositionFilter{})
	if len(open) != 0 {
		t.Fatalf("expected the position to be closed, got %d open", len(open))
	}
	closed := st.positions[0]
	if closed.SalePrice == nil || *closed.SalePrice != 105.9 {
		t.Errorf("sale price not recorded from the fill: %+v", closed)
	}
}

func TestEngineRun_SellSkipsIneligiblePositions(t *testing.T) {
	// Momentum down and RSI at 0: neither the standard nor the same-day
	// scenario applies to an aged position with positive cash.
	b := downDayBroker()
	st := &fakeStore{}
	st.InsertOpenPosition(context.Background(), &models.Position{
		Symbol:          "AAPL",
		Quantity:        10,
		PurchaseDate:    utils.SessionDate(time.Now().AddDate(0, 0, -10)),
		PurchasePrice:   100,
		PurchaseOrderID: "order-0",
	})

	cfg := testConfig("AAPL")
	cfg.Trading.BuyEnabled = false
	engine := newTestEngine(cfg, b, st, 99)

	if err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(b.submitted) != 0 {
		t.Errorf("expected no sell orders, got %d", len(b.submitted))
	}
}
