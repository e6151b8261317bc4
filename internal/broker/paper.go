package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alpaca-trader/internal/models"
)

// PaperBroker implements Broker for paper trading. Market data is delegated
// to a real broker; orders fill immediately at their limit price against a
// simulated account.
type PaperBroker struct {
	dataBroker Broker

	mu           sync.RWMutex
	account      models.AccountState
	orders       map[string]OrderState
	orderCounter int
}

// PaperBrokerConfig holds configuration for the paper broker.
type PaperBrokerConfig struct {
	DataBroker  Broker
	InitialCash float64
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig) *PaperBroker {
	cash := cfg.InitialCash
	if cash == 0 {
		cash = 100000
	}
	return &PaperBroker{
		dataBroker: cfg.DataBroker,
		account: models.AccountState{
			Cash:        cash,
			Equity:      cash,
			BuyingPower: cash,
		},
		orders: make(map[string]OrderState),
	}
}

// IsMarketOpen delegates to the data broker.
func (p *PaperBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	return p.dataBroker.IsMarketOpen(ctx)
}

// GetAccountState returns the simulated account snapshot.
func (p *PaperBroker) GetAccountState(ctx context.Context) (*models.AccountState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	acct := p.account
	return &acct, nil
}

// GetHistoricalBars delegates to the data broker.
func (p *PaperBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	return p.dataBroker.GetHistoricalBars(ctx, symbol, start, end)
}

// GetLatestQuote delegates to the data broker.
func (p *PaperBroker) GetLatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	return p.dataBroker.GetLatestQuote(ctx, symbol)
}

// GetLatestTrade delegates to the data broker.
func (p *PaperBroker) GetLatestTrade(ctx context.Context, symbol string) (models.Trade, error) {
	return p.dataBroker.GetLatestTrade(ctx, symbol)
}

// SubmitOrder fills the order immediately at its limit price and adjusts the
// simulated account.
func (p *PaperBroker) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.orderCounter++
	orderID := fmt.Sprintf("paper-%d", p.orderCounter)

	notional := float64(req.Quantity) * req.LimitPrice
	if req.Side == models.OrderSideBuy {
		p.account.Cash -= notional
		p.account.LongMarketValue += notional
	} else {
		p.account.Cash += notional
		p.account.LongMarketValue -= notional
	}
	p.account.Equity = p.account.Cash + p.account.LongMarketValue
	p.account.BuyingPower = p.account.Cash

	p.orders[orderID] = OrderState{
		Status:         models.OrderStatusFilled,
		FilledAvgPrice: req.LimitPrice,
	}
	return orderID, nil
}

// GetOrderState returns the simulated settlement state.
func (p *PaperBroker) GetOrderState(ctx context.Context, orderID string) (OrderState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state, ok := p.orders[orderID]
	if !ok {
		return OrderState{}, fmt.Errorf("unknown paper order: %s", orderID)
	}
	return state, nil
}

// CancelOrder marks a pending simulated order cancelled.
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown paper order: %s", orderID)
	}
	if state.Status == models.OrderStatusPending {
		state.Status = models.OrderStatusCancelled
		p.orders[orderID] = state
	}
	return nil
}
