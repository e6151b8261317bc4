package broker

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
)

// AlpacaConfig holds configuration for the Alpaca broker.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// AlpacaBroker implements Broker on the Alpaca trading and market-data APIs.
type AlpacaBroker struct {
	trading *alpaca.Client
	data    *marketdata.Client
}

// NewAlpacaBroker creates a new Alpaca-backed broker.
func NewAlpacaBroker(cfg AlpacaConfig) *AlpacaBroker {
	return &AlpacaBroker{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		}),
	}
}

// IsMarketOpen reports whether the market clock is currently open.
func (b *AlpacaBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	clock, err := b.trading.GetClock()
	if err != nil {
		return false, errors.NewBrokerError("clock", "", err)
	}
	return clock.IsOpen, nil
}

// GetAccountState fetches a point-in-time capital snapshot.
func (b *AlpacaBroker) GetAccountState(ctx context.Context) (*models.AccountState, error) {
	acct, err := b.trading.GetAccount()
	if err != nil {
		return nil, errors.NewBrokerError("account", "", err)
	}
	return &models.AccountState{
		Cash:            acct.Cash.InexactFloat64(),
		Equity:          acct.Equity.InexactFloat64(),
		LongMarketValue: acct.LongMarketValue.InexactFloat64(),
		BuyingPower:     acct.BuyingPower.InexactFloat64(),
	}, nil
}

// GetHistoricalBars fetches daily bars for a symbol, oldest first.
func (b *AlpacaBroker) GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	bars, err := b.data.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, errors.NewDataError("bars", symbol, err)
	}

	out := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		out = append(out, models.Bar{
			Date:  bar.Timestamp,
			Open:  bar.Open,
			Close: bar.Close,
		})
	}
	return out, nil
}

// GetLatestQuote fetches the latest two-sided quote on demand.
func (b *AlpacaBroker) GetLatestQuote(ctx context.Context, symbol string) (models.Quote, error) {
	q, err := b.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return models.Quote{}, errors.NewDataError("quote", symbol, err)
	}
	return models.Quote{Symbol: symbol, Ask: q.AskPrice, Bid: q.BidPrice}, nil
}

// GetLatestTrade fetches the latest executed trade price on demand.
func (b *AlpacaBroker) GetLatestTrade(ctx context.Context, symbol string) (models.Trade, error) {
	t, err := b.data.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return models.Trade{}, errors.NewDataError("trade", symbol, err)
	}
	return models.Trade{Symbol: symbol, Price: t.Price}, nil
}

// SubmitOrder submits a day limit order and returns the broker order id.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	qty := decimal.NewFromInt(int64(req.Quantity))
	limit := decimal.NewFromFloat(req.LimitPrice)

	side := alpaca.Buy
	if req.Side == models.OrderSideSell {
		side = alpaca.Sell
	}

	order, err := b.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Limit,
		LimitPrice:  &limit,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return "", errors.NewOrderError("", req.Symbol, "submit", err)
	}
	return order.ID, nil
}

// GetOrderState polls the settlement state of an order.
func (b *AlpacaBroker) GetOrderState(ctx context.Context, orderID string) (OrderState, error) {
	order, err := b.trading.GetOrder(orderID)
	if err != nil {
		return OrderState{}, errors.NewOrderError(orderID, "", "poll", err)
	}

	state := OrderState{Status: models.OrderStatusPending}
	switch order.Status {
	case "filled":
		state.Status = models.OrderStatusFilled
	case "canceled", "expired", "rejected":
		state.Status = models.OrderStatusCancelled
	}
	if order.FilledAvgPrice != nil {
		state.FilledAvgPrice = order.FilledAvgPrice.InexactFloat64()
	}
	return state, nil
}

// CancelOrder cancels an unfilled order.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	if err := b.trading.CancelOrder(orderID); err != nil {
		return errors.NewOrderError(orderID, "", "cancel", err)
	}
	return nil
}
