// Package broker provides brokerage integration interfaces and implementations.
package broker

import (
	"context"
	"time"

	"alpaca-trader/internal/models"
)

// Broker defines the brokerage and market-data operations the engine consumes.
type Broker interface {
	// Market state
	IsMarketOpen(ctx context.Context) (bool, error)
	GetAccountState(ctx context.Context) (*models.AccountState, error)

	// Market data
	GetHistoricalBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
	GetLatestQuote(ctx context.Context, symbol string) (models.Quote, error)
	GetLatestTrade(ctx context.Context, symbol string) (models.Trade, error)

	// Orders
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	GetOrderState(ctx context.Context, orderID string) (OrderState, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Streamer defines the live market-data subscription the engine consumes. It
// feeds the stream cache in the background.
type Streamer interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols ...string) error
	Unsubscribe(ctx context.Context, symbols ...string) error
	Close() error
}

// OrderRequest describes a limit order to submit.
type OrderRequest struct {
	Symbol     string
	Quantity   int
	LimitPrice float64
	Side       models.OrderSide
}

// OrderState is the polled settlement state of a submitted order.
type OrderState struct {
	Status         models.OrderStatus
	FilledAvgPrice float64
}
