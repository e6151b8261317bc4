// Package store provides position persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"alpaca-trader/internal/models"
)

// PositionStore defines the relational store holding position records.
// Records are created on a filled buy, closed on a filled sell, and never
// deleted.
type PositionStore interface {
	InsertOpenPosition(ctx context.Context, p *models.Position) error
	ClosePosition(ctx context.Context, id string, salePrice float64, saleOrderID string, saleDate time.Time) error
	OpenPositions(ctx context.Context, filter PositionFilter) ([]models.Position, error)
	OpenSymbols(ctx context.Context) ([]string, error)
	CountOpenPositions(ctx context.Context, symbol string) (int, error)
	CountDayTrades(ctx context.Context, windowStart time.Time) (int, error)
	Close() error
}

// PositionFilter restricts a position query.
type PositionFilter struct {
	Symbol string
}
