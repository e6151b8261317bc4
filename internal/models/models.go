// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of a submitted order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Bar represents one daily trading session. Bar sequences are ordered oldest
// first; the last bar is the in-progress session. Never mutated after fetch.
type Bar struct {
	Date  time.Time
	Open  float64
	Close float64
}

// Quote is the latest two-sided market price for a symbol.
type Quote struct {
	Symbol string
	Ask    float64
	Bid    float64
}

// Trade is the latest executed trade price for a symbol.
type Trade struct {
	Symbol string
	Price  float64
}

// AccountState is a point-in-time capital snapshot. It is fetched once per
// phase and reused for every sizing decision within that phase, so figures
// may be stale relative to fills of earlier orders in the same batch.
type AccountState struct {
	Cash            float64
	Equity          float64
	LongMarketValue float64
	BuyingPower     float64
}
