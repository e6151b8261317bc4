package models

import "time"

// Position is a persisted lot created by a filled buy order. The three sale
// fields are either all unset (open) or all set (closed); there is no other
// valid state. Rows are closed exactly once, by exactly one sell fill, and
// never deleted.
type Position struct {
	ID              string
	Symbol          string
	Quantity        int
	PurchaseDate    time.Time
	PurchasePrice   float64
	PurchaseOrderID string
	SaleDate        *time.Time
	SalePrice       *float64
	SaleOrderID     *string
}

// IsOpen reports whether the position has not been sold yet.
func (p *Position) IsOpen() bool {
	return p.SaleOrderID == nil && p.SaleDate == nil && p.SalePrice == nil
}

// DaysHeld returns the number of whole days between the purchase date and now.
func (p *Position) DaysHeld(now time.Time) int {
	d := int(now.Sub(p.PurchaseDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
