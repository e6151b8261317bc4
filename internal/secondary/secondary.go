// Package secondary provides the independently sourced price used to
// sanity-check the primary trade price.
package secondary

import (
	"context"
)

// Source resolves an independent price for a symbol. The boolean is false
// when no price is available; callers degrade to the primary trade price
// instead of failing.
type Source interface {
	Price(ctx context.Context, symbol string) (float64, bool)
}

// StaticSource serves fixed prices. Used in tests and as an explicit
// "no secondary source configured" stand-in.
type StaticSource map[string]float64

// Price returns the fixed price for a symbol, if one was configured.
func (s StaticSource) Price(ctx context.Context, symbol string) (float64, bool) {
	p, ok := s[symbol]
	return p, ok
}
