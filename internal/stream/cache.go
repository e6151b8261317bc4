// Package stream provides the live market-data cache fed by the brokerage
// streaming channel.
package stream

import (
	"context"
	"sync"
	"time"

	"alpaca-trader/internal/models"
)

// Cache holds the most recent streamed Quote and Trade per symbol. It is safe
// for concurrent use: the stream writes while per-symbol evaluations read.
type Cache struct {
	mu      sync.RWMutex
	quotes  map[string]models.Quote
	trades  map[string]models.Trade
	arrived map[string]chan struct{}
}

// NewCache creates an empty live-data cache.
func NewCache() *Cache {
	return &Cache{
		quotes:  make(map[string]models.Quote),
		trades:  make(map[string]models.Trade),
		arrived: make(map[string]chan struct{}),
	}
}

// SetQuote records the latest streamed quote for a symbol.
func (c *Cache) SetQuote(q models.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.Symbol] = q
	c.signalLocked(q.Symbol)
}

// SetTrade records the latest streamed trade for a symbol.
func (c *Cache) SetTrade(t models.Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades[t.Symbol] = t
	c.signalLocked(t.Symbol)
}

func (c *Cache) signalLocked(symbol string) {
	if ch, ok := c.arrived[symbol]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// Quote returns the latest streamed quote for a symbol, if any arrived.
func (c *Cache) Quote(symbol string) (models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	return q, ok
}

// Trade returns the latest streamed trade for a symbol, if any arrived.
func (c *Cache) Trade(symbol string) (models.Trade, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.trades[symbol]
	return t, ok
}

// Forget drops cached data for a symbol after unsubscribing.
func (c *Cache) Forget(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quotes, symbol)
	delete(c.trades, symbol)
	delete(c.arrived, symbol)
}

// WaitForSymbol blocks until the first quote or trade for symbol arrives, the
// timeout elapses, or ctx is cancelled. It returns true when live data is
// present. A false return means the caller should fall back to an on-demand
// snapshot; it is not an error.
func (c *Cache) WaitForSymbol(ctx context.Context, symbol string, timeout time.Duration) bool {
	c.mu.Lock()
	if _, ok := c.quotes[symbol]; ok {
		c.mu.Unlock()
		return true
	}
	if _, ok := c.trades[symbol]; ok {
		c.mu.Unlock()
		return true
	}
	ch, ok := c.arrived[symbol]
	if !ok {
		ch = make(chan struct{})
		c.arrived[symbol] = ch
	}
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
