package secondary

import (
	"context"
	"fmt"

	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"

	"alpaca-trader/internal/resilience"
	"alpaca-trader/pkg/utils"
)

// YahooSource resolves the secondary price from Yahoo Finance quotes. Yahoo is
// the least reliable dependency in the run, so fetches go through a circuit
// breaker: a flapping source is cut off instead of delaying every symbol.
type YahooSource struct {
	logger  zerolog.Logger
	retry   utils.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewYahooSource creates a Yahoo-backed secondary price source.
func NewYahooSource(logger zerolog.Logger) *YahooSource {
	return &YahooSource{
		logger:  logger,
		retry:   utils.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("yahoo", resilience.DefaultCircuitBreakerConfig()),
	}
}

// Price fetches the regular market price for a symbol. Unavailability is
// logged and reported as ok=false, never as a failure: the valuation layer
// substitutes the primary trade price.
func (y *YahooSource) Price(ctx context.Context, symbol string) (float64, bool) {
	q, err := resilience.ExecuteWithResult(y.breaker, ctx, func() (float64, error) {
		return utils.RetryWithResult(ctx, y.retry, func() (float64, error) {
			res, err := quote.Get(symbol)
			if err != nil {
				return 0, err
			}
			if res == nil {
				return 0, fmt.Errorf("no quote returned for %s", symbol)
			}
			return res.RegularMarketPrice, nil
		})
	})
	if err != nil {
		y.logger.Warn().Err(err).Str("symbol", symbol).
			Str("breaker_state", string(y.breaker.State())).
			Msg("Secondary price unavailable")
		return 0, false
	}
	if q == 0 {
		return 0, false
	}
	return q, true
}
