// Package trading provides order sizing, sell eligibility, and the run
// orchestrator.
package trading

import (
	"math"

	"alpaca-trader/internal/models"
)

// Sizer turns available capital into a target share quantity. Exactly one of
// the two policies applies per configuration: cash amortized over the
// remaining endurance days, or margin sizing against active capital.
type Sizer struct {
	EnduranceDays int
	AllowMargin   bool
	// MarginPct is the active margin percentage on top of equity. Only read
	// when AllowMargin is set.
	MarginPct float64
}

// Quantity returns the number of shares to buy at limitPrice. The result is
// always a non-negative integer; zero means "do not buy". openPositions is
// the count of currently open positions for the symbol.
func (s *Sizer) Quantity(limitPrice float64, account *models.AccountState, openPositions int) int {
	if limitPrice <= 0 || account == nil {
		return 0
	}
	if s.AllowMargin {
		return s.marginQuantity(limitPrice, account)
	}
	return s.cashQuantity(limitPrice, account, openPositions)
}

func (s *Sizer) cashQuantity(limitPrice float64, account *models.AccountState, openPositions int) int {
	availableCapital := account.Cash

	enduranceDaysRemaining := s.EnduranceDays - openPositions

	var quantity int
	if enduranceDaysRemaining > 0 {
		quantity = int(math.Floor((availableCapital / float64(enduranceDaysRemaining)) / limitPrice))
	} else {
		quantity = int(math.Floor(availableCapital / limitPrice))
	}
	if quantity < 0 {
		return 0
	}
	return quantity
}

func (s *Sizer) marginQuantity(limitPrice float64, account *models.AccountState) int {
	activeCapital := account.Equity * (1 + s.MarginPct)
	theoreticalOrderCost := activeCapital / float64(s.EnduranceDays)
	activeBuyingPower := activeCapital - account.LongMarketValue

	var quantity int
	if theoreticalOrderCost > 0 && activeBuyingPower/theoreticalOrderCost > 0 {
		quantity = int(math.Floor(theoreticalOrderCost / limitPrice))
	} else {
		quantity = int(math.Floor(activeBuyingPower / limitPrice))
		if quantity < 0 {
			quantity = 0
		}
	}

	// Without a configured margin buffer, margin sizing must still be cash
	// covered.
	if s.MarginPct <= 0 && account.Cash < float64(quantity)*limitPrice {
		return 0
	}
	if quantity < 0 {
		return 0
	}
	return quantity
}
