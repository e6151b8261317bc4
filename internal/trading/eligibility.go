package trading

import (
	"time"

	"alpaca-trader/internal/models"
	"alpaca-trader/pkg/utils"
)

// SellScenario identifies which rule cleared a position for sale.
type SellScenario string

const (
	ScenarioNone         SellScenario = ""
	ScenarioStandard     SellScenario = "standard"
	ScenarioSameDay      SellScenario = "same_day"
	ScenarioNegativeCash SellScenario = "negative_cash"
)

// EvaluatorParams holds the sell-side thresholds.
type EvaluatorParams struct {
	SellSideMarginMinimum float64
	MarginInterestRate    float64 // annual, day-counted over 360
	RSIUpper              float64
	DayTradeLimit         int
}

// SellDecision is the evaluation result for one open position.
type SellDecision struct {
	Eligible   bool
	Scenario   SellScenario
	LimitPrice float64
	Quantity   int
}

// Evaluator decides whether an open position should be closed. The scenarios
// form a prioritized rule list: standard, same-day, negative-cash.
type Evaluator struct {
	Params EvaluatorParams
}

// Evaluate applies the sell rules to one open position. dayTradeCount is the
// number of same-session round trips within the trailing five days; the
// same-day override is denied once it exceeds the configured limit.
func (e *Evaluator) Evaluate(pos *models.Position, snap *models.AssetSnapshot, account *models.AccountState, dayTradeCount int, now time.Time) SellDecision {
	none := SellDecision{Scenario: ScenarioNone}
	if pos == nil || snap == nil || account == nil || !pos.IsOpen() {
		return none
	}
	if pos.PurchasePrice <= 0 {
		return none
	}

	sameDay := utils.SameSession(pos.PurchaseDate, now)
	dayTradeAllowed := dayTradeCount <= e.Params.DayTradeLimit
	if sameDay && !dayTradeAllowed {
		return none
	}

	// Margin interest accrued while cash is negative must be earned back
	// before a sale clears the margin minimum.
	coverage := 0.0
	if account.Cash < 0 {
		coverage = float64(utils.DaysBetween(pos.PurchaseDate, now)) * (e.Params.MarginInterestRate / 360)
	}

	profitOK := (snap.LimitPriceSell/pos.PurchasePrice - 1) >= e.Params.SellSideMarginMinimum+coverage
	momentumOK := snap.PercentUpDown > 0
	rsiOK := snap.RSI >= e.Params.RSIUpper

	decision := SellDecision{
		LimitPrice: snap.LimitPriceSell,
		Quantity:   pos.Quantity,
	}

	switch {
	case !sameDay && momentumOK && profitOK && rsiOK:
		decision.Eligible = true
		decision.Scenario = ScenarioStandard
	case sameDay && profitOK:
		decision.Eligible = true
		decision.Scenario = ScenarioSameDay
	case account.Cash <= 0 && !sameDay && profitOK:
		decision.Eligible = true
		decision.Scenario = ScenarioNegativeCash
	default:
		return none
	}
	return decision
}
