package trading

import (
	"testing"
	"time"

	"alpaca-trader/internal/models"
	"alpaca-trader/pkg/utils"
)

func testEvaluator() *Evaluator {
	return &Evaluator{Params: EvaluatorParams{
		SellSideMarginMinimum: 0.05,
		MarginInterestRate:    0.06,
		RSIUpper:              70,
		DayTradeLimit:         3,
	}}
}

func openPosition(symbol string, purchasePrice float64, purchased time.Time) *models.Position {
	return &models.Position{
		ID:              "pos-1",
		Symbol:          symbol,
		Quantity:        10,
		PurchaseDate:    utils.SessionDate(purchased),
		PurchasePrice:   purchasePrice,
		PurchaseOrderID: "order-1",
	}
}

func sellSnapshot(limitSell, percentUpDown, rsi float64) *models.AssetSnapshot {
	return &models.AssetSnapshot{
		Symbol:         "AAPL",
		LimitPriceSell: limitSell,
		PercentUpDown:  percentUpDown,
		RSI:            rsi,
	}
}

func TestEvaluate_StandardScenario(t *testing.T) {
	// Purchase 100, sell limit 106, minimum 0.05, cash >= 0, momentum up,
	// RSI above threshold: the standard scenario fires.
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now.AddDate(0, 0, -10))
	snap := sellSnapshot(106, 0.02, 75)
	account := &models.AccountState{Cash: 5000}

	d := testEvaluator().Evaluate(pos, snap, account, 0, now)
	if !d.Eligible || d.Scenario != ScenarioStandard {
		t.Fatalf("expected standard scenario, got %+v", d)
	}
	if d.LimitPrice != 106 || d.Quantity != 10 {
		t.Errorf("unexpected order parameters: %+v", d)
	}
}

func TestEvaluate_ProfitBelowMinimum(t *testing.T) {
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now.AddDate(0, 0, -10))
	snap := sellSnapshot(104, 0.02, 75) // 4% < 5% minimum

	d := testEvaluator().Evaluate(pos, snap, &models.AccountState{Cash: 5000}, 0, now)
	if d.Eligible {
		t.Fatalf("expected not eligible, got %+v", d)
	}
}

func TestEvaluate_StandardNeedsMomentumAndRSI(t *testing.T) {
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now.AddDate(0, 0, -10))
	account := &models.AccountState{Cash: 5000}
	e := testEvaluator()

	if d := e.Evaluate(pos, sellSnapshot(106, -0.01, 75), account, 0, now); d.Eligible {
		t.Errorf("momentum down should block the standard scenario: %+v", d)
	}
	if d := e.Evaluate(pos, sellSnapshot(106, 0.02, 65), account, 0, now); d.Eligible {
		t.Errorf("RSI below threshold should block the standard scenario: %+v", d)
	}
}

func TestEvaluate_SameDayScenario(t *testing.T) {
	// Bought today with sufficient profit: eligible on profit margin alone,
	// independent of momentum and RSI.
	now := time.Date(2024, 3, 8, 14, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now)
	snap := sellSnapshot(106, -0.01, 10)

	d := testEvaluator().Evaluate(pos, snap, &models.AccountState{Cash: 5000}, 0, now)
	if !d.Eligible || d.Scenario != ScenarioSameDay {
		t.Fatalf("expected same-day scenario, got %+v", d)
	}
}

func TestEvaluate_DayTradeCapBlocksSameDay(t *testing.T) {
	now := time.Date(2024, 3, 8, 14, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now)
	snap := sellSnapshot(106, 0.02, 75)

	d := testEvaluator().Evaluate(pos, snap, &models.AccountState{Cash: 5000}, 4, now)
	if d.Eligible {
		t.Fatalf("day-trade cap exceeded, expected not eligible: %+v", d)
	}
}

func TestEvaluate_NegativeCashScenario(t *testing.T) {
	// Cash below zero forces deleveraging on profit margin alone, but margin
	// interest accrued over the holding period raises the bar.
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now.AddDate(0, 0, -30))
	account := &models.AccountState{Cash: -2000}

	// Coverage: 30 days * 0.06/360 = 0.005, so 5.5% profit is required.
	d := testEvaluator().Evaluate(pos, sellSnapshot(106, -0.01, 10), account, 0, now)
	if !d.Eligible || d.Scenario != ScenarioNegativeCash {
		t.Fatalf("expected negative-cash scenario, got %+v", d)
	}

	d = testEvaluator().Evaluate(pos, sellSnapshot(105.4, -0.01, 10), account, 0, now)
	if d.Eligible {
		t.Fatalf("profit below minimum plus coverage, expected not eligible: %+v", d)
	}
}

func TestEvaluate_ClosedPositionIgnored(t *testing.T) {
	now := time.Date(2024, 3, 8, 10, 0, 0, 0, utils.MarketLocation)
	pos := openPosition("AAPL", 100, now.AddDate(0, 0, -10))
	saleDate := now.AddDate(0, 0, -1)
	salePrice := 110.0
	saleOrder := "order-2"
	pos.SaleDate = &saleDate
	pos.SalePrice = &salePrice
	pos.SaleOrderID = &saleOrder

	d := testEvaluator().Evaluate(pos, sellSnapshot(106, 0.02, 75), &models.AccountState{Cash: 5000}, 0, now)
	if d.Eligible {
		t.Fatalf("closed position must never be eligible: %+v", d)
	}
}
