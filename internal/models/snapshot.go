package models

// AssetSnapshot is the per-symbol, per-run valuation result. It is built
// fresh on every evaluation by the price synthesizer and never mutated
// afterwards. It is not persisted.
type AssetSnapshot struct {
	Symbol           string
	ReferencePrice   float64
	PreviousOpen     float64
	PreviousClose    float64
	LimitPriceBuy    float64
	LimitPriceSell   float64
	RSI              float64
	PercentUpDown    float64
	SpreadCheckPassed bool
	PriceCheckPassed  bool
}
