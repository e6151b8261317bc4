// Package valuation reconciles quote, trade, bar and secondary-source prices
// for a symbol into one trusted asset snapshot.
package valuation

import (
	"math"

	"github.com/shopspring/decimal"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/indicators"
	"alpaca-trader/internal/models"
)

// Params holds the tolerances and indicator settings for price synthesis.
type Params struct {
	LimitBuffer        float64
	SpreadLimit        float64
	PriceVarianceLimit float64
	RSIPeriod          int
	RSIMode            indicators.Mode
	// AtOpen selects the previous open instead of the previous close as the
	// reference for the up/down percentage.
	AtOpen bool
}

// Inputs are the explicit per-symbol inputs to one synthesis. Live quote and
// trade come from the streaming cache and may be absent; the snapshot fields
// are the on-demand fallbacks. SecondaryOK is false when the independent
// source had no price for the symbol.
type Inputs struct {
	Symbol         string
	Bars           []models.Bar
	LiveQuote      *models.Quote
	LiveTrade      *models.Trade
	SnapshotQuote  models.Quote
	SnapshotTrade  models.Trade
	SecondaryPrice float64
	SecondaryOK    bool
}

// Synthesize computes an immutable AssetSnapshot from explicit inputs. It
// never reads shared state and never divides by zero: a zero bid or zero
// secondary price fails the corresponding check instead.
func Synthesize(in Inputs, p Params) (*models.AssetSnapshot, error) {
	if len(in.Bars) < 2 {
		return nil, errors.NewDataError("bars", in.Symbol, errors.ErrInsufficientBars)
	}

	// The last bar is the in-progress session; the one before it is the last
	// completed session.
	previous := in.Bars[len(in.Bars)-2]

	tradePrice := in.SnapshotTrade.Price
	if in.LiveTrade != nil {
		tradePrice = in.LiveTrade.Price
	}

	secondaryPrice := tradePrice
	if in.SecondaryOK {
		secondaryPrice = in.SecondaryPrice
	}

	priceCheckPassed := secondaryPrice != 0 &&
		math.Abs(tradePrice/secondaryPrice-1) <= p.PriceVarianceLimit

	currentPrice := secondaryPrice
	if priceCheckPassed {
		currentPrice = tradePrice
	}
	currentPrice = Round2(currentPrice)

	ask := in.SnapshotQuote.Ask
	bid := in.SnapshotQuote.Bid
	if in.LiveQuote != nil {
		ask = in.LiveQuote.Ask
		bid = in.LiveQuote.Bid
	}

	spreadCheckPassed := bid != 0 && math.Abs(ask/bid-1) <= p.SpreadLimit
	if !spreadCheckPassed {
		ask = currentPrice * (1 + p.SpreadLimit)
		bid = currentPrice * (1 - p.SpreadLimit)
	}

	previousReference := previous.Close
	if p.AtOpen {
		previousReference = previous.Open
	}
	if previousReference == 0 {
		return nil, errors.NewDataError("bars", in.Symbol, errors.ErrZeroPreviousPrice)
	}

	rsi, err := indicators.RSI(in.Bars, p.RSIPeriod, p.RSIMode, currentPrice)
	if err != nil {
		return nil, errors.NewDataError("rsi", in.Symbol, err)
	}

	return &models.AssetSnapshot{
		Symbol:            in.Symbol,
		ReferencePrice:    currentPrice,
		PreviousOpen:      previous.Open,
		PreviousClose:     previous.Close,
		LimitPriceBuy:     Round2(ask * (1 + p.LimitBuffer)),
		LimitPriceSell:    Round2(bid * (1 - p.LimitBuffer)),
		RSI:               rsi,
		PercentUpDown:     (currentPrice - previousReference) / previousReference,
		SpreadCheckPassed: spreadCheckPassed,
		PriceCheckPassed:  priceCheckPassed,
	}, nil
}

// Round2 rounds a price to 2 decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
