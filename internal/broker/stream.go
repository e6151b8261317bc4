package broker

import (
	"context"

	mdstream "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
	"alpaca-trader/internal/stream"
)

// AlpacaStreamer implements Streamer on the Alpaca stocks websocket, writing
// every received quote and trade into the live cache.
type AlpacaStreamer struct {
	client *mdstream.StocksClient
	cache  *stream.Cache
}

// NewAlpacaStreamer creates a streamer feeding the given cache.
func NewAlpacaStreamer(cfg AlpacaConfig, cache *stream.Cache) *AlpacaStreamer {
	return &AlpacaStreamer{
		client: mdstream.NewStocksClient(
			"iex",
			mdstream.WithCredentials(cfg.APIKey, cfg.APISecret),
		),
		cache: cache,
	}
}

// Connect establishes the websocket connection. The client maintains it in
// the background until Close.
func (s *AlpacaStreamer) Connect(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return errors.NewBrokerError("stream-connect", "", err)
	}
	return nil
}

// Subscribe starts streaming quotes and trades for the symbols into the cache.
func (s *AlpacaStreamer) Subscribe(ctx context.Context, symbols ...string) error {
	err := s.client.SubscribeToQuotes(func(q mdstream.Quote) {
		s.cache.SetQuote(models.Quote{Symbol: q.Symbol, Ask: q.AskPrice, Bid: q.BidPrice})
	}, symbols...)
	if err != nil {
		return errors.NewBrokerError("subscribe-quotes", "", err)
	}

	err = s.client.SubscribeToTrades(func(t mdstream.Trade) {
		s.cache.SetTrade(models.Trade{Symbol: t.Symbol, Price: t.Price})
	}, symbols...)
	if err != nil {
		return errors.NewBrokerError("subscribe-trades", "", err)
	}
	return nil
}

// Unsubscribe stops streaming for the symbols and drops their cached data.
func (s *AlpacaStreamer) Unsubscribe(ctx context.Context, symbols ...string) error {
	if err := s.client.UnsubscribeFromQuotes(symbols...); err != nil {
		return errors.NewBrokerError("unsubscribe-quotes", "", err)
	}
	if err := s.client.UnsubscribeFromTrades(symbols...); err != nil {
		return errors.NewBrokerError("unsubscribe-trades", "", err)
	}
	for _, symbol := range symbols {
		s.cache.Forget(symbol)
	}
	return nil
}

// Close tears down the websocket connection.
func (s *AlpacaStreamer) Close() error {
	// The v3 stream client shuts down when the Connect context is cancelled;
	// nothing else to release here.
	return nil
}
