package trading

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alpaca-trader/internal/broker"
	"alpaca-trader/internal/config"
	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/indicators"
	"alpaca-trader/internal/logging"
	"alpaca-trader/internal/models"
	"alpaca-trader/internal/performance"
	"alpaca-trader/internal/secondary"
	"alpaca-trader/internal/store"
	"alpaca-trader/internal/stream"
	"alpaca-trader/internal/valuation"
	"alpaca-trader/pkg/utils"
)

// dayTradeWindow is the trailing window for the pattern-day-trade guard.
const dayTradeWindow = 5 * 24 * time.Hour

// Engine runs one complete scheduled invocation: per-symbol valuation, the
// buy phase, then the sell phase. Clients and the live cache are owned by the
// caller and passed in; the engine holds no hidden globals. Concurrent runs
// are not supported and must be serialized by the external scheduler.
type Engine struct {
	cfg       *config.Config
	logger    zerolog.Logger
	broker    broker.Broker
	streamer  broker.Streamer // optional; nil disables live data
	cache     *stream.Cache
	secondary secondary.Source
	store     store.PositionStore
	sizer     *Sizer
	evaluator *Evaluator

	now func() time.Time
}

// NewEngine wires an engine from its collaborators. streamer may be nil.
func NewEngine(cfg *config.Config, logger zerolog.Logger, b broker.Broker, streamer broker.Streamer, cache *stream.Cache, sec secondary.Source, st store.PositionStore) *Engine {
	if cache == nil {
		cache = stream.NewCache()
	}
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		broker:    b,
		streamer:  streamer,
		cache:     cache,
		secondary: sec,
		store:     st,
		sizer: &Sizer{
			EnduranceDays: cfg.Sizing.EnduranceDays,
			AllowMargin:   cfg.Sizing.AllowMarginTrading,
			MarginPct:     cfg.Sizing.ActiveMarginPercentage,
		},
		evaluator: &Evaluator{Params: EvaluatorParams{
			SellSideMarginMinimum: cfg.Sell.SellSideMarginMinimum,
			MarginInterestRate:    cfg.Sell.MarginInterestRate,
			RSIUpper:              cfg.Sell.RSIUpper,
			DayTradeLimit:         cfg.Sell.DayTradeLimit,
		}},
		now: time.Now,
	}
}

// Run executes one invocation to completion. Completion is always logged,
// also on failure.
func (e *Engine) Run(ctx context.Context) (err error) {
	e.logger.Info().Msg("BEGIN")
	defer func() {
		e.logger.Info().Err(err).Msg("END")
	}()

	open, err := e.broker.IsMarketOpen(ctx)
	if err != nil {
		return err
	}
	if !open {
		e.logger.Info().Msg("Market closed, nothing to do")
		return nil
	}

	symbols := e.runSymbols(ctx)

	if e.streamer != nil {
		if serr := e.streamer.Subscribe(ctx, symbols...); serr != nil {
			// Live data is an optimization; on-demand snapshots cover it.
			e.logger.Warn().Err(serr).Msg("Live subscription failed, using snapshots")
		} else {
			defer func() {
				if uerr := e.streamer.Unsubscribe(context.Background(), symbols...); uerr != nil {
					e.logger.Warn().Err(uerr).Msg("Unsubscribe failed")
				}
			}()
		}
	}

	snapshots := e.evaluateSymbols(ctx, symbols)

	if e.cfg.Trading.BuyEnabled {
		e.buyPhase(ctx, snapshots)
	}
	if e.cfg.Trading.SellEnabled {
		e.sellPhase(ctx, snapshots)
	}
	return nil
}

// runSymbols is the union of configured symbols and symbols with open rows,
// so the sell phase always sees its positions.
func (e *Engine) runSymbols(ctx context.Context) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, s := range e.cfg.Trading.Symbols {
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	openSymbols, err := e.store.OpenSymbols(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Querying open symbols failed")
		return symbols
	}
	for _, s := range openSymbols {
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// evaluateSymbols synthesizes snapshots for all symbols concurrently through
// the worker pool. Each evaluation works on its own inputs only; a failed
// symbol is logged and skipped, the rest continue.
func (e *Engine) evaluateSymbols(ctx context.Context, symbols []string) map[string]*models.AssetSnapshot {
	var (
		mu        sync.Mutex
		snapshots = make(map[string]*models.AssetSnapshot, len(symbols))
	)

	pool := performance.NewWorkerPool(0)
	pool.Start()
	defer pool.Stop()

	for _, symbol := range symbols {
		symbol := symbol
		pool.Submit(func() {
			snap, err := e.evaluateSymbol(ctx, symbol)
			if err != nil {
				symbolLogger := logging.WithSymbol(e.logger, symbol)
				symbolLogger.Error().Err(err).Msg("Symbol evaluation failed")
				return
			}
			logging.LogSnapshot(e.logger, snap)
			mu.Lock()
			snapshots[symbol] = snap
			mu.Unlock()
		})
	}
	pool.Wait()
	return snapshots
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) (*models.AssetSnapshot, error) {
	now := e.now()
	start := now.AddDate(0, 0, -e.cfg.Valuation.BarHistoryDays)
	bars, err := e.broker.GetHistoricalBars(ctx, symbol, start, now)
	if err != nil {
		return nil, err
	}

	in := valuation.Inputs{
		Symbol: symbol,
		Bars:   bars,
	}

	if e.streamer != nil {
		e.cache.WaitForSymbol(ctx, symbol, e.cfg.Orders.WaitForLiveData)
	}
	if q, ok := e.cache.Quote(symbol); ok {
		quote := q
		in.LiveQuote = &quote
	} else {
		quote, qerr := e.broker.GetLatestQuote(ctx, symbol)
		if qerr != nil {
			return nil, qerr
		}
		in.SnapshotQuote = quote
	}
	if t, ok := e.cache.Trade(symbol); ok {
		trade := t
		in.LiveTrade = &trade
	} else {
		trade, terr := e.broker.GetLatestTrade(ctx, symbol)
		if terr != nil {
			return nil, terr
		}
		in.SnapshotTrade = trade
	}

	in.SecondaryPrice, in.SecondaryOK = e.secondary.Price(ctx, symbol)

	mode := indicators.ModeClose
	if e.cfg.Valuation.RSIUseOpen {
		mode = indicators.ModeOpen
	}
	return valuation.Synthesize(in, valuation.Params{
		LimitBuffer:        e.cfg.Valuation.LimitBuffer,
		SpreadLimit:        e.cfg.Valuation.SpreadLimit,
		PriceVarianceLimit: e.cfg.Valuation.PriceVarianceLimit,
		RSIPeriod:          e.cfg.Valuation.RSIPeriod,
		RSIMode:            mode,
		AtOpen:             e.cfg.Trading.AtOpen,
	})
}

// buyPhase sizes and submits buy orders for configured symbols trading below
// their previous reference with a depressed RSI. The account snapshot is
// fetched once and intentionally not refreshed between submissions; later
// sizings may work from figures made stale by earlier fills.
func (e *Engine) buyPhase(ctx context.Context, snapshots map[string]*models.AssetSnapshot) {
	account, err := e.broker.GetAccountState(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Account snapshot failed, skipping buy phase")
		return
	}

	for _, symbol := range e.cfg.Trading.Symbols {
		snap, ok := snapshots[symbol]
		if !ok {
			continue
		}
		log := logging.WithSymbol(e.logger, symbol)

		if snap.PercentUpDown > 0 || snap.RSI > e.cfg.Sell.RSILower {
			continue
		}

		openCount, cerr := e.store.CountOpenPositions(ctx, symbol)
		if cerr != nil {
			log.Error().Err(cerr).Msg("Counting open positions failed")
			continue
		}

		quantity := e.sizer.Quantity(snap.LimitPriceBuy, account, openCount)
		if quantity == 0 {
			log.Info().Msg("Buy candidate sized to zero, skipping")
			continue
		}
		if !e.cfg.Orders.Enabled {
			log.Info().Int("quantity", quantity).Float64("limit_price", snap.LimitPriceBuy).
				Msg("Orders disabled, buy not submitted")
			continue
		}

		e.submitBuy(ctx, snap, quantity)
	}
}

func (e *Engine) submitBuy(ctx context.Context, snap *models.AssetSnapshot, quantity int) {
	log := logging.WithSymbol(e.logger, snap.Symbol)

	orderID, err := e.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:     snap.Symbol,
		Quantity:   quantity,
		LimitPrice: snap.LimitPriceBuy,
		Side:       models.OrderSideBuy,
	})
	if err != nil {
		log.Error().Err(err).Msg("Buy submission failed")
		return
	}
	logging.LogOrder(e.logger, orderID, snap.Symbol, models.OrderSideBuy, quantity, snap.LimitPriceBuy, models.OrderStatusPending)

	state, err := e.waitForFill(ctx, orderID)
	if err != nil {
		e.cancelUnfilled(ctx, orderID, snap.Symbol, err)
		return
	}
	if state.Status != models.OrderStatusFilled {
		logging.LogOrder(e.logger, orderID, snap.Symbol, models.OrderSideBuy, quantity, snap.LimitPriceBuy, state.Status)
		return
	}

	purchasePrice := state.FilledAvgPrice
	if purchasePrice == 0 {
		purchasePrice = snap.LimitPriceBuy
	}
	logging.LogFill(e.logger, orderID, snap.Symbol, models.OrderSideBuy, quantity, purchasePrice)

	position := &models.Position{
		Symbol:          snap.Symbol,
		Quantity:        quantity,
		PurchaseDate:    utils.SessionDate(e.now()),
		PurchasePrice:   purchasePrice,
		PurchaseOrderID: orderID,
	}
	if serr := e.store.InsertOpenPosition(ctx, position); serr != nil {
		// The fill exists without a row now; surfaced, not masked.
		log.Error().Err(serr).Str("order_id", orderID).Msg("Recording filled buy failed")
	}
}

// sellPhase evaluates every open position against the sell rules. Like the
// buy phase it works from one account snapshot for the whole batch.
func (e *Engine) sellPhase(ctx context.Context, snapshots map[string]*models.AssetSnapshot) {
	account, err := e.broker.GetAccountState(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Account snapshot failed, skipping sell phase")
		return
	}

	now := e.now()
	dayTrades, err := e.store.CountDayTrades(ctx, now.Add(-dayTradeWindow))
	if err != nil {
		e.logger.Error().Err(err).Msg("Counting day trades failed, skipping sell phase")
		return
	}

	openSymbols, err := e.store.OpenSymbols(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Querying open symbols failed, skipping sell phase")
		return
	}

	for _, symbol := range openSymbols {
		snap, ok := snapshots[symbol]
		if !ok {
			continue
		}
		log := logging.WithSymbol(e.logger, symbol)

		positions, perr := e.store.OpenPositions(ctx, store.PositionFilter{Symbol: symbol})
		if perr != nil {
			log.Error().Err(perr).Msg("Querying open positions failed")
			continue
		}

		for i := range positions {
			pos := &positions[i]
			decision := e.evaluator.Evaluate(pos, snap, account, dayTrades, now)
			if !decision.Eligible {
				continue
			}
			log.Info().
				Str("position_id", pos.ID).
				Str("scenario", string(decision.Scenario)).
				Float64("limit_price", decision.LimitPrice).
				Int("quantity", decision.Quantity).
				Msg("Position eligible for sale")

			if !e.cfg.Orders.Enabled {
				continue
			}
			if e.submitSell(ctx, pos, decision) && utils.SameSession(pos.PurchaseDate, now) {
				// A same-day fill is a new day trade; keep the guard current
				// within this run.
				dayTrades++
			}
		}
	}
}

func (e *Engine) submitSell(ctx context.Context, pos *models.Position, decision SellDecision) bool {
	log := logging.WithSymbol(e.logger, pos.Symbol)

	orderID, err := e.broker.SubmitOrder(ctx, broker.OrderRequest{
		Symbol:     pos.Symbol,
		Quantity:   decision.Quantity,
		LimitPrice: decision.LimitPrice,
		Side:       models.OrderSideSell,
	})
	if err != nil {
		log.Error().Err(err).Msg("Sell submission failed")
		return false
	}
	logging.LogOrder(e.logger, orderID, pos.Symbol, models.OrderSideSell, decision.Quantity, decision.LimitPrice, models.OrderStatusPending)

	state, err := e.waitForFill(ctx, orderID)
	if err != nil {
		e.cancelUnfilled(ctx, orderID, pos.Symbol, err)
		return false
	}
	if state.Status != models.OrderStatusFilled {
		logging.LogOrder(e.logger, orderID, pos.Symbol, models.OrderSideSell, decision.Quantity, decision.LimitPrice, state.Status)
		return false
	}

	salePrice := state.FilledAvgPrice
	if salePrice == 0 {
		salePrice = decision.LimitPrice
	}
	logging.LogFill(e.logger, orderID, pos.Symbol, models.OrderSideSell, decision.Quantity, salePrice)

	if serr := e.store.ClosePosition(ctx, pos.ID, salePrice, orderID, utils.SessionDate(e.now())); serr != nil {
		log.Error().Err(serr).Str("order_id", orderID).Msg("Recording filled sell failed")
	}
	return true
}

// waitForFill polls the order at a fixed interval for a bounded number of
// iterations. Exceeding the bound returns ErrOrderUnfilled; no further
// retries happen beyond this poll.
func (e *Engine) waitForFill(ctx context.Context, orderID string) (broker.OrderState, error) {
	for i := 0; i < e.cfg.Orders.FillPollIterations; i++ {
		state, err := e.broker.GetOrderState(ctx, orderID)
		if err != nil {
			return broker.OrderState{}, err
		}
		if state.Status != models.OrderStatusPending {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return broker.OrderState{}, ctx.Err()
		case <-time.After(e.cfg.Orders.FillPollInterval):
		}
	}
	return broker.OrderState{}, errors.NewOrderError(orderID, "", "poll", errors.ErrOrderUnfilled)
}

// cancelUnfilled actively cancels an order that never filled within the poll
// bound.
func (e *Engine) cancelUnfilled(ctx context.Context, orderID, symbol string, cause error) {
	log := logging.WithOrderID(logging.WithSymbol(e.logger, symbol), orderID)
	log.Warn().Err(cause).Msg("Order unfilled, cancelling")
	if errors.Is(cause, errors.ErrOrderUnfilled) {
		if cerr := e.broker.CancelOrder(ctx, orderID); cerr != nil {
			log.Error().Err(cerr).Msg("Cancel failed")
		}
	}
}
