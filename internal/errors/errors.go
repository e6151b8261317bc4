// Package errors provides custom error types for domain-specific errors.
//
// The orchestrator routes on these kinds: data-unavailable errors degrade via
// the valuation fallback chains and never abort a run, broker-call failures
// abort only the current symbol or order, store failures are surfaced to the
// caller.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrMarketClosed      = errors.New("market is closed")
	ErrDataUnavailable   = errors.New("market data unavailable")
	ErrInsufficientBars  = errors.New("not enough bars for lookback period")
	ErrInvalidPeriod     = errors.New("lookback period must be positive")
	ErrZeroPreviousPrice = errors.New("previous reference price is zero")
	ErrOrderUnfilled     = errors.New("order not filled within poll bound")
	ErrPositionClosed    = errors.New("position already closed")
	ErrPositionNotFound  = errors.New("position not found")
	ErrConfigInvalid     = errors.New("invalid configuration")
)

// BrokerError represents an error from the brokerage API.
type BrokerError struct {
	Op      string
	Symbol  string
	Err     error
}

func (e *BrokerError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("broker error [%s] %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(op, symbol string, err error) *BrokerError {
	return &BrokerError{Op: op, Symbol: symbol, Err: err}
}

// DataError represents a market-data error for one symbol.
type DataError struct {
	DataType string
	Symbol   string
	Err      error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error [%s] %s: %v", e.DataType, e.Symbol, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol string, err error) *DataError {
	return &DataError{DataType: dataType, Symbol: symbol, Err: err}
}

// OrderError represents an error related to order submission or settlement.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Err     error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error [%s] %s %s: %v", e.OrderID, e.Action, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action string, err error) *OrderError {
	return &OrderError{OrderID: orderID, Symbol: symbol, Action: action, Err: err}
}

// StoreError represents a persistence error. A store failure after a fill can
// leave a filled order without a matching row; that risk is surfaced, not
// masked.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
