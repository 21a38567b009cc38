// Package broker defines what the trader needs from an exchange: recent
// bars, order placement, a point value and precision rounding.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/bartrader/market"
)

// ErrOrderRejected wraps every order the venue refused.
var ErrOrderRejected = errors.New("broker: order rejected")

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Order is a request to the venue. Side is the order side: Long buys and
// Short sells. Zero TakeProfit/StopLoss are not attached.
type Order struct {
	Symbol     string
	Side       market.Side
	Qty        float64
	Type       OrderType
	Price      float64
	TakeProfit float64
	StopLoss   float64
	ReduceOnly bool
	ClientID   string
}

// OrderResult is what the venue acknowledged.
type OrderResult struct {
	ID       string      `json:"id"`
	ClientID string      `json:"client_id,omitempty"`
	Symbol   string      `json:"symbol"`
	Side     market.Side `json:"side"`
	Qty      float64     `json:"qty"`
	Price    float64     `json:"price,omitempty"`
	Status   string      `json:"status"`
	Time     time.Time   `json:"time"`
}

// Exchange is the market data and execution venue.
type Exchange interface {
	Name() string
	// GetBars returns up to limit most recent bars, oldest first.
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error)
	PlaceOrder(ctx context.Context, o Order) (OrderResult, error)
	PointValue(symbol string) float64
	AmountToPrecision(symbol string, amount float64) float64
	PriceToPrecision(symbol string, price float64) float64
}
