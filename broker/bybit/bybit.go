// Package bybit talks to the Bybit v5 REST API for USDT linear perpetuals.
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rustyeddy/bartrader/broker"
	"github.com/rustyeddy/bartrader/market"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"

	category   = "linear"
	recvWindow = "5000"
)

var intervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"1d":  "D",
}

type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	// BaseURL overrides the mainnet/testnet choice.
	BaseURL string
	Timeout time.Duration
}

type instrument struct {
	qtyStep  float64
	tickSize float64
}

// Client implements broker.Exchange.
type Client struct {
	http   *resty.Client
	key    string
	secret string
	log    *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	instruments map[string]instrument
}

var _ broker.Exchange = (*Client)(nil)

func New(cfg Config, log *zap.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = MainnetURL
		if cfg.Testnet {
			base = TestnetURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(timeout)

	return &Client{
		http:        client,
		key:         cfg.APIKey,
		secret:      cfg.APISecret,
		log:         log.With(zap.String("exchange", "bybit"), zap.Bool("testnet", cfg.Testnet)),
		now:         time.Now,
		instruments: map[string]instrument{},
	}
}

func (c *Client) Name() string { return "bybit" }

// Symbol turns a unified symbol like "BTC/USDT:USDT" into "BTCUSDT".
func Symbol(s string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(strings.ReplaceAll(s, "/", ""))
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

func decode(resp *resty.Response, out interface{}) error {
	if resp.StatusCode() != 200 {
		return fmt.Errorf("bybit: http %d: %s", resp.StatusCode(), resp.String())
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("bybit: decode response: %w", err)
	}
	if env.RetCode != 0 {
		return &APIError{Code: env.RetCode, Msg: env.RetMsg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("bybit: decode result: %w", err)
	}
	return nil
}

// APIError is a non-zero retCode.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string { return fmt.Sprintf("bybit: retCode %d: %s", e.Code, e.Msg) }

// GetBars fetches klines. Bybit returns them newest first; they are
// reversed so callers see ascending time.
func (c *Client) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	iv, ok := intervals[strings.ToLower(timeframe)]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 200
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category": category,
			"symbol":   Symbol(symbol),
			"interval": iv,
			"limit":    strconv.Itoa(limit),
		}).
		Get("/v5/market/kline")
	if err != nil {
		return nil, fmt.Errorf("bybit: kline %s: %w", symbol, err)
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := decode(resp, &result); err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, len(result.List))
	for _, row := range result.List {
		b, ok, err := market.ParseBarRow(row)
		if err != nil {
			return nil, fmt.Errorf("bybit: kline row: %w", err)
		}
		if ok {
			bars = append(bars, b)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	return bars, nil
}

// LoadInstrument fetches and caches the lot and tick size for symbol.
func (c *Client) LoadInstrument(ctx context.Context, symbol string) error {
	sym := Symbol(symbol)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"category": category, "symbol": sym}).
		Get("/v5/market/instruments-info")
	if err != nil {
		return fmt.Errorf("bybit: instruments-info %s: %w", sym, err)
	}

	var result struct {
		List []struct {
			Symbol        string `json:"symbol"`
			LotSizeFilter struct {
				QtyStep string `json:"qtyStep"`
			} `json:"lotSizeFilter"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
		} `json:"list"`
	}
	if err := decode(resp, &result); err != nil {
		return err
	}
	if len(result.List) == 0 {
		return fmt.Errorf("bybit: unknown symbol %s", sym)
	}

	var inst instrument
	inst.qtyStep, _ = strconv.ParseFloat(result.List[0].LotSizeFilter.QtyStep, 64)
	inst.tickSize, _ = strconv.ParseFloat(result.List[0].PriceFilter.TickSize, 64)

	c.mu.Lock()
	c.instruments[sym] = inst
	c.mu.Unlock()
	return nil
}

func (c *Client) instrument(symbol string) instrument {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instruments[Symbol(symbol)]
}

// AmountToPrecision floors amount to the lot step. Without loaded
// instrument info it returns amount unchanged.
func (c *Client) AmountToPrecision(symbol string, amount float64) float64 {
	return broker.FloorToStep(amount, c.instrument(symbol).qtyStep)
}

func (c *Client) PriceToPrecision(symbol string, price float64) float64 {
	return broker.RoundToStep(price, c.instrument(symbol).tickSize)
}

func (c *Client) PointValue(string) float64 { return 1 }

type createOrder struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TakeProfit  string `json:"takeProfit,omitempty"`
	StopLoss    string `json:"stopLoss,omitempty"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceOrder submits an order. If the venue refuses it with a price
// complaint and TP/SL were attached, it is retried once without them.
func (c *Client) PlaceOrder(ctx context.Context, o broker.Order) (broker.OrderResult, error) {
	side := "Buy"
	switch o.Side {
	case market.Long:
	case market.Short:
		side = "Sell"
	default:
		return broker.OrderResult{}, fmt.Errorf("%w: no side", broker.ErrOrderRejected)
	}

	qty := c.AmountToPrecision(o.Symbol, o.Qty)
	if qty <= 0 {
		return broker.OrderResult{}, fmt.Errorf("%w: qty %v below lot size", broker.ErrOrderRejected, o.Qty)
	}

	req := createOrder{
		Category:    category,
		Symbol:      Symbol(o.Symbol),
		Side:        side,
		OrderType:   "Market",
		Qty:         broker.FormatDecimal(qty),
		ReduceOnly:  o.ReduceOnly,
		OrderLinkID: o.ClientID,
	}
	if req.OrderLinkID == "" {
		req.OrderLinkID = uuid.NewString()
	}
	if o.Type == broker.Limit {
		req.OrderType = "Limit"
		req.Price = broker.FormatDecimal(c.PriceToPrecision(o.Symbol, o.Price))
	}
	if o.TakeProfit > 0 {
		req.TakeProfit = broker.FormatDecimal(c.PriceToPrecision(o.Symbol, o.TakeProfit))
	}
	if o.StopLoss > 0 {
		req.StopLoss = broker.FormatDecimal(c.PriceToPrecision(o.Symbol, o.StopLoss))
	}

	id, err := c.create(ctx, req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Msg), "price") &&
			(req.TakeProfit != "" || req.StopLoss != "") {
			c.log.Warn("order refused, retrying without tp/sl", zap.Error(err))
			req.TakeProfit, req.StopLoss = "", ""
			id, err = c.create(ctx, req)
		}
	}
	if err != nil {
		c.log.Error("order failed", zap.String("symbol", req.Symbol), zap.String("side", side), zap.Error(err))
		return broker.OrderResult{}, fmt.Errorf("%w: %v", broker.ErrOrderRejected, err)
	}

	res := broker.OrderResult{
		ID:       id,
		ClientID: req.OrderLinkID,
		Symbol:   o.Symbol,
		Side:     o.Side,
		Qty:      qty,
		Price:    o.Price,
		Status:   "submitted",
		Time:     c.now().UTC(),
	}
	c.log.Info("order sent", zap.String("id", id), zap.String("symbol", req.Symbol), zap.String("side", side), zap.Float64("qty", qty))
	return res, nil
}

func (c *Client) create(ctx context.Context, req createOrder) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-BAPI-API-KEY", c.key).
		SetHeader("X-BAPI-TIMESTAMP", ts).
		SetHeader("X-BAPI-RECV-WINDOW", recvWindow).
		SetHeader("X-BAPI-SIGN", Sign(c.secret, ts, c.key, recvWindow, string(body))).
		SetBody(body).
		Post("/v5/order/create")
	if err != nil {
		return "", fmt.Errorf("bybit: order create: %w", err)
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := decode(resp, &result); err != nil {
		return "", err
	}
	return result.OrderID, nil
}

// Sign is the v5 request signature: hex HMAC-SHA256 over
// timestamp + key + recvWindow + payload.
func Sign(secret, ts, key, recv, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + key + recv + payload))
	return hex.EncodeToString(mac.Sum(nil))
}
