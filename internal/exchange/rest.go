package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tradingengine/internal/errs"
	"tradingengine/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// restClient is the authenticated REST leg of the ExchangePort. It
// configures connection pooling, retries, a dual-window rate limiter,
// and a circuit breaker around every call.
type restClient struct {
	key, secret, base string
	rest              *resty.Client
	limiter           *dualWindowLimiter
	breaker           *gobreaker.CircuitBreaker
}

func newRESTClient(key, secret, base string, timeout time.Duration) *restClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	r := resty.New()
	r.SetTransport(transport)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetRetryCount(3)
	r.SetRetryWaitTime(1 * time.Second)
	r.SetRetryMaxWaitTime(5 * time.Second)

	return &restClient{
		key:     key,
		secret:  secret,
		base:    base,
		rest:    r,
		limiter: newDualWindowLimiter(10, 300),
		breaker: newBreaker("rest", 5, 60*time.Second, 30*time.Second),
	}
}

func (c *restClient) authHeaders(req *resty.Request) *resty.Request {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := ts
	return req.
		SetHeader("api-key", c.key).
		SetHeader("nonce", nonce).
		SetHeader("timestamp", ts).
		SetHeader("sign", sign(c.secret, nonce, c.key, ts))
}

type klineRow struct {
	OpenTime int64  `json:"openTime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

func (c *restClient) fetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.Network, "fetchOHLCV", err)
	}

	var rows []klineRow
	fn := func() ([]klineRow, error) {
		resp, err := c.rest.R().SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":   symbol,
				"interval": timeframe,
				"limit":    strconv.Itoa(limit),
			}).
			SetResult(&rows).
			Get(c.base + "/api/v1/market/klines")
		if err != nil {
			return nil, errs.New(errs.Network, "fetchOHLCV", err)
		}
		if resp.StatusCode() != 200 {
			return nil, mapHTTPStatus("fetchOHLCV", resp.StatusCode(), resp.String())
		}
		return rows, nil
	}
	rows, err := execThroughBreaker(c.breaker, "fetchOHLCV", fn)
	if err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Candle{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  time.UnixMilli(r.OpenTime).UTC(),
			Open:      mustDecimal(r.Open),
			High:      mustDecimal(r.High),
			Low:       mustDecimal(r.Low),
			Close:     mustDecimal(r.Close),
			Volume:    mustDecimal(r.Volume),
		})
	}
	return out, nil
}

type balanceRow struct {
	Asset string `json:"asset"`
	Free  string `json:"free"`
	Used  string `json:"locked"`
	Total string `json:"total"`
}

func (c *restClient) fetchBalance(ctx context.Context) (map[string]Balance, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.Network, "fetchBalance", err)
	}

	fn := func() ([]balanceRow, error) {
		var rows []balanceRow
		req := c.authHeaders(c.rest.R().SetContext(ctx))
		resp, err := req.SetResult(&rows).Get(c.base + "/api/v1/futures/account/balance")
		if err != nil {
			return nil, errs.New(errs.Network, "fetchBalance", err)
		}
		if resp.StatusCode() != 200 {
			return nil, mapHTTPStatus("fetchBalance", resp.StatusCode(), resp.String())
		}
		return rows, nil
	}
	rows, err := execThroughBreaker(c.breaker, "fetchBalance", fn)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Balance, len(rows))
	for _, r := range rows {
		out[r.Asset] = Balance{Free: mustDecimal(r.Free), Used: mustDecimal(r.Used), Total: mustDecimal(r.Total)}
	}
	return out, nil
}

type positionRow struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Qty        string `json:"qty"`
	EntryPrice string `json:"entryPrice"`
	Leverage   int    `json:"leverage"`
}

func (c *restClient) fetchPositions(ctx context.Context, symbol string) ([]ExchangePosition, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.Network, "fetchPositions", err)
	}

	fn := func() ([]positionRow, error) {
		var rows []positionRow
		req := c.authHeaders(c.rest.R().SetContext(ctx))
		if symbol != "" {
			req = req.SetQueryParam("symbol", symbol)
		}
		resp, err := req.SetResult(&rows).Get(c.base + "/api/v1/futures/position/list")
		if err != nil {
			return nil, errs.New(errs.Network, "fetchPositions", err)
		}
		if resp.StatusCode() != 200 {
			return nil, mapHTTPStatus("fetchPositions", resp.StatusCode(), resp.String())
		}
		return rows, nil
	}
	rows, err := execThroughBreaker(c.breaker, "fetchPositions", fn)
	if err != nil {
		return nil, err
	}

	out := make([]ExchangePosition, 0, len(rows))
	for _, r := range rows {
		dir := model.Long
		if r.Side == "sell" || r.Side == "short" {
			dir = model.Short
		}
		out = append(out, ExchangePosition{
			Symbol:     r.Symbol,
			Side:       dir,
			Qty:        mustDecimal(r.Qty),
			EntryPrice: mustDecimal(r.EntryPrice),
			Leverage:   r.Leverage,
		})
	}
	return out, nil
}

type orderResp struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	OrderID string `json:"orderId"`
}

func (c *restClient) placeOrder(ctx context.Context, symbol string, side OrderSide, typ OrderType, qty, price decimal.Decimal, params OrderParams) (Order, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Order{}, errs.New(errs.Network, "placeOrder", err)
	}

	body := map[string]any{
		"symbol":      symbol,
		"side":        string(side),
		"orderType":   string(typ),
		"qty":         qty.String(),
		"reduceOnly":  params.ReduceOnly,
		"timeInForce": params.TimeInForce,
	}
	if !price.IsZero() {
		body["price"] = price.String()
	}
	if !params.StopPrice.IsZero() {
		body["stopPrice"] = params.StopPrice.String()
	}

	fn := func() (orderResp, error) {
		var resp orderResp
		req := c.authHeaders(c.rest.R().SetContext(ctx))
		httpResp, err := req.SetBody(body).SetResult(&resp).Post(c.base + "/api/v1/futures/trade/place_order")
		if err != nil {
			return orderResp{}, errs.New(errs.Network, "placeOrder", err)
		}
		if httpResp.StatusCode() != 200 {
			return orderResp{}, mapHTTPStatus("placeOrder", httpResp.StatusCode(), httpResp.String())
		}
		if resp.Code != 0 {
			return orderResp{}, errs.New(errs.ExchangeRejected, "placeOrder", fmt.Errorf("%d: %s", resp.Code, resp.Msg))
		}
		return resp, nil
	}
	resp, err := execThroughBreaker(c.breaker, "placeOrder", fn)
	if err != nil {
		return Order{}, err
	}

	return Order{
		ID:        resp.OrderID,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Qty:       qty,
		Price:     price,
		Status:    "submitted",
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *restClient) cancelOrder(ctx context.Context, id, symbol string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.New(errs.Network, "cancelOrder", err)
	}
	fn := func() (struct{}, error) {
		var resp orderResp
		req := c.authHeaders(c.rest.R().SetContext(ctx))
		httpResp, err := req.SetBody(map[string]string{"orderId": id, "symbol": symbol}).
			SetResult(&resp).Post(c.base + "/api/v1/futures/trade/cancel_order")
		if err != nil {
			return struct{}{}, errs.New(errs.Network, "cancelOrder", err)
		}
		if httpResp.StatusCode() != 200 {
			return struct{}{}, mapHTTPStatus("cancelOrder", httpResp.StatusCode(), httpResp.String())
		}
		if resp.Code != 0 {
			return struct{}{}, errs.New(errs.ExchangeRejected, "cancelOrder", fmt.Errorf("%d: %s", resp.Code, resp.Msg))
		}
		return struct{}{}, nil
	}
	_, err := execThroughBreaker(c.breaker, "cancelOrder", fn)
	return err
}

func (c *restClient) setLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.New(errs.Network, "setLeverage", err)
	}
	fn := func() (struct{}, error) {
		var resp orderResp
		req := c.authHeaders(c.rest.R().SetContext(ctx))
		httpResp, err := req.SetBody(map[string]any{"symbol": symbol, "leverage": leverage}).
			SetResult(&resp).Post(c.base + "/api/v1/futures/account/change_leverage")
		if err != nil {
			return struct{}{}, errs.New(errs.Network, "setLeverage", err)
		}
		if httpResp.StatusCode() != 200 {
			return struct{}{}, mapHTTPStatus("setLeverage", httpResp.StatusCode(), httpResp.String())
		}
		if resp.Code != 0 {
			return struct{}{}, errs.New(errs.ExchangeRejected, "setLeverage", fmt.Errorf("%d: %s", resp.Code, resp.Msg))
		}
		return struct{}{}, nil
	}
	_, err := execThroughBreaker(c.breaker, "setLeverage", fn)
	return err
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
