// FILE: broker_gateway.go
// Package main – REST/websocket client for the IB gateway sidecar.
//
// The sidecar fronts TWS/IB Gateway and normalizes its API to plain JSON:
//   • GET  /status                    – session health + managed account
//   • POST /contracts/qualify         – resolve a ContractSpec
//   • GET  /bars                      – historical OHLCV
//   • POST /orders, GET /orders/{id}  – order submission / status
//   • GET  /orders/open, /positions, /executions – snapshots
//   • WS   /events                    – async error events (req_id, code, …)
//
// IB reports many failures asynchronously relative to the triggering call,
// keyed by request id. Every mutating/fetching call here carries a req_id;
// after the HTTP response, the client drains the event stream for that id
// for a short window and folds any matching error into the returned error.
// Events nobody claims are surfaced on Events() for the loop to classify.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// GatewayClient talks to the sidecar.
type GatewayClient struct {
	base    string
	rc      *resty.Client
	cfg     Config
	account string

	reqSeq  atomic.Int64
	mu      sync.Mutex
	waiters map[int64]chan ErrorEvent
	events  chan ErrorEvent

	wsCancel context.CancelFunc
}

func NewGatewayClient(cfg Config) *GatewayClient {
	base := strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/")
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.ReqTimeout).
		SetHeader("User-Agent", "bracketbot/gateway")
	return &GatewayClient{
		base:    base,
		rc:      rc,
		cfg:     cfg,
		waiters: map[int64]chan ErrorEvent{},
		events:  make(chan ErrorEvent, 256),
	}
}

func (g *GatewayClient) Name() string { return "ib-gateway" }

func (g *GatewayClient) Events() <-chan ErrorEvent { return g.events }

// Connect verifies the sidecar session with bounded retries and starts the
// event-stream reader. Exhausting the retry budget is fatal to the caller.
func (g *GatewayClient) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.ConnectAttempts; attempt++ {
		logrus.Infof("[BOOT] connecting to gateway... attempt %d", attempt)
		var out struct {
			Connected bool   `json:"connected"`
			Account   string `json:"account"`
		}
		res, err := g.rc.R().
			SetContext(ctx).
			SetQueryParam("client_id", strconv.Itoa(g.cfg.GatewayClientID)).
			SetResult(&out).
			Get("/status")
		switch {
		case err != nil:
			lastErr = err
		case res.IsError():
			lastErr = g.httpError(res)
		case !out.Connected:
			lastErr = errors.New("gateway reports not connected")
		default:
			g.account = out.Account
			if g.account != "" {
				logrus.Infof("[BOOT] managed account: %s", g.account)
			}
			wsCtx, cancel := context.WithCancel(context.Background())
			g.wsCancel = cancel
			go g.runEventStream(wsCtx)
			return nil
		}
		logrus.Warnf("[BOOT] connect failed: %v", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.cfg.ConnectBackoff):
		}
	}
	return errors.Wrapf(lastErr, "could not connect to gateway after %d attempts", g.cfg.ConnectAttempts)
}

// Close stops the event-stream reader.
func (g *GatewayClient) Close() {
	if g.wsCancel != nil {
		g.wsCancel()
	}
}

func (g *GatewayClient) Qualify(ctx context.Context, spec ContractSpec) (*ContractRef, error) {
	reqID, ch := g.register()
	defer g.release(reqID)

	var ref ContractRef
	res, err := g.rc.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"req_id":           reqID,
			"symbol":           spec.Symbol,
			"currency":         spec.Currency,
			"primary_exchange": spec.PrimaryExchange,
			"exchange":         "SMART",
		}).
		SetResult(&ref).
		Post("/contracts/qualify")
	if err := g.finish(res, err, reqID, ch); err != nil {
		return nil, errors.Wrapf(err, "qualify %s", spec.Symbol)
	}
	return &ref, nil
}

func (g *GatewayClient) FetchBars(ctx context.Context, c *ContractRef, duration, barSize string, rthOnly bool) (BarSeries, error) {
	reqID, ch := g.register()
	defer g.release(reqID)

	var out struct {
		Bars []Bar `json:"bars"`
	}
	res, err := g.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"req_id":   strconv.FormatInt(reqID, 10),
			"con_id":   strconv.FormatInt(c.ConID, 10),
			"duration": duration,
			"bar_size": barSize,
			"rth":      strconv.FormatBool(rthOnly),
			"what":     "TRADES",
		}).
		SetResult(&out).
		Get("/bars")
	if err := g.finish(res, err, reqID, ch); err != nil {
		return BarSeries{}, errors.Wrapf(err, "bars %s", c.Symbol)
	}
	// Zero rows is NoData, not an error; the scorer's history gate owns it.
	return NewBarSeries(out.Bars), nil
}

func (g *GatewayClient) PlaceOrder(ctx context.Context, c *ContractRef, o OrderSpec) (OrderHandle, error) {
	reqID, ch := g.register()
	defer g.release(reqID)

	var handle OrderHandle
	res, err := g.rc.R().
		SetContext(ctx).
		SetBody(struct {
			ReqID int64 `json:"req_id"`
			ConID int64 `json:"con_id"`
			OrderSpec
		}{ReqID: reqID, ConID: c.ConID, OrderSpec: o}).
		SetResult(&handle).
		Post("/orders")
	if err := g.finish(res, err, reqID, ch); err != nil {
		return OrderHandle{}, errors.Wrapf(err, "place %s %s", o.Side, c.Symbol)
	}
	handle.ReqID = reqID
	if handle.Symbol == "" {
		handle.Symbol = c.Symbol
	}
	return handle, nil
}

func (g *GatewayClient) OrderStatus(ctx context.Context, orderID int64) (OrderStatus, error) {
	var st OrderStatus
	res, err := g.rc.R().
		SetContext(ctx).
		SetResult(&st).
		Get(fmt.Sprintf("/orders/%d", orderID))
	if err != nil {
		return OrderStatus{}, errors.Wrapf(err, "order status %d", orderID)
	}
	if res.IsError() {
		return OrderStatus{}, g.httpError(res)
	}
	return st, nil
}

func (g *GatewayClient) OpenOrders(ctx context.Context) ([]OpenOrderReport, error) {
	var out []OpenOrderReport
	res, err := g.rc.R().SetContext(ctx).SetResult(&out).Get("/orders/open")
	if err != nil {
		return nil, errors.Wrap(err, "open orders")
	}
	if res.IsError() {
		return nil, g.httpError(res)
	}
	return out, nil
}

func (g *GatewayClient) Positions(ctx context.Context) ([]PositionReport, error) {
	var out []PositionReport
	res, err := g.rc.R().SetContext(ctx).SetResult(&out).Get("/positions")
	if err != nil {
		return nil, errors.Wrap(err, "positions")
	}
	if res.IsError() {
		return nil, g.httpError(res)
	}
	return out, nil
}

func (g *GatewayClient) Executions(ctx context.Context) ([]ExecutionReport, error) {
	var out []ExecutionReport
	res, err := g.rc.R().SetContext(ctx).SetResult(&out).Get("/executions")
	if err != nil {
		return nil, errors.Wrap(err, "executions")
	}
	if res.IsError() {
		return nil, g.httpError(res)
	}
	return out, nil
}

// ---- request correlation ----

func (g *GatewayClient) register() (int64, chan ErrorEvent) {
	reqID := g.reqSeq.Add(1)
	ch := make(chan ErrorEvent, 4)
	g.mu.Lock()
	g.waiters[reqID] = ch
	g.mu.Unlock()
	return reqID, ch
}

func (g *GatewayClient) release(reqID int64) {
	g.mu.Lock()
	delete(g.waiters, reqID)
	g.mu.Unlock()
}

// finish folds the HTTP outcome and any correlated async error into one
// returned error. The drain window bounds how long we wait for IB to tattle.
func (g *GatewayClient) finish(res *resty.Response, callErr error, reqID int64, ch chan ErrorEvent) error {
	if callErr != nil {
		return callErr
	}
	if res.IsError() {
		return g.httpError(res)
	}
	select {
	case ev := <-ch:
		if classifyCode(ev.Code) != ErrClassTransient {
			return &GatewayError{Code: ev.Code, Message: ev.Message}
		}
		logrus.Debugf("[EVENT] req=%d benign code=%d %s", reqID, ev.Code, ev.Message)
		return nil
	case <-time.After(g.cfg.DrainWindow):
		return nil
	}
}

// httpError converts an error response body ({"code":..,"message":..}) into
// a GatewayError; unparseable bodies become transient errors.
func (g *GatewayClient) httpError(res *resty.Response) error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(res.Body(), &body); err == nil && body.Code != 0 {
		return &GatewayError{Code: body.Code, Message: body.Message}
	}
	return errors.Errorf("gateway http %d: %s", res.StatusCode(), strings.TrimSpace(string(res.Body())))
}

// ---- event stream ----

// runEventStream keeps a websocket to /events alive, routing each event to
// its registered waiter or to the public channel. Reconnects with a fixed
// backoff until cancelled.
func (g *GatewayClient) runEventStream(ctx context.Context) {
	wsURL := strings.Replace(g.base, "http", "ws", 1) + "/events"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			logrus.Warnf("[EVENT] stream dial: %v", err)
			pause(ctx, g.cfg.ConnectBackoff)
			continue
		}
		g.readEvents(ctx, conn)
		_ = conn.Close()
		pause(ctx, g.cfg.ConnectBackoff)
	}
}

func (g *GatewayClient) readEvents(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		var ev ErrorEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				logrus.Warnf("[EVENT] stream read: %v", err)
			}
			return
		}
		g.mu.Lock()
		ch, claimed := g.waiters[ev.ReqID]
		g.mu.Unlock()
		if claimed {
			select {
			case ch <- ev:
				continue
			default:
			}
		}
		select {
		case g.events <- ev:
		default:
			// Keep the newest events when the loop lags.
			<-g.events
			g.events <- ev
		}
	}
}
