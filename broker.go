// FILE: broker.go
// Package main – Gateway abstractions shared by all execution backends.
//
// This file defines the surface the decision loop needs from a brokerage
// backend (the IB gateway sidecar, or the in-memory paper gateway):
//   • Bar / BarSeries: normalized OHLCV history
//   • ContractSpec / ContractRef: candidate identity and its resolved handle
//   • OrderSpec / OrderHandle / OrderStatus: bracket legs on the wire
//   • PositionReport / ExecutionReport / OpenOrderReport: snapshots
//   • ErrorEvent + classification of gateway error codes
//
// Two concrete implementations live in separate files:
//   • broker_gateway.go – REST/websocket client for the gateway sidecar
//   • broker_paper.go   – in-memory simulated gateway (tests, dry runs)

package main

import (
	"context"
	"fmt"
	"time"
)

// Bar is the normalized OHLCV row the engine uses everywhere.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// BarSeries is an immutable snapshot of ordered bars. It is fetched fresh for
// every evaluation and never mutated in place.
type BarSeries struct {
	bars []Bar
}

func NewBarSeries(bars []Bar) BarSeries { return BarSeries{bars: bars} }

func (s BarSeries) Len() int      { return len(s.bars) }
func (s BarSeries) Bar(i int) Bar { return s.bars[i] }
func (s BarSeries) Last() Bar     { return s.bars[len(s.bars)-1] }

// Closes returns the close column. The slice is a copy; callers may keep it.
func (s BarSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i := range s.bars {
		out[i] = s.bars[i].Close
	}
	return out
}

// ContractSpec is the unresolved identity of a tradeable instrument.
type ContractSpec struct {
	Symbol          string `yaml:"symbol" json:"symbol"`
	Currency        string `yaml:"currency" json:"currency"`
	PrimaryExchange string `yaml:"exchange" json:"primary_exchange"`
}

// ContractRef is the gateway-resolved contract handle. Immutable for the
// process lifetime once qualified.
type ContractRef struct {
	ConID           int64  `json:"con_id"`
	Symbol          string `json:"symbol"`
	Currency        string `json:"currency"`
	Exchange        string `json:"exchange"`
	PrimaryExchange string `json:"primary_exchange"`
}

// OrderSide is the side of a trade.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType mirrors the gateway's order types.
type OrderType string

const (
	TypeMarket OrderType = "MKT"
	TypeLimit  OrderType = "LMT"
	TypeStop   OrderType = "STP"
)

// OrderSpec describes one leg of a bracket as submitted to the gateway.
// ParentID/OCAGroup wire the children to their parent; Transmit withheld on
// all but the final leg keeps the bracket parked until fully linked.
type OrderSpec struct {
	ClientKey  string    `json:"client_key"` // engine-side correlation key (uuid)
	Side       OrderSide `json:"side"`
	Type       OrderType `json:"type"`
	Qty        int       `json:"qty"`
	LimitPrice float64   `json:"limit_price,omitempty"`
	StopPrice  float64   `json:"stop_price,omitempty"`
	ParentID   int64     `json:"parent_id,omitempty"`
	OCAGroup   string    `json:"oca_group,omitempty"`
	OCAType    int       `json:"oca_type,omitempty"`
	Transmit   bool      `json:"transmit"`
}

// OrderHandle identifies a submitted order.
type OrderHandle struct {
	OrderID int64  `json:"order_id"`
	ReqID   int64  `json:"req_id"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
}

// OrderStatus is a point-in-time view of a submitted order.
type OrderStatus struct {
	OrderID      int64     `json:"order_id"`
	Status       string    `json:"status"` // Submitted|PreSubmitted|Filled|Cancelled|...
	FilledQty    int       `json:"filled_qty"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	FillTime     time.Time `json:"fill_time"`
}

func (os OrderStatus) Filled() bool { return os.Status == "Filled" && os.FilledQty > 0 }

// OpenOrderReport is one row of the gateway's live-order snapshot.
type OpenOrderReport struct {
	OrderID int64  `json:"order_id"`
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
}

// PositionReport is one row of the gateway's position snapshot.
type PositionReport struct {
	Symbol   string  `json:"symbol"`
	Currency string  `json:"currency"`
	Exchange string  `json:"exchange"`
	Qty      float64 `json:"qty"`
	AvgCost  float64 `json:"avg_cost"`
}

// ExecutionReport is one row of the gateway's execution snapshot.
type ExecutionReport struct {
	ExecID  string    `json:"exec_id"`
	OrderID int64     `json:"order_id"`
	Symbol  string    `json:"symbol"`
	Side    OrderSide `json:"side"`
	Qty     float64   `json:"qty"`
	Price   float64   `json:"price"`
	Time    time.Time `json:"time"`
}

// ErrorEvent is an asynchronous gateway error, keyed by the request that
// triggered it (ReqID 0 = unsolicited/system).
type ErrorEvent struct {
	ReqID    int64        `json:"req_id"`
	Code     int          `json:"code"`
	Message  string       `json:"message"`
	Contract *ContractRef `json:"contract,omitempty"`
}

// Gateway is the surface the engine needs from a brokerage backend. All
// snapshot calls are point-in-time; none of them are transactional with each
// other, which is why reconciliation re-checks everything each cycle.
type Gateway interface {
	Name() string
	Qualify(ctx context.Context, spec ContractSpec) (*ContractRef, error)
	FetchBars(ctx context.Context, c *ContractRef, duration, barSize string, rthOnly bool) (BarSeries, error)
	PlaceOrder(ctx context.Context, c *ContractRef, o OrderSpec) (OrderHandle, error)
	OrderStatus(ctx context.Context, orderID int64) (OrderStatus, error)
	OpenOrders(ctx context.Context) ([]OpenOrderReport, error)
	Positions(ctx context.Context) ([]PositionReport, error)
	Executions(ctx context.Context) ([]ExecutionReport, error)
	// Events delivers unsolicited error events (those not claimed by the
	// drain window of the originating call). The channel is buffered and
	// never closed while the gateway lives.
	Events() <-chan ErrorEvent
}

// ---- Error classification ----

// ErrClass buckets gateway error codes into the engine's failure taxonomy.
type ErrClass int

const (
	ErrClassTransient ErrClass = iota
	ErrClassPermission
	ErrClassContract
)

// GatewayError carries the broker error code so callers can classify it.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// classifyCode maps gateway error codes to the failure taxonomy:
//
//	200        – no security definition found
//	162        – historical data request denied (no market data permission)
//	354, 10089 – market data not subscribed
//
// Everything else is transient.
func classifyCode(code int) ErrClass {
	switch code {
	case 200:
		return ErrClassContract
	case 162, 354, 10089:
		return ErrClassPermission
	default:
		return ErrClassTransient
	}
}

func classReason(cl ErrClass, code int) string {
	switch cl {
	case ErrClassPermission:
		return fmt.Sprintf("permission_denied_%d", code)
	case ErrClassContract:
		return fmt.Sprintf("contract_not_found_%d", code)
	default:
		return fmt.Sprintf("gateway_error_%d", code)
	}
}
