// FILE: broker_paper.go
// Package main – In-memory simulated gateway (no external dependencies).
//
// The paper gateway simulates qualification, history, and bracket execution.
// It backs dry runs (GATEWAY_URL empty) and the unit tests: tests preload
// bar series, positions, executions and failure codes, then drive the
// trading loop against it without a network.
//
// Fill model: orders sit PreSubmitted until a transmitting order of the same
// parent group arrives (that releases the bracket, as the real gateway does).
// With AutoFill on, releasing fills the parent market order at the scripted
// fill price, else at the last known close.

package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type paperOrder struct {
	handle   OrderHandle
	spec     OrderSpec
	contract *ContractRef
	status   OrderStatus
}

// PaperGateway is safe for concurrent use; tests sometimes poke it from the
// test goroutine while the loop runs.
type PaperGateway struct {
	mu          sync.Mutex
	nextOrderID int64
	nextConID   int64

	bars        map[string]BarSeries
	qualifyFail map[string]int
	placeFail   map[string]int
	fillPrice   map[string]float64

	orders     map[int64]*paperOrder
	openOrders []OpenOrderReport
	positions  []PositionReport
	execs      []ExecutionReport

	events chan ErrorEvent

	// AutoFill fills released parent orders immediately.
	AutoFill bool
}

func NewPaperGateway() *PaperGateway {
	return &PaperGateway{
		nextConID:   1000,
		bars:        map[string]BarSeries{},
		qualifyFail: map[string]int{},
		placeFail:   map[string]int{},
		fillPrice:   map[string]float64{},
		orders:      map[int64]*paperOrder{},
		events:      make(chan ErrorEvent, 64),
		AutoFill:    true,
	}
}

func (p *PaperGateway) Name() string               { return "paper" }
func (p *PaperGateway) Events() <-chan ErrorEvent  { return p.events }
func (p *PaperGateway) Connect(context.Context) error { return nil }

// ---- test scripting ----

func (p *PaperGateway) SetBars(symbol string, s BarSeries) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars[symbol] = s
}

func (p *PaperGateway) FailQualify(symbol string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.qualifyFail[symbol] = code
}

func (p *PaperGateway) FailPlace(symbol string, code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placeFail[symbol] = code
}

func (p *PaperGateway) SetFillPrice(symbol string, px float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fillPrice[symbol] = px
}

func (p *PaperGateway) SetPositions(ps []PositionReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = ps
}

func (p *PaperGateway) SetOpenOrders(os []OpenOrderReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openOrders = os
}

func (p *PaperGateway) SetExecutions(es []ExecutionReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.execs = es
}

func (p *PaperGateway) PushEvent(ev ErrorEvent) { p.events <- ev }

// PlacedOrders returns every order seen, in submission order.
func (p *PaperGateway) PlacedOrders() []OrderSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderSpec, 0, len(p.orders))
	for id := int64(1); id <= p.nextOrderID; id++ {
		if o, ok := p.orders[id]; ok {
			out = append(out, o.spec)
		}
	}
	return out
}

// ---- Gateway implementation ----

func (p *PaperGateway) Qualify(_ context.Context, spec ContractSpec) (*ContractRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if code, ok := p.qualifyFail[spec.Symbol]; ok {
		return nil, &GatewayError{Code: code, Message: "scripted qualify failure"}
	}
	p.nextConID++
	return &ContractRef{
		ConID:           p.nextConID,
		Symbol:          spec.Symbol,
		Currency:        spec.Currency,
		Exchange:        "SMART",
		PrimaryExchange: spec.PrimaryExchange,
	}, nil
}

func (p *PaperGateway) FetchBars(_ context.Context, c *ContractRef, _, _ string, _ bool) (BarSeries, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.bars[c.Symbol]
	if !ok {
		// A successful fetch with zero rows; the history gate owns this.
		return BarSeries{}, nil
	}
	return s, nil
}

func (p *PaperGateway) PlaceOrder(_ context.Context, c *ContractRef, o OrderSpec) (OrderHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if code, ok := p.placeFail[c.Symbol]; ok {
		return OrderHandle{}, &GatewayError{Code: code, Message: "scripted place failure"}
	}
	p.nextOrderID++
	id := p.nextOrderID
	po := &paperOrder{
		handle:   OrderHandle{OrderID: id, Symbol: c.Symbol, Status: "PreSubmitted"},
		spec:     o,
		contract: c,
		status:   OrderStatus{OrderID: id, Status: "PreSubmitted"},
	}
	p.orders[id] = po
	if o.Transmit {
		p.releaseGroup(po)
	}
	return po.handle, nil
}

// releaseGroup marks the transmitted order's bracket released and, with
// AutoFill, fills the parent market order.
func (p *PaperGateway) releaseGroup(last *paperOrder) {
	parentID := last.spec.ParentID
	if parentID == 0 {
		parentID = last.handle.OrderID
	}
	for _, o := range p.orders {
		if o.handle.OrderID == parentID || o.spec.ParentID == parentID {
			o.status.Status = "Submitted"
		}
	}
	parent, ok := p.orders[parentID]
	if !ok || !p.AutoFill || parent.spec.Type != TypeMarket {
		return
	}
	px := p.fillPrice[parent.contract.Symbol]
	if px == 0 {
		if s, ok := p.bars[parent.contract.Symbol]; ok && s.Len() > 0 {
			px = s.Last().Close
		}
	}
	if px == 0 {
		return // no reference price: leave unfilled
	}
	parent.status = OrderStatus{
		OrderID:      parentID,
		Status:       "Filled",
		FilledQty:    parent.spec.Qty,
		AvgFillPrice: px,
		FillTime:     time.Now().UTC(),
	}
}

func (p *PaperGateway) OrderStatus(_ context.Context, orderID int64) (OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return OrderStatus{}, errors.Errorf("unknown order %d", orderID)
	}
	return o.status, nil
}

func (p *PaperGateway) OpenOrders(_ context.Context) ([]OpenOrderReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]OpenOrderReport(nil), p.openOrders...), nil
}

func (p *PaperGateway) Positions(_ context.Context) ([]PositionReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PositionReport(nil), p.positions...), nil
}

func (p *PaperGateway) Executions(_ context.Context) ([]ExecutionReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ExecutionReport(nil), p.execs...), nil
}

// AddExecution appends a scripted execution row.
func (p *PaperGateway) AddExecution(e ExecutionReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.ExecID == "" {
		e.ExecID = uuid.New().String()
	}
	p.execs = append(p.execs, e)
}
