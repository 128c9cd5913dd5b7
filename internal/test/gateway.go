package test

import (
	"context"
	"fmt"
	"sync"

	domainErrors "github.com/polkiloo/storefront/internal/domain/errors"
	"github.com/polkiloo/storefront/internal/domain/model"
)

// GatewayStub is an in-memory payment gateway.
// Created invoices are stored and returned by GetInvoice unless the overrides are set.
type GatewayStub struct {
	CreateFn func(context.Context, model.InvoiceRequest) (*model.Invoice, error)
	GetFn    func(context.Context, string) (*model.Invoice, error)

	mu       sync.Mutex
	requests []model.InvoiceRequest
	invoices map[string]model.Invoice
	lookups  []string
}

func (g *GatewayStub) CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	g.mu.Unlock()

	if g.CreateFn != nil {
		return g.CreateFn(ctx, req)
	}
	inv := model.Invoice{
		ID:         fmt.Sprintf("inv-%d", n),
		ExternalID: req.ExternalID,
		Status:     model.InvoiceStatusPending,
		URL:        fmt.Sprintf("https://pay.test/inv-%d", n),
		Amount:     req.Amount,
	}
	g.Put(inv)
	return &inv, nil
}

func (g *GatewayStub) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	g.mu.Lock()
	g.lookups = append(g.lookups, id)
	inv, ok := g.invoices[id]
	g.mu.Unlock()

	if g.GetFn != nil {
		return g.GetFn(ctx, id)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrInvoiceNotFound, id)
	}
	return &inv, nil
}

// Put stores or replaces an invoice.
func (g *GatewayStub) Put(inv model.Invoice) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.invoices == nil {
		g.invoices = make(map[string]model.Invoice)
	}
	g.invoices[inv.ID] = inv
}

// Requests returns every CreateInvoice request received.
func (g *GatewayStub) Requests() []model.InvoiceRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.InvoiceRequest(nil), g.requests...)
}

// Lookups returns the invoice ids passed to GetInvoice.
func (g *GatewayStub) Lookups() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.lookups...)
}

// NotifierRecorder captures published order events.
type NotifierRecorder struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

func (n *NotifierRecorder) Notify(_ context.Context, event model.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *NotifierRecorder) Events() []model.OrderEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.OrderEvent(nil), n.events...)
}

// Types lists the recorded event types in order.
func (n *NotifierRecorder) Types() []model.OrderEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.OrderEventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}
