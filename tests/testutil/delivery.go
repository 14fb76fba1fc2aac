package testutil

import (
	"context"
	"sync"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/google/uuid"
)

// RecordingGateway is a DeliveryGateway that keeps every request it accepts
type RecordingGateway struct {
	mu       sync.Mutex
	requests []appsales.DeliveryRequest
	failures int
	err      error
}

// NewRecordingGateway creates an empty gateway
func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{}
}

// FailNext makes the next n calls return err without recording
func (g *RecordingGateway) FailNext(n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = n
	g.err = err
}

// RequestDelivery implements appsales.DeliveryGateway
func (g *RecordingGateway) RequestDelivery(_ context.Context, req appsales.DeliveryRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures > 0 {
		g.failures--
		return g.err
	}
	g.requests = append(g.requests, req)
	return nil
}

// Requests returns a copy of the accepted requests
func (g *RecordingGateway) Requests() []appsales.DeliveryRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]appsales.DeliveryRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

// CountFor returns how many requests were accepted for a delivery ID
func (g *RecordingGateway) CountFor(deliveryID uuid.UUID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.requests {
		if r.DeliveryID == deliveryID {
			n++
		}
	}
	return n
}

var _ appsales.DeliveryGateway = (*RecordingGateway)(nil)
