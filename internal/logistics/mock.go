package logistics

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Mock approves every pickup at a flat rate per item line. Used when
// USE_MOCK_CLIENTS is on.
type Mock struct {
	CostPerLine float64
	nextID      atomic.Int64
}

func NewMock() *Mock {
	m := &Mock{CostPerLine: 500}
	m.nextID.Store(9000)
	return m
}

func (m *Mock) RequestPickup(_ context.Context, orderReference, originCompany string, items []Item) (PickupRequest, error) {
	id := m.nextID.Add(1)
	return PickupRequest{
		ID:               fmt.Sprintf("%d", id),
		Cost:             m.CostPerLine * float64(len(items)),
		PaymentReference: uuid.NewString(),
		AccountNumber:    "mock-logistics-account",
	}, nil
}

func (m *Mock) EstimatePickup(ctx context.Context, originCompany string, items []Item) (float64, error) {
	preview, err := m.RequestPickup(ctx, PreviewReference, originCompany, items)
	if err != nil {
		return 0, err
	}
	return preview.Cost, nil
}
