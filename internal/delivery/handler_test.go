package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/case-supplier/case-supplier/internal/logistics"
	"github.com/case-supplier/case-supplier/internal/orders"
	"github.com/case-supplier/case-supplier/internal/procure"
	"github.com/case-supplier/case-supplier/internal/stock"
)

type fakeFinder struct {
	orders map[string]procure.ExternalOrder
}

func (f *fakeFinder) FindByShipmentReference(_ context.Context, ref string) (procure.ExternalOrder, error) {
	o, ok := f.orders[ref]
	if !ok {
		return procure.ExternalOrder{}, procure.ErrNotFound
	}
	return o, nil
}

type delivered struct {
	t     stock.ItemType
	units int64
}

type fakeReceiver struct {
	deliveries []delivered
}

func (f *fakeReceiver) Deliver(_ context.Context, t stock.ItemType, units int64) error {
	f.deliveries = append(f.deliveries, delivered{t: t, units: units})
	return nil
}

type fakePickups struct {
	recorded map[int64]int64
	err      error
}

func (f *fakePickups) RecordPickup(_ context.Context, orderID, quantity int64) error {
	if f.err != nil {
		return f.err
	}
	if f.recorded == nil {
		f.recorded = make(map[int64]int64)
	}
	f.recorded[orderID] += quantity
	return nil
}

type fakeWeights struct {
	weight float64
}

func (f *fakeWeights) MachineWeight(context.Context) (float64, error) {
	return f.weight, nil
}

func newTestRouter(finder *fakeFinder, receiver *fakeReceiver, pickups *fakePickups, weights *fakeWeights) http.Handler {
	h := NewHandler(finder, receiver, pickups, weights, slog.Default())
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func post(t *testing.T, router http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/logistics", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDeliveryMovesOrderedStock(t *testing.T) {
	finder := &fakeFinder{orders: map[string]procure.ExternalOrder{
		"ship-1": {
			Reference: "m-1",
			Kind:      procure.KindMaterial,
			Items:     []procure.ExternalOrderItem{{StockType: stock.TypePlastic, OrderedUnits: 1000}},
		},
	}}
	receiver := &fakeReceiver{}
	router := newTestRouter(finder, receiver, &fakePickups{}, &fakeWeights{weight: 2000})

	rec := post(t, router, map[string]any{
		"id":    "ship-1",
		"type":  logistics.ShipmentDelivery,
		"items": []map[string]any{{"name": "plastic", "quantity": 1000}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []delivered{{t: stock.TypePlastic, units: 1000}}, receiver.deliveries)
}

func TestMachineDeliveryConvertsWeightToUnits(t *testing.T) {
	finder := &fakeFinder{orders: map[string]procure.ExternalOrder{
		"ship-2": {
			Reference: "mc-1",
			Kind:      procure.KindMachine,
			Items:     []procure.ExternalOrderItem{{StockType: stock.TypeMachine, OrderedUnits: 2}},
		},
	}}
	receiver := &fakeReceiver{}
	router := newTestRouter(finder, receiver, &fakePickups{}, &fakeWeights{weight: 2000})

	rec := post(t, router, map[string]any{
		"id":    "ship-2",
		"type":  logistics.ShipmentDelivery,
		"items": []map[string]any{{"name": "case_machine", "quantity": 3500}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []delivered{{t: stock.TypeMachine, units: 2}}, receiver.deliveries)
}

func TestDeliveryUnknownShipment(t *testing.T) {
	router := newTestRouter(&fakeFinder{}, &fakeReceiver{}, &fakePickups{}, &fakeWeights{})

	rec := post(t, router, map[string]any{
		"id":    "missing",
		"type":  logistics.ShipmentDelivery,
		"items": []map[string]any{{"name": "plastic", "quantity": 100}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPickupRecordsCollection(t *testing.T) {
	pickups := &fakePickups{}
	router := newTestRouter(&fakeFinder{}, &fakeReceiver{}, pickups, &fakeWeights{})

	rec := post(t, router, map[string]any{
		"id":    "42",
		"type":  logistics.ShipmentPickup,
		"items": []map[string]any{{"name": "case", "quantity": 1000}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(1000), pickups.recorded[42])
}

func TestPickupMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", orders.ErrNotFound, http.StatusNotFound},
		{"not pending", orders.ErrPickupNotPending, http.StatusBadRequest},
		{"exceeds", orders.ErrPickupExceeds, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeFinder{}, &fakeReceiver{}, &fakePickups{err: tc.err}, &fakeWeights{})
			rec := post(t, router, map[string]any{
				"id":    "42",
				"type":  logistics.ShipmentPickup,
				"items": []map[string]any{{"name": "case", "quantity": 1000}},
			})
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestRejectsMultipleItems(t *testing.T) {
	router := newTestRouter(&fakeFinder{}, &fakeReceiver{}, &fakePickups{}, &fakeWeights{})

	rec := post(t, router, map[string]any{
		"id":   "1",
		"type": logistics.ShipmentDelivery,
		"items": []map[string]any{
			{"name": "plastic", "quantity": 100},
			{"name": "aluminium", "quantity": 100},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectsUnknownType(t *testing.T) {
	router := newTestRouter(&fakeFinder{}, &fakeReceiver{}, &fakePickups{}, &fakeWeights{})

	rec := post(t, router, map[string]any{
		"id":    "1",
		"type":  "TELEPORT",
		"items": []map[string]any{{"name": "plastic", "quantity": 100}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
