package logistics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestPickup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/pickup-request", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "1234", body["originalExternalOrderId"])
		require.Equal(t, "thoh", body["originCompany"])
		require.Equal(t, "case-supplier", body["destinationCompany"])

		items, ok := body["items"].([]any)
		require.True(t, ok)
		require.Len(t, items, 1)
		line := items[0].(map[string]any)
		require.Equal(t, "plastic", line["itemName"])
		require.EqualValues(t, 1000, line["quantity"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"pickupRequestId":    77,
			"cost":               650.5,
			"paymentReferenceId": "payref-77",
			"accountNumber":      "logi-acct",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "case-supplier", time.Second)
	pickup, err := client.RequestPickup(context.Background(), "1234", "thoh", []Item{
		{Name: "plastic", Quantity: 1000},
	})
	require.NoError(t, err)
	require.Equal(t, "77", pickup.ID)
	require.Equal(t, 650.5, pickup.Cost)
	require.Equal(t, "payref-77", pickup.PaymentReference)
	require.Equal(t, "logi-acct", pickup.AccountNumber)
}

func TestEstimatePickupUsesPreviewReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, PreviewReference, body["originalExternalOrderId"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"pickupRequestId":    1,
			"cost":               420,
			"paymentReferenceId": "payref-1",
			"accountNumber":      "logi-acct",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "case-supplier", time.Second)
	cost, err := client.EstimatePickup(context.Background(), "thoh", []Item{
		{Name: "case_machine", Quantity: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 420.0, cost)
}

func TestRequestPickupErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "case-supplier", time.Second)
	_, err := client.RequestPickup(context.Background(), "1", "thoh", nil)
	require.ErrorIs(t, err, ErrPickupRejected)

	down := NewClient("http://127.0.0.1:1", "case-supplier", 100*time.Millisecond)
	_, err = down.RequestPickup(context.Background(), "1", "thoh", nil)
	require.ErrorIs(t, err, ErrLogisticsUnavailable)
}
