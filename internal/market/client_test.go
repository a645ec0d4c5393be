package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/case-supplier/case-supplier/internal/equipment"
)

func TestRawMaterialsUsesCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/raw-materials", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"rawMaterialName": "plastic", "pricePerKg": 45.5, "quantityAvailable": 10000},
			{"rawMaterialName": "aluminium", "pricePerKg": 85, "quantityAvailable": 8000},
		})
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	client := NewClient(srv.URL, time.Second, cache, 30*time.Second, slog.Default())
	ctx := context.Background()

	first, err := client.RawMaterials(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := client.RawMaterials(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int64(1), hits.Load())

	mr.FastForward(31 * time.Second)
	_, err = client.RawMaterials(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), hits.Load())
}

func TestRawMaterialNotListed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"rawMaterialName": "plastic", "pricePerKg": 45, "quantityAvailable": 100},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil, 0, slog.Default())
	_, err := client.RawMaterial(context.Background(), "titanium")
	require.ErrorIs(t, err, ErrNotListed)
}

func TestPlaceMachineOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/machines", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, CaseMachineName, body["machineName"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"orderId":     4711,
			"quantity":    2,
			"totalPrice":  17000,
			"unitWeight":  2000,
			"totalWeight": 4000,
			"bankAccount": "market-acct",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil, 0, slog.Default())
	order, err := client.PlaceMachineOrder(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "4711", order.Reference)
	require.Equal(t, int64(2), order.Quantity)
	require.Equal(t, 17000.0, order.TotalPrice)
	require.Equal(t, 2000.0, order.UnitWeight)
	require.Equal(t, "market-acct", order.BankAccount)
}

func TestSimulationDateFallsBackWhenDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 100*time.Millisecond, nil, 0, slog.Default())
	require.Equal(t, NoActiveSimulation, client.SimulationDate(context.Background()))
}

func TestSimulationDateActive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/current-simulation-time"))
		_ = json.NewEncoder(w).Encode(map[string]string{"simulationDate": "2050-03-15"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil, 0, slog.Default())
	require.Equal(t, "2050-03-15", client.SimulationDate(context.Background()))
}

type capturingEquipWriter struct {
	got equipment.Parameters
}

func (c *capturingEquipWriter) Replace(_ context.Context, p equipment.Parameters) error {
	c.got = p
	return nil
}

func TestSyncEquipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"machines": []map[string]any{{
				"machineName":    CaseMachineName,
				"quantity":       5,
				"price":          8500,
				"weight":         2000,
				"materialRatio":  "4:7",
				"productionRate": 200,
			}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, nil, 0, slog.Default())
	writer := &capturingEquipWriter{}
	require.NoError(t, client.SyncEquipment(context.Background(), writer))
	require.Equal(t, 4.0, writer.got.PlasticRatio)
	require.Equal(t, 7.0, writer.got.AluminiumRatio)
	require.Equal(t, int64(200), writer.got.ProductionRate)
}

func TestParseRatio(t *testing.T) {
	p, a, err := ParseRatio("4:7")
	require.NoError(t, err)
	require.Equal(t, 4.0, p)
	require.Equal(t, 7.0, a)

	_, _, err = ParseRatio("bogus")
	require.Error(t, err)
}
