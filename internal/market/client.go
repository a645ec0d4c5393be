package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/case-supplier/case-supplier/internal/equipment"
)

const (
	cacheKeyMaterials = "market:raw_materials"
	cacheKeyMachines  = "market:machines"

	// NoActiveSimulation is the sentinel date the market reports when no
	// simulation is running.
	NoActiveSimulation = "0000-00-00"
)

// EquipmentWriter persists the production recipe synced from the market.
type EquipmentWriter interface {
	Replace(ctx context.Context, p equipment.Parameters) error
}

// Client talks to the supplier market API. Quote reads are cached in Redis
// with a short TTL since the engine and orchestrator may ask several times
// per tick.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	quoteTTL   time.Duration
	logger     *slog.Logger
}

// NewClient constructs a market client. cache may be nil; quotes are then
// fetched on every call.
func NewClient(baseURL string, timeout time.Duration, cache *redis.Client, quoteTTL time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		quoteTTL:   quoteTTL,
		logger:     logger,
	}
}

type materialWire struct {
	RawMaterialName   string      `json:"rawMaterialName"`
	PricePerKg        json.Number `json:"pricePerKg"`
	QuantityAvailable int64       `json:"quantityAvailable"`
}

// RawMaterials lists the current raw material quotes.
func (c *Client) RawMaterials(ctx context.Context) ([]MaterialQuote, error) {
	var wire []materialWire
	if err := c.getCached(ctx, cacheKeyMaterials, "/raw-materials", &wire); err != nil {
		return nil, err
	}
	quotes := make([]MaterialQuote, 0, len(wire))
	for _, m := range wire {
		quotes = append(quotes, MaterialQuote{
			Name:              m.RawMaterialName,
			PricePerKg:        numberToFloat(m.PricePerKg),
			QuantityAvailable: m.QuantityAvailable,
		})
	}
	return quotes, nil
}

// RawMaterial returns the quote for one material by name.
func (c *Client) RawMaterial(ctx context.Context, name string) (MaterialQuote, error) {
	quotes, err := c.RawMaterials(ctx)
	if err != nil {
		return MaterialQuote{}, err
	}
	for _, q := range quotes {
		if strings.EqualFold(q.Name, name) {
			return q, nil
		}
	}
	return MaterialQuote{}, fmt.Errorf("%w: material %q", ErrNotListed, name)
}

type machineWire struct {
	MachineName    string      `json:"machineName"`
	Quantity       int64       `json:"quantity"`
	Price          json.Number `json:"price"`
	Weight         json.Number `json:"weight"`
	MaterialRatio  string      `json:"materialRatio"`
	ProductionRate int64       `json:"productionRate"`
}

// Machines lists the machines currently for sale.
func (c *Client) Machines(ctx context.Context) ([]MachineQuote, error) {
	var wire struct {
		Machines []machineWire `json:"machines"`
	}
	if err := c.getCached(ctx, cacheKeyMachines, "/machines", &wire); err != nil {
		return nil, err
	}
	quotes := make([]MachineQuote, 0, len(wire.Machines))
	for _, m := range wire.Machines {
		quotes = append(quotes, MachineQuote{
			Name:           m.MachineName,
			Quantity:       m.Quantity,
			Price:          numberToFloat(m.Price),
			Weight:         numberToFloat(m.Weight),
			MaterialRatio:  m.MaterialRatio,
			ProductionRate: m.ProductionRate,
		})
	}
	return quotes, nil
}

// CaseMachine returns the quote for the case machine model.
func (c *Client) CaseMachine(ctx context.Context) (MachineQuote, error) {
	quotes, err := c.Machines(ctx)
	if err != nil {
		return MachineQuote{}, err
	}
	for _, q := range quotes {
		if strings.EqualFold(q.Name, CaseMachineName) {
			return q, nil
		}
	}
	return MachineQuote{}, fmt.Errorf("%w: machine %q", ErrNotListed, CaseMachineName)
}

// PlaceMaterialOrder commits a raw material purchase. This is irreversible:
// the market decrements its availability even before payment clears.
func (c *Client) PlaceMaterialOrder(ctx context.Context, name string, weightQuantity int64) (MaterialOrder, error) {
	body := map[string]any{"materialName": name, "weightQuantity": weightQuantity}
	var out struct {
		OrderID        json.Number `json:"orderId"`
		MaterialName   string      `json:"materialName"`
		WeightQuantity int64       `json:"weightQuantity"`
		Price          json.Number `json:"price"`
		BankAccount    string      `json:"bankAccount"`
	}
	if err := c.do(ctx, http.MethodPost, "/raw-materials", body, &out); err != nil {
		return MaterialOrder{}, err
	}
	return MaterialOrder{
		Reference:      out.OrderID.String(),
		MaterialName:   out.MaterialName,
		WeightQuantity: out.WeightQuantity,
		Price:          numberToFloat(out.Price),
		BankAccount:    out.BankAccount,
	}, nil
}

// PlaceMachineOrder commits a case machine purchase.
func (c *Client) PlaceMachineOrder(ctx context.Context, quantity int64) (MachineOrder, error) {
	body := map[string]any{"machineName": CaseMachineName, "quantity": quantity}
	var out struct {
		OrderID     json.Number `json:"orderId"`
		Quantity    int64       `json:"quantity"`
		TotalPrice  json.Number `json:"totalPrice"`
		UnitWeight  json.Number `json:"unitWeight"`
		TotalWeight json.Number `json:"totalWeight"`
		BankAccount string      `json:"bankAccount"`
	}
	if err := c.do(ctx, http.MethodPost, "/machines", body, &out); err != nil {
		return MachineOrder{}, err
	}
	return MachineOrder{
		Reference:   out.OrderID.String(),
		Quantity:    out.Quantity,
		TotalPrice:  numberToFloat(out.TotalPrice),
		UnitWeight:  numberToFloat(out.UnitWeight),
		TotalWeight: numberToFloat(out.TotalWeight),
		BankAccount: out.BankAccount,
	}, nil
}

// SimulationDate asks the market for the active simulation date. It returns
// NoActiveSimulation when no simulation is running or the market is down,
// mirroring how resume-on-boot treats both cases.
func (c *Client) SimulationDate(ctx context.Context) string {
	var out struct {
		SimulationDate string `json:"simulationDate"`
		Error          string `json:"error"`
	}
	if err := c.do(ctx, http.MethodGet, "/current-simulation-time", nil, &out); err != nil {
		return NoActiveSimulation
	}
	if out.Error != "" || out.SimulationDate == "" {
		return NoActiveSimulation
	}
	return out.SimulationDate
}

// SyncEquipment reads the case machine listing and persists its recipe as
// the equipment parameters.
func (c *Client) SyncEquipment(ctx context.Context, equip EquipmentWriter) error {
	quote, err := c.CaseMachine(ctx)
	if err != nil {
		return err
	}
	plastic, aluminium, err := ParseRatio(quote.MaterialRatio)
	if err != nil {
		return err
	}
	return equip.Replace(ctx, equipment.Parameters{
		PlasticRatio:   plastic,
		AluminiumRatio: aluminium,
		ProductionRate: quote.ProductionRate,
	})
}

func (c *Client) getCached(ctx context.Context, key, path string, out any) error {
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key).Bytes(); err == nil {
			if json.Unmarshal(data, out) == nil {
				return nil
			}
		}
	}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return err
	}
	if c.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := c.cache.Set(ctx, key, data, c.quoteTTL).Err(); err != nil {
				c.logger.Warn("cache market quote", slog.String("key", key), slog.Any("error", err))
			}
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("market: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("market: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMarketUnavailable, method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s returned %d", ErrMarketUnavailable, method, path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMarketUnavailable, path, err)
	}
	return nil
}

func numberToFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}
