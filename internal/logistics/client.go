package logistics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the bulk logistics provider. All goods entering the
// factory travel through it, so procurement cannot complete without a
// pickup request being accepted and paid.
type Client struct {
	baseURL     string
	companyName string
	httpClient  *http.Client
}

func NewClient(baseURL, companyName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		companyName: companyName,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type pickupItemWire struct {
	ItemName string `json:"itemName"`
	Quantity int64  `json:"quantity"`
}

type pickupResponseWire struct {
	PickupRequestID    json.Number `json:"pickupRequestId"`
	Cost               json.Number `json:"cost"`
	PaymentReferenceID string      `json:"paymentReferenceId"`
	AccountNumber      string      `json:"accountNumber"`
}

// RequestPickup asks the provider to collect goods from originCompany. The
// returned payment reference must be settled with the bank before the
// shipment moves.
func (c *Client) RequestPickup(ctx context.Context, orderReference, originCompany string, items []Item) (PickupRequest, error) {
	wireItems := make([]pickupItemWire, 0, len(items))
	for _, it := range items {
		wireItems = append(wireItems, pickupItemWire{ItemName: it.Name, Quantity: it.Quantity})
	}
	body := map[string]any{
		"originalExternalOrderId": orderReference,
		"originCompany":           originCompany,
		"destinationCompany":      c.companyName,
		"items":                   wireItems,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return PickupRequest{}, fmt.Errorf("logistics: encode pickup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pickup-request", bytes.NewReader(data))
	if err != nil {
		return PickupRequest{}, fmt.Errorf("logistics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PickupRequest{}, fmt.Errorf("%w: %v", ErrLogisticsUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return PickupRequest{}, fmt.Errorf("%w: provider returned %d", ErrLogisticsUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return PickupRequest{}, fmt.Errorf("%w: provider returned %d", ErrPickupRejected, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var wire pickupResponseWire
	if err := dec.Decode(&wire); err != nil {
		return PickupRequest{}, fmt.Errorf("%w: decode response: %v", ErrLogisticsUnavailable, err)
	}

	cost, _ := wire.Cost.Float64()
	return PickupRequest{
		ID:               wire.PickupRequestID.String(),
		Cost:             cost,
		PaymentReference: wire.PaymentReferenceID,
		AccountNumber:    wire.AccountNumber,
	}, nil
}

// EstimatePickup returns the shipping cost for a hypothetical load by
// submitting a pickup request under the preview reference. The provider
// never dispatches preview orders.
func (c *Client) EstimatePickup(ctx context.Context, originCompany string, items []Item) (float64, error) {
	preview, err := c.RequestPickup(ctx, PreviewReference, originCompany, items)
	if err != nil {
		return 0, err
	}
	return preview.Cost, nil
}
