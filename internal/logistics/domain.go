package logistics

import "errors"

// Shipment kinds reported on the inbound webhook.
const (
	ShipmentDelivery = "DELIVERY"
	ShipmentPickup   = "PICKUP"
)

// PreviewReference is the placeholder order reference used when asking for
// a cost estimate before any real order exists.
const PreviewReference = "preview-order"

// PickupRequest describes a collection the logistics provider accepted.
type PickupRequest struct {
	ID               string
	Cost             float64
	PaymentReference string
	AccountNumber    string
}

// Item is one line of cargo on a pickup or delivery.
type Item struct {
	Name     string
	Quantity int64
	// MeasurementType distinguishes unit counts from weights; machines
	// travel by weight in kilograms.
	MeasurementType string
}

var (
	ErrLogisticsUnavailable = errors.New("logistics: provider unavailable")
	ErrPickupRejected       = errors.New("logistics: pickup request rejected")
)
