// Package procure buys raw materials and machines from the supplier market
// and arranges their collection through bulk logistics.
package procure

import (
	"errors"

	"github.com/case-supplier/case-supplier/internal/stock"
)

// Kind distinguishes the two procurement flows.
type Kind string

const (
	KindMaterial Kind = "material"
	KindMachine  Kind = "machine"
)

// MaterialLotSize is the granularity material purchases are clamped to when
// the market cannot fill the requested quantity.
const MaterialLotSize = 1000

// ExternalOrder is a purchase placed with the supplier market. Reference is
// the market's order id; ShipmentReference is assigned once logistics
// accepts the pickup and is how inbound deliveries are matched back.
type ExternalOrder struct {
	ID                int64
	Reference         string
	TotalCost         float64
	Kind              Kind
	OrderedAt         string
	ShipmentReference string
	Items             []ExternalOrderItem
}

// ExternalOrderItem is one purchased line.
type ExternalOrderItem struct {
	StockType    stock.ItemType
	OrderedUnits int64
	PerUnitCost  float64
}

var (
	ErrNotFound          = errors.New("procure: external order not found")
	ErrInsufficientFunds = errors.New("procure: insufficient funds for purchase")
	ErrPaymentFailed     = errors.New("procure: supplier payment failed")
	ErrNothingToBuy      = errors.New("procure: market has no sellable quantity")
)
