// Package market talks to the supplier marketplace ("thoh"): raw material
// and machine quotes, and the irreversible purchase orders placed against
// them.
package market

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaterialQuote is one raw material listing.
type MaterialQuote struct {
	Name              string
	PricePerKg        float64
	QuantityAvailable int64
}

// MachineQuote is one machine listing, including the production recipe the
// machine ships with.
type MachineQuote struct {
	Name           string
	Quantity       int64
	Price          float64
	Weight         float64
	MaterialRatio  string
	ProductionRate int64
}

// MaterialOrder is the market's confirmation of a raw material purchase.
// Placing it commits the spend and decrements supplier-side availability.
type MaterialOrder struct {
	Reference      string
	MaterialName   string
	WeightQuantity int64
	Price          float64
	BankAccount    string
}

// MachineOrder is the market's confirmation of a machine purchase.
type MachineOrder struct {
	Reference   string
	Quantity    int64
	TotalPrice  float64
	UnitWeight  float64
	TotalWeight float64
	BankAccount string
}

// CaseMachineName is the only machine model this company buys.
const CaseMachineName = "case_machine"

var (
	// ErrMarketUnavailable wraps transport or service failures.
	ErrMarketUnavailable = errors.New("market: unavailable")
	// ErrNotListed indicates the requested item is not on the market.
	ErrNotListed = errors.New("market: item not listed")
)

// ParseRatio splits a plastic:aluminium recipe string such as "4:7".
func ParseRatio(ratio string) (plastic, aluminium float64, err error) {
	parts := strings.Split(ratio, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("market: malformed material ratio %q", ratio)
	}
	plastic, err = strconv.ParseFloat(parts[0], 64)
	if err == nil {
		aluminium, err = strconv.ParseFloat(parts[1], 64)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("market: malformed material ratio %q", ratio)
	}
	return plastic, aluminium, nil
}
