package stock

import "errors"

// ItemType enumerates the tracked stock types.
type ItemType string

const (
	// TypePlastic is raw plastic, measured in kg.
	TypePlastic ItemType = "plastic"
	// TypeAluminium is raw aluminium, measured in kg.
	TypeAluminium ItemType = "aluminium"
	// TypeMachine is a case production machine.
	TypeMachine ItemType = "machine"
	// TypeCase is a finished phone case.
	TypeCase ItemType = "case"
)

// Item models one stock row. OrderedUnits counts units purchased from a
// supplier but not yet physically received.
type Item struct {
	Type         ItemType
	TotalUnits   int64
	OrderedUnits int64
}

// CaseAvailability is the reservation-aware view over case stock: available
// = total - units promised to open case orders.
type CaseAvailability struct {
	TotalUnits     int64
	ReservedUnits  int64
	AvailableUnits int64
}

// MaterialCounts summarises on-hand plus in-transit units per procurement
// target, the quantities the decision engine reasons about.
type MaterialCounts struct {
	Plastic   int64
	Aluminium int64
	Machine   int64
}

var (
	// ErrInsufficientStock is returned when a decrement would drive a
	// counter negative.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive unit count.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrUnknownType indicates a stock type outside the fixed enum.
	ErrUnknownType = errors.New("stock: unknown stock type")
)

// ValidType reports whether t is one of the tracked stock types.
func ValidType(t ItemType) bool {
	switch t {
	case TypePlastic, TypeAluminium, TypeMachine, TypeCase:
		return true
	}
	return false
}
