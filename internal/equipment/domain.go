// Package equipment stores the fixed recipe and throughput of the case
// machines, synced from the supplier market at simulation start.
package equipment

import "errors"

// Parameters describes the production recipe: raw material units consumed
// per batch, cases produced per batch, and the physical weight of one
// machine (used to convert delivered weight into machine units).
type Parameters struct {
	PlasticRatio      float64
	AluminiumRatio    float64
	ProductionRate    int64
	CaseMachineWeight float64
}

// PlasticPerCase returns plastic units consumed per single case.
func (p Parameters) PlasticPerCase() float64 {
	if p.ProductionRate == 0 {
		return 0
	}
	return p.PlasticRatio / float64(p.ProductionRate)
}

// AluminiumPerCase returns aluminium units consumed per single case.
func (p Parameters) AluminiumPerCase() float64 {
	if p.ProductionRate == 0 {
		return 0
	}
	return p.AluminiumRatio / float64(p.ProductionRate)
}

// ErrNotConfigured indicates the parameters row has not been synced yet.
var ErrNotConfigured = errors.New("equipment: parameters not configured")

// ErrNoMachineWeight indicates no machine purchase has recorded a weight yet.
var ErrNoMachineWeight = errors.New("equipment: machine weight unknown")
