// Package backend defines the contracts between the introspection runtime and
// the physical models it drives: energy per access, thermal field, failure
// rates and sensor perturbation. Implementations are looked up by name in a
// Factory so that the runtime never depends on their physics.
package backend

import "uIntrospector/src/introspection/grid"

// Counters are the accesses a module performed during one interval.
type Counters struct {
	Read     float64
	Write    float64
	Search   float64
	ReadTag  float64
	WriteTag float64
}

// Accesses returns the total number of accesses of any kind.
func (c Counters) Accesses() float64 {
	return c.Read + c.Write + c.Search + c.ReadTag + c.WriteTag
}

// Scale multiplies every counter by factor.
func (c Counters) Scale(factor float64) Counters {
	return Counters{
		Read:     c.Read * factor,
		Write:    c.Write * factor,
		Search:   c.Search * factor,
		ReadTag:  c.ReadTag * factor,
		WriteTag: c.WriteTag * factor,
	}
}

// UnitEnergy holds joules per access of each kind. Baseline is charged on
// every access; Leakage is joules per clock cycle.
type UnitEnergy struct {
	Baseline float64
	Search   float64
	Read     float64
	Write    float64
	ReadTag  float64
	WriteTag float64
	Leakage  float64
}

// Power is a per-component power breakdown in watts.
type Power struct {
	Baseline float64
	Search   float64
	Read     float64
	Write    float64
	ReadTag  float64
	WriteTag float64
	Leakage  float64
}

// Dynamic returns the switching part of the power.
func (p Power) Dynamic() float64 {
	return p.Baseline + p.Search + p.Read + p.Write + p.ReadTag + p.WriteTag
}

// Total returns dynamic plus leakage power.
func (p Power) Total() float64 {
	return p.Dynamic() + p.Leakage
}

// Add returns the component-wise sum.
func (p Power) Add(other Power) Power {
	return Power{
		Baseline: p.Baseline + other.Baseline,
		Search:   p.Search + other.Search,
		Read:     p.Read + other.Read,
		Write:    p.Write + other.Write,
		ReadTag:  p.ReadTag + other.ReadTag,
		WriteTag: p.WriteTag + other.WriteTag,
		Leakage:  p.Leakage + other.Leakage,
	}
}

// EnergyModel estimates energy per access and area for one microarchitectural
// structure.
type EnergyModel interface {
	// UnitEnergy returns per-access energies; isTDP selects the peak figures.
	UnitEnergy(isTDP bool) UnitEnergy
	// Ports returns the accesses per cycle the structure sustains at peak.
	Ports() Counters
	// Area returns the structure area in square metres.
	Area() float64
	// UpdateEnergy re-parameterises the model, e.g. "temperature" for
	// leakage feedback.
	UpdateEnergy(name string, value float64) error
}

// ThermalModel computes a temperature field for one package.
type ThermalModel interface {
	PutPartitionPower(partition string, power float64) error
	ComputeTemperature(time, period float64) error
	ThermalMap() grid.Grid
}

// ReliabilityModel returns a mean time to failure in hours.
type ReliabilityModel interface {
	MTTF(temperature, frequency, voltage, activity float64, active bool) float64
}

// Reading is a perturbed sensor observation.
type Reading struct {
	Time   float64
	Period float64
	Value  float64
}

// SensorModel perturbs a raw value with noise and/or delay. ok is false when
// the sensor produced no reading for this sample.
type SensorModel interface {
	Read(time, period, raw float64) (reading Reading, ok bool)
}

// Floorplan places one partition on the package grid.
type Floorplan struct {
	Partition string
	Footprint grid.Rect
}

// ThermalSpec is what a thermal model is constructed from.
type ThermalSpec struct {
	Package   string
	Params    Params
	Floorplan []Floorplan
}
