// Package energy provides a table-driven EnergyModel: per-access energies are
// read from the configuration and scaled with supply voltage, while leakage
// follows an exponential temperature law around a reference point.
package energy

import (
	"fmt"
	"math"

	"uIntrospector/src/introspection/backend"
)

// Name is the factory name of the table model.
const Name = "table"

// Parameters captures the technology knobs of one structure. Energies are
// joules per access at the reference voltage, power in watts, area in m^2.
type Parameters struct {
	ClockFrequency float64
	Voltage        float64
	Temperature    float64

	ReferenceVoltage     float64
	ReferenceTemperature float64
	// LeakageCoefficient is the relative leakage growth per kelvin.
	LeakageCoefficient float64

	Energy       backend.UnitEnergy
	LeakagePower float64
	PeakScale    float64
	Area         float64
	Ports        backend.Counters
}

// DefaultParameters returns a structure with a single read and write port at
// 1 V and 300 K. Energies and clock frequency are left for the configuration.
func DefaultParameters() Parameters {
	return Parameters{
		Voltage:              1.0,
		Temperature:          300,
		ReferenceVoltage:     1.0,
		ReferenceTemperature: 300,
		PeakScale:            1.0,
		Ports:                backend.Counters{Read: 1, Write: 1},
	}
}

// ParseParameters reads Parameters from a flat record. read_energy,
// write_energy and clock_frequency are required.
func ParseParameters(params backend.Params) (Parameters, error) {
	p := DefaultParameters()
	r := backend.NewParamReader(params)

	p.ClockFrequency = r.Float("clock_frequency")
	p.Voltage = r.FloatOr("voltage", p.Voltage)
	p.Temperature = r.FloatOr("temperature", p.Temperature)
	p.ReferenceVoltage = r.FloatOr("reference_voltage", p.Voltage)
	p.ReferenceTemperature = r.FloatOr("reference_temperature", p.ReferenceTemperature)
	p.LeakageCoefficient = r.FloatOr("leakage_temperature_coefficient", 0)

	p.Energy = backend.UnitEnergy{
		Baseline: r.FloatOr("baseline_energy", 0),
		Search:   r.FloatOr("search_energy", 0),
		Read:     r.Float("read_energy"),
		Write:    r.Float("write_energy"),
		ReadTag:  r.FloatOr("read_tag_energy", 0),
		WriteTag: r.FloatOr("write_tag_energy", 0),
	}
	p.LeakagePower = r.FloatOr("leakage_power", 0)
	p.PeakScale = r.FloatOr("peak_scale", p.PeakScale)
	p.Area = r.FloatOr("area", 0)
	p.Ports = backend.Counters{
		Read:     float64(r.IntOr("read_ports", int(p.Ports.Read))),
		Write:    float64(r.IntOr("write_ports", int(p.Ports.Write))),
		Search:   float64(r.IntOr("search_ports", 0)),
		ReadTag:  float64(r.IntOr("read_tag_ports", 0)),
		WriteTag: float64(r.IntOr("write_tag_ports", 0)),
	}
	if err := r.Err(); err != nil {
		return Parameters{}, err
	}
	return p, p.validate()
}

func (p Parameters) validate() error {
	switch {
	case p.ClockFrequency <= 0:
		return fmt.Errorf("%w: clock_frequency must be positive", backend.ErrInvalidParameter)
	case p.Voltage <= 0 || p.ReferenceVoltage <= 0:
		return fmt.Errorf("%w: voltages must be positive", backend.ErrInvalidParameter)
	case p.Temperature <= 0 || p.ReferenceTemperature <= 0:
		return fmt.Errorf("%w: temperatures must be positive", backend.ErrInvalidParameter)
	case p.LeakagePower < 0 || p.Area < 0 || p.PeakScale <= 0:
		return fmt.Errorf("%w: leakage_power, area and peak_scale out of range", backend.ErrInvalidParameter)
	}
	return nil
}

// Table is the table-driven EnergyModel.
type Table struct {
	params Parameters
}

func New(params Parameters) (*Table, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Table{params: params}, nil
}

// Register adds the table model to f.
func Register(f *backend.Factory) error {
	return f.RegisterEnergy(Name, func(params backend.Params) (backend.EnergyModel, error) {
		p, err := ParseParameters(params)
		if err != nil {
			return nil, err
		}
		return New(p)
	})
}

func (t *Table) Parameters() Parameters {
	return t.params
}

func (t *Table) UnitEnergy(isTDP bool) backend.UnitEnergy {
	p := t.params
	dynamic := (p.Voltage / p.ReferenceVoltage) * (p.Voltage / p.ReferenceVoltage)
	if isTDP {
		dynamic *= p.PeakScale
	}

	return backend.UnitEnergy{
		Baseline: p.Energy.Baseline * dynamic,
		Search:   p.Energy.Search * dynamic,
		Read:     p.Energy.Read * dynamic,
		Write:    p.Energy.Write * dynamic,
		ReadTag:  p.Energy.ReadTag * dynamic,
		WriteTag: p.Energy.WriteTag * dynamic,
		Leakage:  t.leakagePower() / p.ClockFrequency,
	}
}

// leakagePower is linear in voltage and exponential in the distance to the
// reference temperature.
func (t *Table) leakagePower() float64 {
	p := t.params
	thermal := math.Exp(p.LeakageCoefficient * (p.Temperature - p.ReferenceTemperature))
	return p.LeakagePower * (p.Voltage / p.ReferenceVoltage) * thermal
}

func (t *Table) Ports() backend.Counters {
	return t.params.Ports
}

func (t *Table) Area() float64 {
	return t.params.Area
}

// UpdateEnergy accepts "temperature", "voltage" and "clock_frequency".
func (t *Table) UpdateEnergy(name string, value float64) error {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%g", backend.ErrInvalidParameter, name, value)
	}

	switch name {
	case "temperature":
		t.params.Temperature = value
	case "voltage":
		t.params.Voltage = value
	case "clock_frequency":
		t.params.ClockFrequency = value
	default:
		return fmt.Errorf("%w: table model has no parameter %q", backend.ErrInvalidParameter, name)
	}
	return nil
}
