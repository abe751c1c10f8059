// Package thermal provides a lumped RC grid ThermalModel. Each grid cell is a
// thermal node tied to ambient through a resistance and a capacitance; lateral
// conduction between neighbours on a layer is modelled with a conductance
// ratio relaxed over a fixed number of sweeps.
package thermal

import (
	"fmt"
	"math"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/grid"
)

// Name is the factory name of the RC grid model.
const Name = "rc_grid"

// Parameters describes the package grid. Lengths are metres, temperatures
// kelvin, resistance K/W per cell, time constant seconds.
type Parameters struct {
	Cols       int
	Rows       int
	Layers     int
	ChipWidth  float64
	ChipLength float64

	AmbientTemperature float64
	InitialTemperature float64
	CellResistance     float64
	// TimeConstant of zero solves steady state every step.
	TimeConstant float64
	// LateralCoupling is the neighbour conductance relative to the ambient
	// conductance. Zero disables spreading.
	LateralCoupling float64
	Sweeps          int
}

func DefaultParameters() Parameters {
	return Parameters{
		Cols:               8,
		Rows:               8,
		Layers:             1,
		AmbientTemperature: 300,
		CellResistance:     10,
		Sweeps:             32,
	}
}

// ParseParameters reads Parameters from a flat record. chip_width and
// chip_length are required.
func ParseParameters(params backend.Params) (Parameters, error) {
	p := DefaultParameters()
	r := backend.NewParamReader(params)

	p.Cols = r.IntOr("cols", p.Cols)
	p.Rows = r.IntOr("rows", p.Rows)
	p.Layers = r.IntOr("layers", p.Layers)
	p.ChipWidth = r.Float("chip_width")
	p.ChipLength = r.Float("chip_length")
	p.AmbientTemperature = r.FloatOr("ambient_temperature", p.AmbientTemperature)
	p.InitialTemperature = r.FloatOr("temperature", p.AmbientTemperature)
	p.CellResistance = r.FloatOr("thermal_resistance", p.CellResistance)
	p.TimeConstant = r.FloatOr("time_constant", p.TimeConstant)
	p.LateralCoupling = r.FloatOr("lateral_coupling", p.LateralCoupling)
	p.Sweeps = r.IntOr("sweeps", p.Sweeps)
	if err := r.Err(); err != nil {
		return Parameters{}, err
	}
	return p, p.validate()
}

func (p Parameters) validate() error {
	switch {
	case p.Cols < 1 || p.Rows < 1 || p.Layers < 1:
		return fmt.Errorf("%w: grid must have at least one cell", backend.ErrInvalidParameter)
	case p.ChipWidth <= 0 || p.ChipLength <= 0:
		return fmt.Errorf("%w: chip dimensions must be positive", backend.ErrInvalidParameter)
	case p.AmbientTemperature <= 0 || p.InitialTemperature <= 0:
		return fmt.Errorf("%w: temperatures must be positive", backend.ErrInvalidParameter)
	case p.CellResistance <= 0:
		return fmt.Errorf("%w: thermal_resistance must be positive", backend.ErrInvalidParameter)
	case p.TimeConstant < 0 || p.LateralCoupling < 0 || p.Sweeps < 0:
		return fmt.Errorf("%w: time_constant, lateral_coupling and sweeps must not be negative", backend.ErrInvalidParameter)
	}
	return nil
}

// RCGrid is the lumped RC grid model of one package.
type RCGrid struct {
	params      Parameters
	temperature grid.Grid
	footprints  map[string]grid.Rect
	power       map[string]float64
}

// New places the floorplan on the grid. Footprints must fit on an existing
// layer and have a positive area.
func New(params Parameters, floorplan []backend.Floorplan) (*RCGrid, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	cellWidth := params.ChipWidth / float64(params.Cols)
	cellLength := params.ChipLength / float64(params.Rows)
	model := &RCGrid{
		params:      params,
		temperature: grid.New(params.Cols, params.Rows, params.Layers, cellWidth, cellLength, params.InitialTemperature),
		footprints:  make(map[string]grid.Rect, len(floorplan)),
		power:       make(map[string]float64, len(floorplan)),
	}

	for _, entry := range floorplan {
		fp := entry.Footprint
		if fp.Layer < 0 || fp.Layer >= params.Layers {
			return nil, fmt.Errorf("%w: partition %q on layer %d of %d", backend.ErrInvalidParameter, entry.Partition, fp.Layer, params.Layers)
		}
		if fp.Area() <= 0 {
			return nil, fmt.Errorf("%w: partition %q has an empty footprint", backend.ErrInvalidParameter, entry.Partition)
		}
		model.footprints[entry.Partition] = fp
	}
	return model, nil
}

// Register adds the RC grid model to f.
func Register(f *backend.Factory) error {
	return f.RegisterThermal(Name, func(spec backend.ThermalSpec) (backend.ThermalModel, error) {
		p, err := ParseParameters(spec.Params)
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", spec.Package, err)
		}
		return New(p, spec.Floorplan)
	})
}

func (m *RCGrid) PutPartitionPower(partition string, power float64) error {
	if _, ok := m.footprints[partition]; !ok {
		return fmt.Errorf("%w: partition %q is not on the floorplan", backend.ErrInvalidParameter, partition)
	}
	if power < 0 || math.IsNaN(power) {
		return fmt.Errorf("%w: partition %q power %g", backend.ErrInvalidParameter, partition, power)
	}
	m.power[partition] = power
	return nil
}

// ComputeTemperature advances the field by period seconds.
func (m *RCGrid) ComputeTemperature(time, period float64) error {
	if period < 0 {
		return fmt.Errorf("%w: negative period %g at %g", backend.ErrInvalidParameter, period, time)
	}

	steady := m.steadyState(m.cellPower())

	decay := 0.0
	if m.params.TimeConstant > 0 {
		decay = math.Exp(-period / m.params.TimeConstant)
	}
	for idx, target := range steady.Cells {
		current := m.temperature.Cells[idx]
		m.temperature.Cells[idx] = target + (current-target)*decay
	}
	return nil
}

// ThermalMap returns a copy of the current field.
func (m *RCGrid) ThermalMap() grid.Grid {
	return m.temperature.Clone()
}

// cellPower spreads each partition's power over the cells it overlaps,
// proportionally to the overlapped area.
func (m *RCGrid) cellPower() grid.Grid {
	g := m.temperature
	out := grid.New(g.Cols, g.Rows, g.Layers, g.CellWidth, g.CellLength, 0)

	for partition, power := range m.power {
		fp := m.footprints[partition]
		area := fp.Area()
		for row := 0; row < g.Rows; row++ {
			for col := 0; col < g.Cols; col++ {
				c := grid.Cell{Col: col, Row: row, Layer: fp.Layer}
				if overlap := g.CellRect(c).Overlap(fp); overlap > 0 {
					out.Set(c, out.At(c)+power*overlap/area)
				}
			}
		}
	}
	return out
}

// steadyState solves T = Ta + R*(P + G*sum(Tn - T)) per layer with Jacobi
// sweeps, G being the lateral coupling in units of 1/R.
func (m *RCGrid) steadyState(power grid.Grid) grid.Grid {
	p := m.params
	field := power.Clone()
	for idx, watts := range power.Cells {
		field.Cells[idx] = p.AmbientTemperature + watts*p.CellResistance
	}
	if p.LateralCoupling == 0 {
		return field
	}

	next := field.Clone()
	for sweep := 0; sweep < p.Sweeps; sweep++ {
		for layer := 0; layer < field.Layers; layer++ {
			for row := 0; row < field.Rows; row++ {
				for col := 0; col < field.Cols; col++ {
					c := grid.Cell{Col: col, Row: row, Layer: layer}
					sum, count := 0.0, 0
					for _, n := range neighbours(c) {
						if field.Valid(n) {
							sum += field.At(n)
							count++
						}
					}
					g := p.LateralCoupling
					source := p.AmbientTemperature + power.At(c)*p.CellResistance
					next.Set(c, (source+g*sum)/(1+g*float64(count)))
				}
			}
		}
		field, next = next, field
	}
	return field
}

func neighbours(c grid.Cell) [4]grid.Cell {
	return [4]grid.Cell{
		{Col: c.Col - 1, Row: c.Row, Layer: c.Layer},
		{Col: c.Col + 1, Row: c.Row, Layer: c.Layer},
		{Col: c.Col, Row: c.Row - 1, Layer: c.Layer},
		{Col: c.Col, Row: c.Row + 1, Layer: c.Layer},
	}
}
