package thermal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/grid"
)

func twoCoreFloorplan() []backend.Floorplan {
	return []backend.Floorplan{
		{Partition: "core0", Footprint: grid.Rect{X: 0, Y: 0, Width: 2e-3, Length: 2e-3}},
		{Partition: "core1", Footprint: grid.Rect{X: 2e-3, Y: 0, Width: 2e-3, Length: 2e-3}},
	}
}

func newGrid(t *testing.T, extra backend.Params) *RCGrid {
	t.Helper()
	params := backend.Params{
		"cols": "4", "rows": "2", "chip_width": "4e-3", "chip_length": "2e-3",
		"ambient_temperature": "300", "thermal_resistance": "10",
	}
	for key, value := range extra {
		params[key] = value
	}
	p, err := ParseParameters(params)
	require.NoError(t, err)
	model, err := New(p, twoCoreFloorplan())
	require.NoError(t, err)
	return model
}

func TestSteadyStateHeatsOnlyPoweredFootprint(t *testing.T) {
	model := newGrid(t, nil)

	require.NoError(t, model.PutPartitionPower("core0", 4))
	require.NoError(t, model.PutPartitionPower("core1", 0))
	require.NoError(t, model.ComputeTemperature(1e-3, 1e-3))

	field := model.ThermalMap()
	// 4 W over the four cells of core0, 1 W per cell at 10 K/W.
	assert.InDelta(t, 310, field.At(grid.Cell{Col: 0, Row: 0}), 1e-9)
	assert.InDelta(t, 310, field.At(grid.Cell{Col: 1, Row: 1}), 1e-9)
	assert.InDelta(t, 300, field.At(grid.Cell{Col: 3, Row: 0}), 1e-9)
}

func TestZeroPowerRelaxesToAmbient(t *testing.T) {
	model := newGrid(t, backend.Params{"temperature": "350", "time_constant": "1e-3"})

	require.NoError(t, model.ComputeTemperature(1e-3, 1e-3))
	after := model.ThermalMap().Max()
	assert.InDelta(t, 300+50*math.Exp(-1), after, 1e-9)

	for step := 2; step < 200; step++ {
		require.NoError(t, model.ComputeTemperature(float64(step)*1e-3, 1e-3))
	}
	assert.InDelta(t, 300, model.ThermalMap().Max(), 1e-9)
}

func TestLateralCouplingSpreadsHeat(t *testing.T) {
	model := newGrid(t, backend.Params{"lateral_coupling": "0.5"})

	require.NoError(t, model.PutPartitionPower("core0", 4))
	require.NoError(t, model.ComputeTemperature(1e-3, 1e-3))

	field := model.ThermalMap()
	hot := field.At(grid.Cell{Col: 1, Row: 0})
	cold := field.At(grid.Cell{Col: 2, Row: 0})
	assert.Greater(t, cold, 300.0)
	assert.Greater(t, hot, cold)
	assert.Less(t, hot, 310.0)
}

func TestPutPartitionPowerValidates(t *testing.T) {
	model := newGrid(t, nil)

	assert.ErrorIs(t, model.PutPartitionPower("gpu", 1), backend.ErrInvalidParameter)
	assert.ErrorIs(t, model.PutPartitionPower("core0", -1), backend.ErrInvalidParameter)
	assert.ErrorIs(t, model.ComputeTemperature(1, -1), backend.ErrInvalidParameter)
}

func TestThermalMapIsACopy(t *testing.T) {
	model := newGrid(t, nil)
	field := model.ThermalMap()
	field.Set(grid.Cell{}, 1000)
	assert.Equal(t, 300.0, model.ThermalMap().At(grid.Cell{}))
}

func TestRegisterRejectsFootprintOffGrid(t *testing.T) {
	f := backend.NewFactory()
	require.NoError(t, Register(f))

	_, err := f.NewThermal(Name, backend.ThermalSpec{
		Package: "chip",
		Params:  backend.Params{"chip_width": "1e-3", "chip_length": "1e-3"},
		Floorplan: []backend.Floorplan{
			{Partition: "core0", Footprint: grid.Rect{Width: 1e-3, Length: 1e-3, Layer: 2}},
		},
	})
	assert.ErrorIs(t, err, backend.ErrInvalidParameter)

	_, err = f.NewThermal(Name, backend.ThermalSpec{Package: "chip", Params: backend.Params{}})
	assert.ErrorIs(t, err, backend.ErrMissingParameter)
}
