package energy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uIntrospector/src/introspection/backend"
)

func newTable(t *testing.T, extra backend.Params) *Table {
	t.Helper()
	params := backend.Params{
		"clock_frequency": "1e9",
		"read_energy":     "2e-12",
		"write_energy":    "3e-12",
		"leakage_power":   "0.5",
		"area":            "1e-6",
	}
	for key, value := range extra {
		params[key] = value
	}
	p, err := ParseParameters(params)
	require.NoError(t, err)
	model, err := New(p)
	require.NoError(t, err)
	return model
}

func TestParseParametersRequiresEnergies(t *testing.T) {
	_, err := ParseParameters(backend.Params{"clock_frequency": "1e9", "read_energy": "1e-12"})
	assert.ErrorIs(t, err, backend.ErrMissingParameter)

	_, err = ParseParameters(backend.Params{"clock_frequency": "0", "read_energy": "1", "write_energy": "1"})
	assert.ErrorIs(t, err, backend.ErrInvalidParameter)
}

func TestUnitEnergyScalesWithVoltage(t *testing.T) {
	model := newTable(t, backend.Params{"voltage": "1.0", "reference_voltage": "1.0"})
	nominal := model.UnitEnergy(false)
	assert.InDelta(t, 2e-12, nominal.Read, 1e-24)
	assert.InDelta(t, 0.5e-9, nominal.Leakage, 1e-21)

	require.NoError(t, model.UpdateEnergy("voltage", 0.5))
	scaled := model.UnitEnergy(false)
	assert.InDelta(t, 0.5e-12, scaled.Read, 1e-24)
	assert.InDelta(t, 0.25e-9, scaled.Leakage, 1e-21)
}

func TestLeakageFollowsTemperature(t *testing.T) {
	model := newTable(t, backend.Params{"leakage_temperature_coefficient": "0.02"})
	cold := model.UnitEnergy(false).Leakage

	require.NoError(t, model.UpdateEnergy("temperature", 350))
	hot := model.UnitEnergy(false).Leakage
	assert.InDelta(t, cold*math.Exp(1), hot, 1e-18)
}

func TestPeakScaleOnlyAffectsTDP(t *testing.T) {
	model := newTable(t, backend.Params{"peak_scale": "2", "read_ports": "2"})

	assert.InDelta(t, 4e-12, model.UnitEnergy(true).Read, 1e-24)
	assert.InDelta(t, 2e-12, model.UnitEnergy(false).Read, 1e-24)
	assert.Equal(t, backend.Counters{Read: 2, Write: 1}, model.Ports())
	assert.Equal(t, 1e-6, model.Area())
}

func TestUpdateEnergyRejectsUnknownAndInvalid(t *testing.T) {
	model := newTable(t, nil)

	assert.ErrorIs(t, model.UpdateEnergy("capacitance", 1), backend.ErrInvalidParameter)
	assert.ErrorIs(t, model.UpdateEnergy("temperature", -1), backend.ErrInvalidParameter)
	assert.Equal(t, 300.0, model.Parameters().Temperature)
}

func TestRegisterBuildsThroughFactory(t *testing.T) {
	f := backend.NewFactory()
	require.NoError(t, Register(f))

	model, err := f.NewEnergy(Name, backend.Params{
		"clock_frequency": "2e9", "read_energy": "1e-12", "write_energy": "1e-12",
	})
	require.NoError(t, err)
	assert.IsType(t, &Table{}, model)
}
