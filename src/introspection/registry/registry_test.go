package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/backend/energy"
	"uIntrospector/src/introspection/backend/reliability"
	"uIntrospector/src/introspection/backend/sensor"
	"uIntrospector/src/introspection/backend/thermal"
	"uIntrospector/src/introspection/grid"
	"uIntrospector/src/misc"
)

type closingThermal struct {
	closed *bool
}

func (c closingThermal) PutPartitionPower(string, float64) error { return nil }
func (c closingThermal) ComputeTemperature(float64, float64) error { return nil }
func (c closingThermal) ThermalMap() grid.Grid                    { return grid.Grid{} }
func (c closingThermal) Close() error {
	*c.closed = true
	return nil
}

func testFactory(t *testing.T) *backend.Factory {
	t.Helper()
	f := backend.NewFactory()
	require.NoError(t, energy.Register(f))
	require.NoError(t, thermal.Register(f))
	require.NoError(t, reliability.Register(f))
	require.NoError(t, sensor.Register(f))
	return f
}

func tableEnergy(area string) misc.BackendConfig {
	return misc.BackendConfig{Model: energy.Name, Params: map[string]string{
		"read_energy": "1e-12", "write_energy": "2e-12", "area": area,
	}}
}

func twoCoreConfig() *misc.Config {
	cfg := misc.DefaultConfig()
	cfg.Technology["clock_frequency"] = "1e9"
	cfg.Technology["temperature"] = "320"
	cfg.Packages = []misc.PackageConfig{{
		Name: "chip",
		// core1 is only linked from its own side.
		Partitions: []string{"core0"},
		Thermal: misc.BackendConfig{Model: thermal.Name, Params: map[string]string{
			"cols": "4", "rows": "2", "chip_width": "4e-3", "chip_length": "2e-3",
		}},
	}}
	cfg.Partitions = []misc.PartitionConfig{
		{Name: "core0", Modules: []string{"core0.alu", "core0.fpu"},
			Footprint: &misc.FootprintConfig{Width: 2e-3, Length: 2e-3}},
		{Name: "core1", Package: "chip", Temperature: 330,
			Footprint: &misc.FootprintConfig{X: 2e-3, Width: 2e-3, Length: 2e-3},
			Reliability: misc.BackendConfig{Model: reliability.Name, Params: map[string]string{"em_mttf": "1e5"}}},
	}
	cfg.Modules = []misc.ModuleConfig{
		{Name: "core0.alu", Energy: tableEnergy("1e-6")},
		{Name: "core0.fpu", Partition: "core0", Energy: tableEnergy("2e-6")},
		{Name: "core1.alu", Partition: "core1", Energy: tableEnergy("3e-6")},
		{Name: "core1.idle", Partition: "core1", Energy: misc.BackendConfig{Model: backend.None}},
	}
	return cfg
}

func TestBuildReconcilesLinksAndRollsUpArea(t *testing.T) {
	r, err := Build(twoCoreConfig(), testFactory(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	chipID, ok := r.PackageID("chip")
	require.True(t, ok)
	chip, _ := r.Package(chipID)

	core0ID, _ := r.PartitionID("core0")
	core1ID, _ := r.PartitionID("core1")
	assert.Equal(t, []PartitionID{core0ID, core1ID}, chip.Partitions)

	core0, _ := r.Partition(core0ID)
	core1, _ := r.Partition(core1ID)
	assert.Equal(t, chipID, core0.Package)
	assert.Len(t, core0.Modules, 2)
	assert.Len(t, core1.Modules, 2)

	aluID, _ := r.ModuleID("core0.alu")
	alu, _ := r.Module(aluID)
	assert.Equal(t, core0ID, alu.Partition)
	assert.Equal(t, 1e9, alu.ClockFrequency)

	assert.InDelta(t, 3e-6, core0.Area, 1e-18)
	assert.InDelta(t, 3e-6, core1.Area, 1e-18)
	assert.InDelta(t, 6e-6, chip.Area, 1e-18)

	idleID, _ := r.ModuleID("core1.idle")
	idle, _ := r.Module(idleID)
	assert.Nil(t, idle.Energy)
	assert.Zero(t, idle.Area)

	assert.NotNil(t, chip.Thermal)
	assert.Nil(t, core0.Reliability)
	assert.NotNil(t, core1.Reliability)
}

func TestBuildPushesInitialTemperatures(t *testing.T) {
	r, err := Build(twoCoreConfig(), testFactory(t), nil)
	require.NoError(t, err)

	core1ID, _ := r.PartitionID("core1")
	core1, _ := r.Partition(core1ID)
	value, ok := core1.Temperature.Pull(0)
	require.True(t, ok)
	assert.Equal(t, 330.0, value)

	aluID, _ := r.ModuleID("core0.alu")
	alu, _ := r.Module(aluID)
	value, ok = alu.Temperature.Pull(0)
	require.True(t, ok)
	assert.Equal(t, 320.0, value)

	chipID, _ := r.PackageID("chip")
	chip, _ := r.Package(chipID)
	value, _ = chip.Temperature.Pull(0)
	assert.Equal(t, 330.0, value)
}

func TestModuleEnergyStartsAtPartitionTemperature(t *testing.T) {
	cfg := twoCoreConfig()
	cfg.Modules = append(cfg.Modules, misc.ModuleConfig{
		Name: "core1.fpu", Partition: "core1", Energy: misc.BackendConfig{Model: energy.Name, Params: map[string]string{
			"read_energy": "1e-12", "write_energy": "2e-12", "temperature": "350",
		}},
	})
	r, err := Build(cfg, testFactory(t), nil)
	require.NoError(t, err)

	temperature := func(name string) float64 {
		id, ok := r.ModuleID(name)
		require.True(t, ok)
		module, _ := r.Module(id)
		table, ok := module.Energy.(*energy.Table)
		require.True(t, ok)
		return table.Parameters().Temperature
	}
	assert.Equal(t, 330.0, temperature("core1.alu"))
	assert.Equal(t, 320.0, temperature("core0.alu"))
	assert.Equal(t, 350.0, temperature("core1.fpu"), "module parameters win")
}

func TestBuildCollectsLinkErrors(t *testing.T) {
	cfg := twoCoreConfig()
	cfg.Partitions = append(cfg.Partitions,
		misc.PartitionConfig{Name: "gpu", Package: "board"},
		misc.PartitionConfig{Name: "orphan"},
	)
	cfg.Modules = append(cfg.Modules,
		misc.ModuleConfig{Name: "core0.lsu", Partition: "core1"},
	)
	cfg.Partitions[0].Modules = append(cfg.Partitions[0].Modules, "core0.lsu", "core0.missing")

	_, err := Build(cfg, testFactory(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingLink)
	assert.ErrorIs(t, err, ErrConflictingLink)

	var configErr *ConfigError
	require.True(t, errors.As(err, &configErr))

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	names := map[string]bool{}
	for _, e := range joined.Unwrap() {
		var ce *ConfigError
		require.True(t, errors.As(e, &ce))
		names[ce.Name] = true
	}
	assert.Equal(t, map[string]bool{"gpu": true, "orphan": true, "core0.lsu": true, "core0": true}, names)
}

func TestBuildRejectsDuplicatesBeforeLinking(t *testing.T) {
	cfg := twoCoreConfig()
	cfg.Modules = append(cfg.Modules, misc.ModuleConfig{Name: "core0.alu", Partition: "core0"})
	cfg.Packages = append(cfg.Packages, misc.PackageConfig{})

	_, err := Build(cfg, testFactory(t), nil)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestBuildValidatesBindings(t *testing.T) {
	cases := map[string]struct {
		mutate func(*misc.Config)
		want   error
	}{
		"temperature below range": {
			mutate: func(c *misc.Config) { c.Partitions[1].Temperature = 290 },
			want:   ErrTemperatureRange,
		},
		"technology temperature above range": {
			mutate: func(c *misc.Config) { c.Technology["temperature"] = "401" },
			want:   ErrTemperatureRange,
		},
		"unknown energy backend": {
			mutate: func(c *misc.Config) { c.Modules[0].Energy.Model = "mcpat" },
			want:   backend.ErrUnknownBackend,
		},
		"missing energy parameter": {
			mutate: func(c *misc.Config) { delete(c.Modules[0].Energy.Params, "read_energy") },
			want:   backend.ErrMissingParameter,
		},
		"footprint required by thermal model": {
			mutate: func(c *misc.Config) { c.Partitions[0].Footprint = nil },
			want:   ErrMissingParameter,
		},
		"sensor on unknown entity": {
			mutate: func(c *misc.Config) {
				c.Sensors = []misc.SensorConfig{{Name: "s", Kind: "module", Instance: "nope", Metric: "power", Model: sensor.IdealName}}
			},
			want: ErrUnresolvedSensor,
		},
		"sensor on non-scalar metric": {
			mutate: func(c *misc.Config) {
				c.Sensors = []misc.SensorConfig{{Name: "s", Kind: "package", Instance: "chip", Metric: "thermal_map", Model: sensor.IdealName}}
			},
			want: ErrUnresolvedSensor,
		},
		"sensor without model": {
			mutate: func(c *misc.Config) {
				c.Sensors = []misc.SensorConfig{{Name: "s", Kind: "partition", Instance: "core0", Metric: "temperature"}}
			},
			want: backend.ErrUnknownBackend,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := twoCoreConfig()
			tc.mutate(cfg)
			_, err := Build(cfg, testFactory(t), nil)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSensorsReceiveEveryWrite(t *testing.T) {
	cfg := twoCoreConfig()
	cfg.Sensors = []misc.SensorConfig{
		{Name: "core0.thermistor", Kind: "partition", Instance: "core0", Metric: "temperature",
			Model: sensor.IdealName, Params: map[string]string{"delay": "0.5"}},
		{Name: "core0.shunt", Kind: "partition", Instance: "core0", Metric: "temperature",
			Model: sensor.GaussianName, Params: map[string]string{"bias": "1"}},
	}
	r, err := Build(cfg, testFactory(t), nil)
	require.NoError(t, err)

	core0ID, _ := r.PartitionID("core0")
	core0, _ := r.Partition(core0ID)
	core0.Temperature.Push(1, 1, 335)
	core0.Temperature.Push(2, 1, 340)

	thermistorID, _ := r.SensorID("core0.thermistor")
	thermistor, _ := r.Sensor(thermistorID)
	value, ok := thermistor.Data.Pull(2.5)
	require.True(t, ok)
	assert.Equal(t, 340.0, value)
	assert.Equal(t, "partition/core0/temperature", thermistor.Topic())

	shuntID, _ := r.SensorID("core0.shunt")
	shunt, _ := r.Sensor(shuntID)
	latest, ok := shunt.Data.Latest()
	require.True(t, ok)
	assert.Equal(t, 341.0, latest.Value)

	assert.Len(t, r.Observers(KindPartition, "core0", "temperature"), 2)
}

func TestRemovePackageInvalidatesHandlesAndReleasesBackends(t *testing.T) {
	closed := false
	f := testFactory(t)
	require.NoError(t, f.RegisterThermal("closing", func(backend.ThermalSpec) (backend.ThermalModel, error) {
		return closingThermal{closed: &closed}, nil
	}))

	cfg := twoCoreConfig()
	cfg.Packages[0].Thermal = misc.BackendConfig{Model: "closing"}
	cfg.Sensors = []misc.SensorConfig{
		{Name: "alu.power", Kind: "module", Instance: "core0.alu", Metric: "power", Model: sensor.IdealName},
	}
	r, err := Build(cfg, f, nil)
	require.NoError(t, err)

	chipID, _ := r.PackageID("chip")
	aluID, _ := r.ModuleID("core0.alu")
	require.NoError(t, r.RemovePackage(chipID))

	assert.True(t, closed)
	_, ok := r.Package(chipID)
	assert.False(t, ok)
	_, ok = r.Module(aluID)
	assert.False(t, ok)
	_, ok = r.SensorID("alu.power")
	assert.False(t, ok)
	assert.Empty(t, r.Packages())
	assert.Empty(t, r.Partitions())
	assert.Empty(t, r.Modules())
	assert.Empty(t, r.Sensors())

	assert.ErrorIs(t, r.RemovePackage(chipID), ErrUnknownEntity)
}

func TestArenaReusesSlotsWithNewGeneration(t *testing.T) {
	a := newArena[Module]()
	first, ok := a.insert("alu", &Module{Name: "alu"})
	require.True(t, ok)
	_, ok = a.insert("alu", &Module{})
	assert.False(t, ok)

	_, ok = a.remove(first)
	require.True(t, ok)

	second, ok := a.insert("fpu", &Module{Name: "fpu"})
	require.True(t, ok)
	assert.Equal(t, first.index, second.index)
	assert.NotEqual(t, first, second)

	_, ok = a.get(first)
	assert.False(t, ok)
	got, ok := a.get(second)
	require.True(t, ok)
	assert.Equal(t, "fpu", got.Name)
	assert.False(t, Handle[Module]{}.Valid())
	assert.Equal(t, "fpu", a.name(second))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindPackage, KindPartition, KindModule, KindSensor} {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("chiplet")
	assert.False(t, ok)
}
