package backend

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// None is the backend name that binds no model.
const None = "none"

var (
	ErrUnknownBackend   = errors.New("unknown backend")
	ErrDuplicateBackend = errors.New("backend already registered")
)

type (
	EnergyConstructor      func(params Params) (EnergyModel, error)
	ThermalConstructor     func(spec ThermalSpec) (ThermalModel, error)
	ReliabilityConstructor func(params Params) (ReliabilityModel, error)
	SensorConstructor      func(params Params) (SensorModel, error)
)

// Factory instantiates backends by name. The "none" name is always known for
// energy, thermal and reliability models and yields a nil model.
type Factory struct {
	energy      map[string]EnergyConstructor
	thermal     map[string]ThermalConstructor
	reliability map[string]ReliabilityConstructor
	sensor      map[string]SensorConstructor
}

func NewFactory() *Factory {
	return &Factory{
		energy:      make(map[string]EnergyConstructor),
		thermal:     make(map[string]ThermalConstructor),
		reliability: make(map[string]ReliabilityConstructor),
		sensor:      make(map[string]SensorConstructor),
	}
}

func (f *Factory) RegisterEnergy(name string, ctor EnergyConstructor) error {
	return register(f.energy, name, ctor)
}

func (f *Factory) RegisterThermal(name string, ctor ThermalConstructor) error {
	return register(f.thermal, name, ctor)
}

func (f *Factory) RegisterReliability(name string, ctor ReliabilityConstructor) error {
	return register(f.reliability, name, ctor)
}

func (f *Factory) RegisterSensor(name string, ctor SensorConstructor) error {
	return register(f.sensor, name, ctor)
}

// NewEnergy builds the named energy model. "none" and "" return a nil model.
func (f *Factory) NewEnergy(name string, params Params) (EnergyModel, error) {
	if name == None || name == "" {
		return nil, nil
	}
	ctor, ok := f.energy[name]
	if !ok {
		return nil, fmt.Errorf("%w: energy model %q", ErrUnknownBackend, name)
	}
	return ctor(params)
}

func (f *Factory) NewThermal(name string, spec ThermalSpec) (ThermalModel, error) {
	if name == None || name == "" {
		return nil, nil
	}
	ctor, ok := f.thermal[name]
	if !ok {
		return nil, fmt.Errorf("%w: thermal model %q", ErrUnknownBackend, name)
	}
	return ctor(spec)
}

func (f *Factory) NewReliability(name string, params Params) (ReliabilityModel, error) {
	if name == None || name == "" {
		return nil, nil
	}
	ctor, ok := f.reliability[name]
	if !ok {
		return nil, fmt.Errorf("%w: reliability model %q", ErrUnknownBackend, name)
	}
	return ctor(params)
}

// NewSensor builds the named sensor model. Sensors always need a model.
func (f *Factory) NewSensor(name string, params Params) (SensorModel, error) {
	ctor, ok := f.sensor[name]
	if !ok {
		return nil, fmt.Errorf("%w: sensor model %q", ErrUnknownBackend, name)
	}
	return ctor(params)
}

// Names lists the registered names per backend kind, for diagnostics.
func (f *Factory) Names() map[string][]string {
	return map[string][]string{
		"energy":      append([]string{None}, sortedKeys(f.energy)...),
		"thermal":     append([]string{None}, sortedKeys(f.thermal)...),
		"reliability": append([]string{None}, sortedKeys(f.reliability)...),
		"sensor":      sortedKeys(f.sensor),
	}
}

// Release closes a backend that holds resources. Models without a Close
// method are left to the garbage collector.
func Release(model any) error {
	if closer, ok := model.(io.Closer); ok && closer != nil {
		return closer.Close()
	}
	return nil
}

func register[C any](table map[string]C, name string, ctor C) error {
	if name == "" || name == None {
		return fmt.Errorf("%w: reserved name %q", ErrDuplicateBackend, name)
	}
	if _, ok := table[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateBackend, name)
	}
	table[name] = ctor
	return nil
}

func sortedKeys[C any](table map[string]C) []string {
	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
