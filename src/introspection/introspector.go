// Package introspection drives the power, thermal and reliability models of a
// configured system and keeps every intermediate result in time-windowed
// series that callers can query.
//
// A typical run computes power for each module every interval, calls
// ComputeTemperature once per package whenever a thermal step is due and
// ComputeReliability per partition afterwards. All calls are synchronous and
// the Introspector must not be shared between goroutines.
package introspection

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/backend/energy"
	"uIntrospector/src/introspection/backend/reliability"
	"uIntrospector/src/introspection/backend/sensor"
	"uIntrospector/src/introspection/backend/thermal"
	"uIntrospector/src/introspection/registry"
	"uIntrospector/src/misc"
)

var (
	ErrZeroPeriod            = errors.New("period must be positive outside TDP computation")
	ErrPackageDesynchronized = errors.New("package desynchronized")
	ErrNoThermalModel        = errors.New("package has no thermal model")
	ErrNoEnergyModel         = errors.New("module has no energy model")
	ErrUnknownComponent      = errors.New("unknown component")
	ErrUnknownMetric         = errors.New("unknown metric")
	ErrNoSample              = errors.New("no sample covers the requested time")
	ErrValueKind             = errors.New("value kind does not match metric")
	ErrReadOnlyMetric        = errors.New("metric is read-only")
)

type Introspector struct {
	registry *registry.Registry
	factory  *backend.Factory
	logger   *zap.Logger
}

type Option func(*Introspector)

// WithFactory replaces the default backend factory.
func WithFactory(factory *backend.Factory) Option {
	return func(this *Introspector) {
		this.factory = factory
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(this *Introspector) {
		this.logger = logger
	}
}

// DefaultFactory returns a factory with every reference backend registered.
func DefaultFactory() *backend.Factory {
	factory := backend.NewFactory()
	for _, register := range []func(*backend.Factory) error{
		energy.Register,
		thermal.Register,
		reliability.Register,
		sensor.Register,
	} {
		if err := register(factory); err != nil {
			panic(err)
		}
	}
	return factory
}

// New builds the registry described by cfg and computes the TDP of every
// module.
func New(cfg *misc.Config, opts ...Option) (*Introspector, error) {
	this := new(Introspector)
	for _, opt := range opts {
		opt(this)
	}
	if this.factory == nil {
		this.factory = DefaultFactory()
	}
	if this.logger == nil {
		this.logger = misc.Logger()
	}

	r, err := registry.Build(cfg, this.factory, this.logger)
	if err != nil {
		return nil, err
	}
	this.registry = r
	this.logger = this.logger.Named("introspection")

	for _, id := range r.Modules() {
		if err := this.ComputePower(0, 0, id, backend.Counters{}, true); err != nil {
			return nil, err
		}
	}
	return this, nil
}

// Registry exposes the entities for inspection.
func (this *Introspector) Registry() *registry.Registry {
	return this.registry
}

func (this *Introspector) module(id registry.ModuleID) (*registry.Module, error) {
	module, ok := this.registry.Module(id)
	if !ok {
		return nil, fmt.Errorf("%w: module handle", ErrUnknownComponent)
	}
	return module, nil
}

// ModuleID resolves a module name, for callers that address modules by name.
func (this *Introspector) ModuleID(name string) (registry.ModuleID, error) {
	id, ok := this.registry.ModuleID(name)
	if !ok {
		return id, fmt.Errorf("%w: module %q", ErrUnknownComponent, name)
	}
	return id, nil
}
