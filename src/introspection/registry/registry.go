// Package registry owns every configured package, partition, module and
// sensor, the links between them, and the backends bound to them.
//
// Build runs in two phases. The pre-link phase creates one empty entity per
// configuration entry and reconciles parent and child declarations, filling
// in whichever side was omitted. The post-link phase binds backends, rolls
// areas up the hierarchy, validates initial temperatures and resolves sensors
// to the series they observe. Every failure of a phase is collected; Build
// returns them joined.
package registry

import (
	"errors"
	"fmt"

	evbus "github.com/asaskevich/EventBus"
	"go.uber.org/zap"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/series"
	"uIntrospector/src/misc"
)

const (
	MinInitialTemperature = 300.0
	MaxInitialTemperature = 400.0
)

// Registry is the arena of all entities. It is not safe for concurrent use.
type Registry struct {
	packages   *arena[Package]
	partitions *arena[Partition]
	modules    *arena[Module]
	sensors    *arena[Sensor]

	bus       evbus.Bus
	observers map[string][]SensorID
	logger    *zap.Logger
}

func newRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		packages:   newArena[Package](),
		partitions: newArena[Partition](),
		modules:    newArena[Module](),
		sensors:    newArena[Sensor](),
		bus:        evbus.New(),
		observers:  make(map[string][]SensorID),
		logger:     logger.Named("registry"),
	}
}

// Build creates a registry from cfg, instantiating backends through factory.
func Build(cfg *misc.Config, factory *backend.Factory, logger *zap.Logger) (*Registry, error) {
	if cfg == nil {
		cfg = misc.DefaultConfig()
	}
	if factory == nil {
		factory = backend.NewFactory()
	}

	r := newRegistry(logger)
	b := &builder{registry: r, config: cfg, factory: factory}

	if err := b.link(); err != nil {
		return nil, err
	}
	if err := b.bind(); err != nil {
		r.release()
		return nil, err
	}

	r.logger.Info("registry built",
		zap.Int("packages", r.packages.count()),
		zap.Int("partitions", r.partitions.count()),
		zap.Int("modules", r.modules.count()),
		zap.Int("sensors", r.sensors.count()))
	return r, nil
}

func (r *Registry) Package(id PackageID) (*Package, bool) {
	return r.packages.get(id)
}

func (r *Registry) Partition(id PartitionID) (*Partition, bool) {
	return r.partitions.get(id)
}

func (r *Registry) Module(id ModuleID) (*Module, bool) {
	return r.modules.get(id)
}

func (r *Registry) Sensor(id SensorID) (*Sensor, bool) {
	return r.sensors.get(id)
}

func (r *Registry) PackageID(name string) (PackageID, bool) {
	return r.packages.lookup(name)
}

func (r *Registry) PartitionID(name string) (PartitionID, bool) {
	return r.partitions.lookup(name)
}

func (r *Registry) ModuleID(name string) (ModuleID, bool) {
	return r.modules.lookup(name)
}

func (r *Registry) SensorID(name string) (SensorID, bool) {
	return r.sensors.lookup(name)
}

// Packages returns the live package handles in configuration order.
func (r *Registry) Packages() []PackageID {
	return r.packages.handles()
}

func (r *Registry) Partitions() []PartitionID {
	return r.partitions.handles()
}

func (r *Registry) Modules() []ModuleID {
	return r.modules.handles()
}

func (r *Registry) Sensors() []SensorID {
	return r.sensors.handles()
}

// Observers returns the sensors subscribed to one metric of one entity.
func (r *Registry) Observers(kind Kind, instance, metric string) []SensorID {
	ids := r.observers[Topic(kind, instance, metric)]
	out := make([]SensorID, len(ids))
	copy(out, ids)
	return out
}

// RemovePackage drops a package together with its partitions, their modules
// and every sensor observing any of them. Backends implementing io.Closer are
// closed; close failures are returned joined after the removal completed.
func (r *Registry) RemovePackage(id PackageID) error {
	pkg, ok := r.packages.get(id)
	if !ok {
		return fmt.Errorf("%w: package handle", ErrUnknownEntity)
	}

	var errs []error
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, partitionID := range pkg.Partitions {
		partition, ok := r.partitions.get(partitionID)
		if !ok {
			continue
		}
		for _, moduleID := range partition.Modules {
			module, ok := r.modules.get(moduleID)
			if !ok {
				continue
			}
			r.dropObservers(KindModule, module.Name, &errs)
			keep(backend.Release(module.Energy))
			r.modules.remove(moduleID)
		}
		r.dropObservers(KindPartition, partition.Name, &errs)
		keep(backend.Release(partition.Reliability))
		r.partitions.remove(partitionID)
	}
	r.dropObservers(KindPackage, pkg.Name, &errs)
	keep(backend.Release(pkg.Thermal))
	r.packages.remove(id)

	r.logger.Warn("package removed", zap.String("package", pkg.Name))
	return errors.Join(errs...)
}

func (r *Registry) dropObservers(kind Kind, instance string, errs *[]error) {
	for _, metric := range observableMetrics(kind) {
		topic := Topic(kind, instance, metric)
		for _, sensorID := range r.observers[topic] {
			sensor, ok := r.sensors.get(sensorID)
			if !ok {
				continue
			}
			if err := r.bus.Unsubscribe(topic, sensor.handler); err != nil {
				*errs = append(*errs, err)
			}
			if err := backend.Release(sensor.Model); err != nil {
				*errs = append(*errs, err)
			}
			r.sensors.remove(sensorID)
		}
		delete(r.observers, topic)
	}
}

// release closes every backend after a failed build.
func (r *Registry) release() {
	for _, id := range r.modules.handles() {
		module, _ := r.modules.get(id)
		_ = backend.Release(module.Energy)
	}
	for _, id := range r.partitions.handles() {
		partition, _ := r.partitions.get(id)
		_ = backend.Release(partition.Reliability)
	}
	for _, id := range r.packages.handles() {
		pkg, _ := r.packages.get(id)
		_ = backend.Release(pkg.Thermal)
	}
	for _, id := range r.sensors.handles() {
		sensor, _ := r.sensors.get(id)
		_ = backend.Release(sensor.Model)
	}
}

// observableMetrics lists the scalar metrics a sensor may observe per kind.
func observableMetrics(kind Kind) []string {
	switch kind {
	case KindPackage, KindModule:
		return []string{"power", "temperature"}
	case KindPartition:
		return []string{"power", "temperature", "activity_factor"}
	default:
		return nil
	}
}

// observe forwards every write of one scalar metric to publish.
func (r *Registry) observe(kind Kind, instance, metric string, publish func(time, period, value float64)) bool {
	power := func(s *series.Series[backend.Power]) bool {
		s.Observe(func(sample series.Sample[backend.Power]) {
			publish(sample.Time, sample.Period, sample.Value.Total())
		})
		return true
	}
	scalar := func(s *series.Series[float64]) bool {
		s.Observe(func(sample series.Sample[float64]) {
			publish(sample.Time, sample.Period, sample.Value)
		})
		return true
	}

	switch kind {
	case KindPackage:
		id, ok := r.packages.lookup(instance)
		if !ok {
			return false
		}
		pkg, _ := r.packages.get(id)
		switch metric {
		case "power":
			return power(pkg.Power)
		case "temperature":
			return scalar(pkg.Temperature)
		}
	case KindPartition:
		id, ok := r.partitions.lookup(instance)
		if !ok {
			return false
		}
		partition, _ := r.partitions.get(id)
		switch metric {
		case "power":
			return power(partition.Power)
		case "temperature":
			return scalar(partition.Temperature)
		case "activity_factor":
			return scalar(partition.ActivityFactor)
		}
	case KindModule:
		id, ok := r.modules.lookup(instance)
		if !ok {
			return false
		}
		module, _ := r.modules.get(id)
		switch metric {
		case "power":
			return power(module.Power)
		case "temperature":
			return scalar(module.Temperature)
		}
	}
	return false
}
