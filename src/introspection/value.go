package introspection

import (
	"fmt"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/grid"
	"uIntrospector/src/introspection/registry"
	"uIntrospector/src/introspection/series"
)

type ValueKind int

const (
	ScalarKind ValueKind = iota
	PowerKind
	GridKind
)

func (k ValueKind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case PowerKind:
		return "power"
	case GridKind:
		return "grid"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value carries any metric through PushData and PullData. Only the field
// selected by Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Scalar float64
	Power  backend.Power
	Grid   grid.Grid
}

func NewScalar(v float64) Value {
	return Value{Kind: ScalarKind, Scalar: v}
}

func NewPower(p backend.Power) Value {
	return Value{Kind: PowerKind, Power: p}
}

func NewGrid(g grid.Grid) Value {
	return Value{Kind: GridKind, Grid: g}
}

// metric is one addressable quantity of one entity. push is nil for derived
// or static quantities.
type metric struct {
	kind ValueKind
	pull func(time float64) (Value, bool)
	push func(time, period float64, v Value)
}

func scalarMetric(s *series.Series[float64]) metric {
	return metric{
		kind: ScalarKind,
		pull: func(time float64) (Value, bool) {
			v, ok := s.Pull(time)
			return NewScalar(v), ok
		},
		push: func(time, period float64, v Value) { s.Push(time, period, v.Scalar) },
	}
}

func powerMetric(s *series.Series[backend.Power]) metric {
	return metric{
		kind: PowerKind,
		pull: func(time float64) (Value, bool) {
			v, ok := s.Pull(time)
			return NewPower(v), ok
		},
		push: func(time, period float64, v Value) { s.Push(time, period, v.Power) },
	}
}

func gridMetric(s *series.Series[grid.Grid]) metric {
	return metric{
		kind: GridKind,
		pull: func(time float64) (Value, bool) {
			v, ok := s.Pull(time)
			return NewGrid(v), ok
		},
		push: func(time, period float64, v Value) { s.Push(time, period, v.Grid) },
	}
}

func peakMetric(s *series.Series[backend.Power]) metric {
	return metric{
		kind: PowerKind,
		pull: func(float64) (Value, bool) {
			v, ok := s.Peak()
			return NewPower(v), ok
		},
	}
}

func staticMetric(v Value) metric {
	return metric{
		kind: v.Kind,
		pull: func(float64) (Value, bool) { return v, true },
	}
}

func (this *Introspector) lookupMetric(kind registry.Kind, name, metricName string) (metric, error) {
	var metrics map[string]metric
	found := false

	switch kind {
	case registry.KindPackage:
		if id, ok := this.registry.PackageID(name); ok {
			pkg, _ := this.registry.Package(id)
			found = true
			metrics = map[string]metric{
				"power":           powerMetric(pkg.Power),
				"temperature":     scalarMetric(pkg.Temperature),
				"thermal_map":     gridMetric(pkg.ThermalMap),
				"reliability_map": gridMetric(pkg.ReliabilityMap),
				"tdp":             peakMetric(pkg.Power),
				"area":            staticMetric(NewScalar(pkg.Area)),
			}
		}
	case registry.KindPartition:
		if id, ok := this.registry.PartitionID(name); ok {
			partition, _ := this.registry.Partition(id)
			found = true
			metrics = map[string]metric{
				"power":           powerMetric(partition.Power),
				"temperature":     scalarMetric(partition.Temperature),
				"reliability":     gridMetric(partition.ReliabilityGrid),
				"activity_factor": scalarMetric(partition.ActivityFactor),
				"tdp":             peakMetric(partition.Power),
				"area":            staticMetric(NewScalar(partition.Area)),
			}
		}
	case registry.KindModule:
		if id, ok := this.registry.ModuleID(name); ok {
			module, _ := this.registry.Module(id)
			found = true
			metrics = map[string]metric{
				"power":       powerMetric(module.Power),
				"temperature": scalarMetric(module.Temperature),
				"tdp":         peakMetric(module.Power),
				"area":        staticMetric(NewScalar(module.Area)),
			}
		}
	case registry.KindSensor:
		if id, ok := this.registry.SensorID(name); ok {
			sensor, _ := this.registry.Sensor(id)
			found = true
			metrics = map[string]metric{
				"data": scalarMetric(sensor.Data),
			}
		}
	}

	if !found {
		return metric{}, fmt.Errorf("%w: %s %q", ErrUnknownComponent, kind, name)
	}
	m, ok := metrics[metricName]
	if !ok {
		return metric{}, fmt.Errorf("%w: %s %q has no %q", ErrUnknownMetric, kind, name, metricName)
	}
	return m, nil
}

// PushData stores v as the named metric of an entity over
// (time-period, time]. Derived metrics (tdp, area) cannot be written.
func (this *Introspector) PushData(kind registry.Kind, name, metricName string, time, period float64, v Value) error {
	m, err := this.lookupMetric(kind, name, metricName)
	if err != nil {
		return err
	}
	if m.push == nil {
		return fmt.Errorf("%w: %s", ErrReadOnlyMetric, metricName)
	}
	if v.Kind != m.kind {
		return fmt.Errorf("%w: %s is %s, got %s", ErrValueKind, metricName, m.kind, v.Kind)
	}
	m.push(time, period, v)
	return nil
}

// PullData returns the named metric of an entity at time. Static metrics
// ignore time.
func (this *Introspector) PullData(kind registry.Kind, name, metricName string, time float64) (Value, error) {
	m, err := this.lookupMetric(kind, name, metricName)
	if err != nil {
		return Value{}, err
	}
	v, ok := m.pull(time)
	if !ok {
		return v, fmt.Errorf("%w: %s %q %s at %g", ErrNoSample, kind, name, metricName, time)
	}
	return v, nil
}
