package registry

import (
	"fmt"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/grid"
	"uIntrospector/src/introspection/series"
)

// Kind is the level of an entity in the package > partition > module
// hierarchy, plus sensors.
type Kind int

const (
	KindPackage Kind = iota
	KindPartition
	KindModule
	KindSensor
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindPartition:
		return "partition"
	case KindModule:
		return "module"
	case KindSensor:
		return "sensor"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the lower-case kind names used in configuration.
func ParseKind(value string) (Kind, bool) {
	for _, k := range []Kind{KindPackage, KindPartition, KindModule, KindSensor} {
		if k.String() == value {
			return k, true
		}
	}
	return 0, false
}

type (
	PackageID   = Handle[Package]
	PartitionID = Handle[Partition]
	ModuleID    = Handle[Module]
	SensorID    = Handle[Sensor]
)

// Module is a leaf energy consumer. Energy is nil for modules bound to no
// energy model.
type Module struct {
	Name           string
	Partition      PartitionID
	Energy         backend.EnergyModel
	ClockFrequency float64
	Area           float64

	Power       *series.Series[backend.Power]
	Temperature *series.Series[float64]
}

// Partition groups modules that share a footprint on the package.
type Partition struct {
	Name         string
	Package      PackageID
	Modules      []ModuleID
	Footprint    grid.Rect
	HasFootprint bool
	Area         float64
	Reliability  backend.ReliabilityModel

	Power           *series.Series[backend.Power]
	Temperature     *series.Series[float64]
	ReliabilityGrid *series.Series[grid.Grid]
	ActivityFactor  *series.Series[float64]
}

// Package is one chip with an optional thermal model. Temperature holds the
// hottest cell of the thermal map.
type Package struct {
	Name       string
	Partitions []PartitionID
	Area       float64
	Thermal    backend.ThermalModel

	Power          *series.Series[backend.Power]
	Temperature    *series.Series[float64]
	ThermalMap     *series.Series[grid.Grid]
	ReliabilityMap *series.Series[grid.Grid]
}

// Sensor observes one scalar metric of one entity through a SensorModel and
// stores the perturbed readings in Data.
type Sensor struct {
	Name     string
	Kind     Kind
	Instance string
	Metric   string
	Model    backend.SensorModel
	Data     *series.Series[float64]

	topic   string
	handler func(time, period, value float64)
}

// Topic is the event bus topic the sensor listens on.
func (s *Sensor) Topic() string {
	return s.topic
}

// Topic names the event bus topic for one observed metric.
func Topic(kind Kind, instance, metric string) string {
	return kind.String() + "/" + instance + "/" + metric
}
