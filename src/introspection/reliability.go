package introspection

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"uIntrospector/src/introspection/grid"
	"uIntrospector/src/introspection/registry"
	"uIntrospector/src/introspection/series"
)

const secondsPerHour = 3600.0

// survival is the probability of surviving period seconds at a constant
// failure rate of 1/mttf per hour.
func survival(mttf, period float64) float64 {
	switch {
	case math.IsInf(mttf, 1):
		return 1
	case mttf <= 0 || math.IsNaN(mttf):
		return 0
	}
	return math.Exp(-period / (mttf * secondsPerHour))
}

// ComputeReliability ages the partition over (time-period, time] at the given
// operating point, using the package temperatures of that interval. It
// reports false without changing anything when the partition has no
// reliability model or no thermal map covers time.
func (this *Introspector) ComputeReliability(
	time, period float64,
	id registry.PartitionID,
	frequency, voltage, activity float64,
	active bool,
) (bool, error) {
	partition, ok := this.registry.Partition(id)
	if !ok {
		return false, fmt.Errorf("%w: partition handle", ErrUnknownComponent)
	}
	if period <= 0 {
		return false, fmt.Errorf("%w: partition %q at %g", ErrZeroPeriod, partition.Name, time)
	}
	if partition.Reliability == nil {
		this.logger.Warn("partition has no reliability model", zap.String("partition", partition.Name))
		return false, nil
	}
	pkg, ok := this.registry.Package(partition.Package)
	if !ok {
		return false, fmt.Errorf("%w: package of partition %q", ErrUnknownComponent, partition.Name)
	}
	thermalMap, ok := pkg.ThermalMap.Pull(time)
	if !ok || thermalMap.Empty() {
		this.logger.Warn("no thermal map for reliability step",
			zap.String("partition", partition.Name),
			zap.Float64("time", time))
		return false, nil
	}

	partitionGrid := carryForward(partition.ReliabilityGrid, thermalMap, false, time, period)
	packageGrid := carryForward(pkg.ReliabilityMap, thermalMap, true, time, period)

	for _, cell := range thermalMap.CellsWithin(partition.Footprint) {
		mttf := partition.Reliability.MTTF(thermalMap.At(cell), frequency, voltage, activity, active)
		factor := survival(mttf, period)
		partitionGrid.Set(cell, partitionGrid.At(cell)*factor)
		packageGrid.Set(cell, packageGrid.At(cell)*factor)
	}

	partition.ReliabilityGrid.Push(time, period, partitionGrid)
	pkg.ReliabilityMap.Put(time, period, packageGrid)
	partition.ActivityFactor.Push(time, period, activity)
	return true, nil
}

// carryForward returns the grid to age for (time-period, time]. With inPlace
// set, a sample already covering that interval is returned as is; otherwise
// the latest grid is copied, or a fresh grid of certain survival is made when
// there is none of the thermal map's shape.
func carryForward(s *series.Series[grid.Grid], shape grid.Grid, inPlace bool, time, period float64) grid.Grid {
	latest, ok := s.Latest()
	if !ok || !latest.Value.SameShape(shape) {
		return grid.New(shape.Cols, shape.Rows, shape.Layers, shape.CellWidth, shape.CellLength, 1)
	}
	if inPlace && series.Near(latest.Time, time) && series.Near(latest.Period, period) {
		return latest.Value
	}
	return latest.Value.Clone()
}
