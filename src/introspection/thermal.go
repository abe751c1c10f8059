package introspection

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/registry"
	"uIntrospector/src/introspection/series"
)

// ComputeTemperature advances the package's thermal model over
// (time-period, time] using the partition power of that interval.
//
// Modules that reported nothing for the interval are charged an idle sample
// first. If any module is out of step with the interval afterwards, the whole
// package is removed from the registry and ErrPackageDesynchronized is
// returned.
//
// The resulting temperatures are written to the package, its partitions and
// their modules. Modules of a partition whose temperature changed by a whole
// kelvin get their energy model updated for leakage.
func (this *Introspector) ComputeTemperature(time, period float64, id registry.PackageID) error {
	pkg, ok := this.registry.Package(id)
	if !ok {
		return fmt.Errorf("%w: package handle", ErrUnknownComponent)
	}
	if pkg.Thermal == nil {
		return fmt.Errorf("%w: %q", ErrNoThermalModel, pkg.Name)
	}
	if period <= 0 {
		return fmt.Errorf("%w: package %q at %g", ErrZeroPeriod, pkg.Name, time)
	}

	if err := this.collect(time, period, id, pkg); err != nil {
		return err
	}

	for _, partitionID := range pkg.Partitions {
		partition, _ := this.registry.Partition(partitionID)
		power, ok := partition.Power.Pull(time)
		if !ok {
			this.logger.Warn("no partition power for thermal step",
				zap.String("partition", partition.Name),
				zap.Float64("time", time))
		}
		if err := pkg.Thermal.PutPartitionPower(partition.Name, power.Total()); err != nil {
			return fmt.Errorf("package %q: %w", pkg.Name, err)
		}
	}
	if err := pkg.Thermal.ComputeTemperature(time, period); err != nil {
		return fmt.Errorf("package %q: %w", pkg.Name, err)
	}

	thermalMap := pkg.Thermal.ThermalMap()
	pkg.ThermalMap.Push(time, period, thermalMap)
	pkg.Temperature.Push(time, period, thermalMap.Max())

	var errs []error
	for _, partitionID := range pkg.Partitions {
		partition, _ := this.registry.Partition(partitionID)
		cx, cy := partition.Footprint.Center()
		cell, ok := thermalMap.CellAt(cx, cy, partition.Footprint.Layer)
		if !ok {
			this.logger.Warn("partition centre outside thermal map",
				zap.String("partition", partition.Name))
			continue
		}
		temperature := thermalMap.At(cell)

		previous, hadPrevious := partition.Temperature.Latest()
		partition.Temperature.Push(time, period, temperature)
		changed := hadPrevious && int(temperature) != int(previous.Value)

		for _, moduleID := range partition.Modules {
			module, _ := this.registry.Module(moduleID)
			module.Temperature.Push(time, period, temperature)
			if !changed || module.Energy == nil {
				continue
			}
			if err := module.Energy.UpdateEnergy("temperature", temperature); err != nil {
				errs = append(errs, fmt.Errorf("module %q: %w", module.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// collect brings every module of the package up to time and evicts the
// package when a module cannot be brought in step.
func (this *Introspector) collect(time, period float64, id registry.PackageID, pkg *registry.Package) error {
	var stragglers []string
	for _, partitionID := range pkg.Partitions {
		partition, _ := this.registry.Partition(partitionID)
		for _, moduleID := range partition.Modules {
			module, _ := this.registry.Module(moduleID)
			if end := module.Power.End(); end < time && !series.Near(end, time) {
				this.logger.Debug("synthesizing idle sample",
					zap.String("module", module.Name),
					zap.Float64("time", time),
					zap.Float64("last", end))
				if err := this.ComputePower(time, period, moduleID, backend.Counters{}, false); err != nil {
					return err
				}
			}
			if !module.Power.IsSynchronous(time, period) {
				stragglers = append(stragglers, module.Name)
			}
		}
	}
	if len(stragglers) == 0 {
		return nil
	}

	err := fmt.Errorf("%w: package %q, modules %s", ErrPackageDesynchronized, pkg.Name, strings.Join(stragglers, ", "))
	this.logger.Error("evicting desynchronized package",
		zap.String("package", pkg.Name),
		zap.Strings("modules", stragglers),
		zap.Float64("time", time),
		zap.Float64("period", period))
	return errors.Join(err, this.registry.RemovePackage(id))
}
