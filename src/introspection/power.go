package introspection

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/registry"
	"uIntrospector/src/introspection/series"
)

// AccessDescriptor is one module's access counts for an interval. Scale
// multiplies every counter; zero means one.
type AccessDescriptor struct {
	Module   string
	Read     float64
	Write    float64
	ReadTag  float64
	WriteTag float64
	Search   float64
	Scale    float64
}

func (d AccessDescriptor) Counters() backend.Counters {
	counters := backend.Counters{
		Read:     d.Read,
		Write:    d.Write,
		Search:   d.Search,
		ReadTag:  d.ReadTag,
		WriteTag: d.WriteTag,
	}
	if d.Scale != 0 {
		counters = counters.Scale(d.Scale)
	}
	return counters
}

// computePower converts per-access energies and access counts over period
// into watts. Leakage is charged for every cycle of the interval.
func computePower(unit backend.UnitEnergy, counters backend.Counters, period, clockFrequency float64) backend.Power {
	return backend.Power{
		Baseline: unit.Baseline * counters.Accesses() / period,
		Search:   unit.Search * counters.Search / period,
		Read:     unit.Read * counters.Read / period,
		Write:    unit.Write * counters.Write / period,
		ReadTag:  unit.ReadTag * counters.ReadTag / period,
		WriteTag: unit.WriteTag * counters.WriteTag / period,
		Leakage:  unit.Leakage * period * clockFrequency / period,
	}
}

// ComputePower evaluates the module's energy model for one interval and adds
// the result to its partition and package. With isTDP set, time and period are
// ignored and the module's peak power is stored instead.
func (this *Introspector) ComputePower(
	time, period float64,
	id registry.ModuleID,
	counters backend.Counters,
	isTDP bool,
) error {
	module, err := this.module(id)
	if err != nil {
		return err
	}
	if isTDP {
		this.computeTDP(module)
		return nil
	}
	if period <= 0 {
		return fmt.Errorf("%w: module %q at %g", ErrZeroPeriod, module.Name, time)
	}

	var power backend.Power
	if module.Energy != nil {
		power = computePower(module.Energy.UnitEnergy(false), counters, period, module.ClockFrequency)
	}

	last, ok := module.Power.Latest()
	repeated := ok && series.Near(last.Time, time) && series.Near(last.Period, period)
	flushed := !module.Power.Push(time, period, power)
	if repeated {
		// The first report of this interval is already in the parents.
		this.logger.Warn("repeated power report, roll-up skipped",
			zap.String("module", module.Name),
			zap.Float64("time", time),
			zap.Float64("period", period))
		return nil
	}

	partition, ok := this.registry.Partition(module.Partition)
	if !ok {
		return nil
	}
	if !rollUp(partition.Power, time, period, power, flushed) {
		return nil
	}

	pkg, ok := this.registry.Package(partition.Package)
	if !ok {
		return nil
	}
	rollUp(pkg.Power, time, period, power, flushed)
	return nil
}

// rollUp adds power to the parent sample covering (time-period, time]. A
// parent that has never been written starts at this interval. When the
// reporting module skipped ahead (flushed) past the parent's end, the parent
// restarts at this interval too. Any other unsynchronized update is rejected.
func rollUp(s *series.Series[backend.Power], time, period float64, power backend.Power, flushed bool) bool {
	current, covered := s.Pull(time)
	start := time - period
	ahead := start > s.End() || series.Near(start, s.End())
	if !covered && ahead && !s.IsSynchronous(time, period) {
		switch {
		case s.Len() == 0:
			s.SetTail(start)
		case flushed:
			s.Push(time, period, power)
			return true
		}
	}
	return s.Update(time, period, current.Add(power))
}

// ComputePowerTable runs ComputePower for every descriptor. Failures do not
// stop the remaining descriptors and are returned joined.
func (this *Introspector) ComputePowerTable(time, period float64, table []AccessDescriptor) error {
	var errs []error
	for _, descriptor := range table {
		id, err := this.ModuleID(descriptor.Module)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := this.ComputePower(time, period, id, descriptor.Counters(), false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// computeTDP stores the module's peak power: every port busy on every cycle.
// The enclosing partition and package peaks are re-derived from their
// children so that repeated calls never accumulate.
func (this *Introspector) computeTDP(module *registry.Module) {
	var power backend.Power
	if module.Energy != nil && module.ClockFrequency > 0 {
		power = computePower(module.Energy.UnitEnergy(true), module.Energy.Ports(), 1/module.ClockFrequency, module.ClockFrequency)
	}
	module.Power.SetPeak(power)

	partition, ok := this.registry.Partition(module.Partition)
	if !ok {
		return
	}
	var partitionPeak backend.Power
	for _, moduleID := range partition.Modules {
		if child, ok := this.registry.Module(moduleID); ok {
			peak, _ := child.Power.Peak()
			partitionPeak = partitionPeak.Add(peak)
		}
	}
	partition.Power.SetPeak(partitionPeak)

	pkg, ok := this.registry.Package(partition.Package)
	if !ok {
		return
	}
	var packagePeak backend.Power
	for _, partitionID := range pkg.Partitions {
		if child, ok := this.registry.Partition(partitionID); ok {
			peak, _ := child.Power.Peak()
			packagePeak = packagePeak.Add(peak)
		}
	}
	pkg.Power.SetPeak(packagePeak)

	this.logger.Debug("tdp computed",
		zap.String("module", module.Name),
		zap.Float64("watts", power.Total()),
		zap.Float64("package_watts", packagePeak.Total()))
}

// UpdateEnergyParameter re-parameterises a module's energy model, e.g. for a
// voltage or frequency change. The stored TDP is left untouched.
func (this *Introspector) UpdateEnergyParameter(id registry.ModuleID, name string, value float64) error {
	module, err := this.module(id)
	if err != nil {
		return err
	}
	if module.Energy == nil {
		return fmt.Errorf("%w: %q", ErrNoEnergyModel, module.Name)
	}
	if err := module.Energy.UpdateEnergy(name, value); err != nil {
		return fmt.Errorf("module %q: %w", module.Name, err)
	}
	if name == "clock_frequency" {
		module.ClockFrequency = value
	}
	this.logger.Info("energy parameter updated",
		zap.String("module", module.Name),
		zap.String("parameter", name),
		zap.Float64("value", value))
	return nil
}
