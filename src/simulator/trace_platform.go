package simulator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"uIntrospector/src/introspection"
	"uIntrospector/src/introspection/registry"
	"uIntrospector/src/misc"
)

// Defaults for partitions the trace never gives an operating point.
const (
	defaultVoltage  = 1.0
	defaultActivity = 0.5
)

// TracePlatform replays a trace one interval per cycle. Activity is summed
// over thermal_interval trace intervals, then power, temperature and, every
// reliability_interval thermal steps, reliability are computed for the whole
// span.
type TracePlatform struct {
	introspector    *introspection.Introspector
	trace           *Trace
	accumulator     *accumulator
	operatingPoints map[string]OperatingPoint

	binDirpath          string
	thermalInterval     int
	reliabilityInterval int
	maxIntervals        int

	currentInterval     int
	thermalSteps        int
	lastThermalTime     float64
	lastReliabilityTime float64

	statFactory *misc.StatFactory
	logger      *zap.Logger
}

type traceSettings struct {
	binDirpath          string
	thermalInterval     int
	reliabilityInterval int
	maxIntervals        int
}

func (this *TracePlatform) Init(command_line_parser *misc.CommandLineParser, config *misc.Config) {
	introspector := newIntrospector(config)

	trace_filepath := misc.ResolveConfigPath(
		command_line_parser.StringParameter("trace_filepath"),
		command_line_parser.StringParameter("root_dirpath"),
	)
	trace, err := LoadTraceFile(trace_filepath)
	if err != nil {
		panic(fmt.Errorf("%s: %w", trace_filepath, err))
	}

	this.setup(introspector, trace, traceSettings{
		binDirpath:          command_line_parser.StringParameter("bin_dirpath"),
		thermalInterval:     int(command_line_parser.IntParameter("thermal_interval")),
		reliabilityInterval: int(command_line_parser.IntParameter("reliability_interval")),
		maxIntervals:        int(command_line_parser.IntParameter("max_intervals")),
	})
}

func (this *TracePlatform) setup(introspector *introspection.Introspector, trace *Trace, settings traceSettings) {
	this.introspector = introspector
	this.trace = trace
	this.accumulator = newAccumulator()
	this.operatingPoints = make(map[string]OperatingPoint)

	this.binDirpath = settings.binDirpath
	this.thermalInterval = max(settings.thermalInterval, 1)
	this.reliabilityInterval = max(settings.reliabilityInterval, 0)
	this.maxIntervals = max(settings.maxIntervals, 0)

	this.statFactory = new(misc.StatFactory)
	this.statFactory.Init("TracePlatform")
	this.logger = misc.Logger().Named("trace")

	this.logger.Info("trace loaded",
		zap.Int("intervals", this.limit()),
		zap.Float64("period", trace.Period),
		zap.Int("thermal_interval", this.thermalInterval),
		zap.Int("reliability_interval", this.reliabilityInterval))
}

func (this *TracePlatform) Fini() {
	this.logger.Info("trace replay finished",
		zap.Int("intervals", this.currentInterval),
		zap.Int("thermal_steps", this.thermalSteps))
}

func (this *TracePlatform) IsFinished() bool {
	return this.currentInterval >= this.limit()
}

func (this *TracePlatform) limit() int {
	n := len(this.trace.Intervals)
	if this.maxIntervals > 0 && this.maxIntervals < n {
		return this.maxIntervals
	}
	return n
}

func (this *TracePlatform) Cycle() {
	if this.IsFinished() {
		return
	}

	interval := this.trace.Intervals[this.currentInterval]
	for _, access := range interval.Accesses {
		this.accumulator.Add(access)
	}
	for _, point := range interval.OperatingPoints {
		this.operatingPoints[point.Partition] = point
	}

	this.currentInterval++
	this.statFactory.Increment("intervals", 1)

	if this.currentInterval%this.thermalInterval == 0 || this.currentInterval == this.limit() {
		this.step()
	}
}

// step closes the current thermal span.
func (this *TracePlatform) step() {
	r := this.introspector.Registry()
	time := float64(this.currentInterval) * this.trace.Period
	span := time - this.lastThermalTime

	table := this.accumulator.Flush()
	live := table[:0]
	for _, descriptor := range table {
		if _, ok := r.ModuleID(descriptor.Module); ok {
			live = append(live, descriptor)
		}
	}
	if err := this.introspector.ComputePowerTable(time, span, live); err != nil {
		this.logger.Warn("power computation failed", zap.Float64("time", time), zap.Error(err))
	}

	for _, id := range r.Packages() {
		pkg, _ := r.Package(id)
		if pkg.Thermal == nil {
			continue
		}
		name := pkg.Name
		err := this.introspector.ComputeTemperature(time, span, id)
		switch {
		case errors.Is(err, introspection.ErrPackageDesynchronized):
			this.statFactory.Increment("evicted_packages", 1)
			this.logger.Error("package evicted", zap.String("package", name), zap.Error(err))
		case err != nil:
			this.logger.Warn("thermal step failed", zap.String("package", name), zap.Error(err))
		}
	}

	this.thermalSteps++
	this.lastThermalTime = time
	this.statFactory.Increment("thermal_steps", 1)
	this.logger.Debug("thermal step", zap.Float64("time", time), zap.Float64("span", span))

	if this.reliabilityInterval > 0 && this.thermalSteps%this.reliabilityInterval == 0 {
		this.age(time, time-this.lastReliabilityTime)
		this.lastReliabilityTime = time
	}
}

func (this *TracePlatform) age(time, period float64) {
	r := this.introspector.Registry()
	for _, id := range r.Partitions() {
		partition, _ := r.Partition(id)
		if partition.Reliability == nil {
			continue
		}

		point := this.operatingPoint(partition)
		ok, err := this.introspector.ComputeReliability(
			time, period, id, point.Frequency, point.Voltage, point.Activity, point.IsActive())
		if err != nil {
			this.logger.Warn("reliability step failed", zap.String("partition", partition.Name), zap.Error(err))
			continue
		}
		if ok {
			this.statFactory.Increment("reliability_steps", 1)
		}
	}
}

// operatingPoint returns the partition's latest operating point with unset
// fields defaulted. The frequency defaults to the fastest module clock.
func (this *TracePlatform) operatingPoint(partition *registry.Partition) OperatingPoint {
	point := this.operatingPoints[partition.Name]
	if point.Frequency <= 0 {
		for _, id := range partition.Modules {
			if module, ok := this.introspector.Registry().Module(id); ok {
				point.Frequency = max(point.Frequency, module.ClockFrequency)
			}
		}
	}
	if point.Voltage <= 0 {
		point.Voltage = defaultVoltage
	}
	if point.Activity <= 0 {
		point.Activity = defaultActivity
	}
	return point
}

func (this *TracePlatform) Dump() {
	reportEntities(this.statFactory, this.introspector, true)
	writeStats(this.binDirpath, "trace", this.statFactory)
}
