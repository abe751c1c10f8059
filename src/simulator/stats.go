package simulator

import (
	"path/filepath"

	"go.uber.org/zap"

	"uIntrospector/src/introspection"
	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/grid"
	"uIntrospector/src/introspection/series"
	"uIntrospector/src/misc"
)

func totalPower(p backend.Power) float64 { return p.Total() }
func scalar(v float64) float64           { return v }
func weakestCell(g grid.Grid) float64    { return g.Min() }

func setLatest[T any](
	stat_factory *misc.StatFactory,
	stat string,
	labels map[string]string,
	s *series.Series[T],
	value func(T) float64,
) {
	if latest, ok := s.Latest(); ok {
		stat_factory.Set(stat, labels, value(latest.Value))
	}
}

// reportEntities exports TDP and area of every live entity as gauges. With
// runtime set the latest power, temperature, survival probability and sensor
// readings are exported as well.
func reportEntities(stat_factory *misc.StatFactory, introspector *introspection.Introspector, runtime bool) {
	r := introspector.Registry()

	for _, id := range r.Packages() {
		pkg, _ := r.Package(id)
		labels := map[string]string{"kind": "package", "name": pkg.Name}
		tdp, _ := pkg.Power.Peak()
		stat_factory.Set("tdp_watts", labels, tdp.Total())
		stat_factory.Set("area_square_metres", labels, pkg.Area)
		if runtime {
			setLatest(stat_factory, "power_watts", labels, pkg.Power, totalPower)
			setLatest(stat_factory, "temperature_kelvin", labels, pkg.Temperature, scalar)
			setLatest(stat_factory, "survival_probability", labels, pkg.ReliabilityMap, weakestCell)
		}
	}

	for _, id := range r.Partitions() {
		partition, _ := r.Partition(id)
		labels := map[string]string{"kind": "partition", "name": partition.Name}
		tdp, _ := partition.Power.Peak()
		stat_factory.Set("tdp_watts", labels, tdp.Total())
		stat_factory.Set("area_square_metres", labels, partition.Area)
		if runtime {
			setLatest(stat_factory, "power_watts", labels, partition.Power, totalPower)
			setLatest(stat_factory, "temperature_kelvin", labels, partition.Temperature, scalar)
			setLatest(stat_factory, "survival_probability", labels, partition.ReliabilityGrid, weakestCell)
		}
	}

	for _, id := range r.Modules() {
		module, _ := r.Module(id)
		labels := map[string]string{"kind": "module", "name": module.Name}
		tdp, _ := module.Power.Peak()
		stat_factory.Set("tdp_watts", labels, tdp.Total())
		stat_factory.Set("area_square_metres", labels, module.Area)
		if runtime {
			setLatest(stat_factory, "power_watts", labels, module.Power, totalPower)
			setLatest(stat_factory, "temperature_kelvin", labels, module.Temperature, scalar)
		}
	}

	if !runtime {
		return
	}
	for _, id := range r.Sensors() {
		sensor, _ := r.Sensor(id)
		labels := map[string]string{"kind": "sensor", "name": sensor.Name}
		setLatest(stat_factory, "sensor_reading", labels, sensor.Data, scalar)
	}
}

// writeStats dumps the factory as "name: value" lines to <prefix>_log.txt and
// as a Prometheus textfile to <prefix>.prom under bin_dirpath.
func writeStats(bin_dirpath, prefix string, stat_factory *misc.StatFactory) {
	if bin_dirpath == "" {
		return
	}

	file_dumper := new(misc.FileDumper)
	file_dumper.Init(filepath.Join(bin_dirpath, prefix+"_log.txt"))
	file_dumper.WriteLines(stat_factory.ToLines())

	textfile := filepath.Join(bin_dirpath, prefix+".prom")
	if err := stat_factory.WriteTextfile(textfile); err != nil {
		misc.Logger().Warn("cannot write stats textfile", zap.String("path", textfile), zap.Error(err))
	}
}
