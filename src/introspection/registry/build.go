package registry

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"uIntrospector/src/introspection/backend"
	"uIntrospector/src/introspection/grid"
	"uIntrospector/src/introspection/series"
	"uIntrospector/src/misc"
)

type builder struct {
	registry *Registry
	config   *misc.Config
	factory  *backend.Factory
	errs     []error
}

func (b *builder) fail(err error) {
	b.errs = append(b.errs, err)
}

func (b *builder) err() error {
	return errors.Join(b.errs...)
}

// declaration is one configured entity: its name, the parent it names and
// the children it lists.
type declaration struct {
	name     string
	parent   string
	children []string
}

// link is the pre-link phase.
func (b *builder) link() error {
	r, cfg := b.registry, b.config

	packages := make([]declaration, 0, len(cfg.Packages))
	for _, c := range cfg.Packages {
		b.create(KindPackage, c.Name, func() bool {
			_, ok := r.packages.insert(c.Name, &Package{Name: c.Name})
			return ok
		})
		packages = append(packages, declaration{name: c.Name, children: c.Partitions})
	}

	partitions := make([]declaration, 0, len(cfg.Partitions))
	for _, c := range cfg.Partitions {
		b.create(KindPartition, c.Name, func() bool {
			_, ok := r.partitions.insert(c.Name, &Partition{Name: c.Name})
			return ok
		})
		partitions = append(partitions, declaration{name: c.Name, parent: c.Package, children: c.Modules})
	}

	modules := make([]declaration, 0, len(cfg.Modules))
	for _, c := range cfg.Modules {
		b.create(KindModule, c.Name, func() bool {
			_, ok := r.modules.insert(c.Name, &Module{Name: c.Name})
			return ok
		})
		modules = append(modules, declaration{name: c.Name, parent: c.Partition})
	}

	for _, c := range cfg.Sensors {
		b.create(KindSensor, c.Name, func() bool {
			_, ok := r.sensors.insert(c.Name, &Sensor{Name: c.Name})
			return ok
		})
	}

	if len(b.errs) > 0 {
		return b.err()
	}

	partitionParents, packageChildren := reconcile(b, KindPackage, KindPartition, r.packages, r.partitions, packages, partitions)
	moduleParents, partitionChildren := reconcile(b, KindPartition, KindModule, r.partitions, r.modules, partitions, modules)
	if len(b.errs) > 0 {
		return b.err()
	}

	for id, children := range packageChildren {
		pkg, _ := r.packages.get(id)
		pkg.Partitions = children
	}
	for id, parent := range partitionParents {
		partition, _ := r.partitions.get(id)
		partition.Package = parent
	}
	for id, children := range partitionChildren {
		partition, _ := r.partitions.get(id)
		partition.Modules = children
	}
	for id, parent := range moduleParents {
		module, _ := r.modules.get(id)
		module.Partition = parent
	}
	return nil
}

func (b *builder) create(kind Kind, name string, insert func() bool) {
	if name == "" {
		b.fail(configErrorf(kind, name, ErrMissingParameter, "name"))
		return
	}
	if !insert() {
		b.fail(configError(kind, name, ErrDuplicateName))
	}
}

// reconcile merges the children a parent lists with the parent each child
// names. Either side may be omitted; when both are given they must agree.
// Children keep the parent's listed order, followed by children that only
// named the parent, in configuration order.
func reconcile[P, C any](
	b *builder,
	parentKind, childKind Kind,
	parentArena *arena[P], childArena *arena[C],
	parents, children []declaration,
) (map[Handle[C]]Handle[P], map[Handle[P]][]Handle[C]) {
	links := make(map[Handle[C]]Handle[P], len(children))
	lists := make(map[Handle[P]][]Handle[C], len(parents))

	declared := make(map[Handle[C]]Handle[P], len(children))
	for _, child := range children {
		if child.parent == "" {
			continue
		}
		childID, _ := childArena.lookup(child.name)
		parentID, ok := parentArena.lookup(child.parent)
		if !ok {
			b.fail(configErrorf(childKind, child.name, ErrDanglingLink, "%s %q", parentKind, child.parent))
			continue
		}
		declared[childID] = parentID
	}

	for _, parent := range parents {
		parentID, _ := parentArena.lookup(parent.name)
		lists[parentID] = make([]Handle[C], 0, len(parent.children))
		for _, name := range parent.children {
			childID, ok := childArena.lookup(name)
			if !ok {
				b.fail(configErrorf(parentKind, parent.name, ErrDanglingLink, "%s %q", childKind, name))
				continue
			}
			if owner, listed := links[childID]; listed {
				if owner == parentID {
					b.fail(configErrorf(parentKind, parent.name, ErrDuplicateName, "%s %q listed twice", childKind, name))
				} else {
					b.fail(configErrorf(childKind, name, ErrConflictingLink, "listed by %s %q and %q",
						parentKind, parentArena.name(owner), parent.name))
				}
				continue
			}
			if named, ok := declared[childID]; ok && named != parentID {
				b.fail(configErrorf(childKind, name, ErrConflictingLink, "names %s %q but %q lists it",
					parentKind, parentArena.name(named), parent.name))
				continue
			}
			links[childID] = parentID
			lists[parentID] = append(lists[parentID], childID)
		}
	}

	for _, child := range children {
		childID, _ := childArena.lookup(child.name)
		if _, linked := links[childID]; linked {
			continue
		}
		parentID, ok := declared[childID]
		if !ok {
			if child.parent == "" {
				b.fail(configErrorf(childKind, child.name, ErrDanglingLink, "no %s", parentKind))
			}
			continue
		}
		links[childID] = parentID
		lists[parentID] = append(lists[parentID], childID)
	}
	return links, lists
}

// bind is the post-link phase.
func (b *builder) bind() error {
	r, cfg := b.registry, b.config
	technology := backend.Params(cfg.Technology)
	seriesLogger := r.logger.Named("series")

	defaultWindow, err := technology.IntOr("window", 1)
	if err != nil {
		b.fail(fmt.Errorf("technology: %w", err))
	}
	defaultTemperature, err := technology.FloatOr("temperature", MinInitialTemperature)
	if err != nil {
		b.fail(fmt.Errorf("technology: %w", err))
	}
	window := func(override int) int {
		if override > 0 {
			return override
		}
		return defaultWindow
	}

	// A partition's initial temperature is the default of its modules'
	// energy models.
	moduleDefaults := make(map[string]backend.Params, len(cfg.Partitions))
	for _, c := range cfg.Partitions {
		if c.Temperature != 0 {
			moduleDefaults[c.Name] = backend.Params{
				"temperature": strconv.FormatFloat(c.Temperature, 'g', -1, 64),
			}.Merge(technology)
		}
	}

	for _, c := range cfg.Modules {
		id, _ := r.modules.lookup(c.Name)
		module, _ := r.modules.get(id)

		defaults := technology
		if partition, ok := r.partitions.get(module.Partition); ok {
			if d, found := moduleDefaults[partition.Name]; found {
				defaults = d
			}
		}
		params := backend.Params(c.Energy.Params).Merge(defaults)
		energy, err := b.factory.NewEnergy(c.Energy.Model, params)
		if err != nil {
			b.fail(configError(KindModule, c.Name, err))
		}
		clock, err := params.FloatOr("clock_frequency", 0)
		if err != nil {
			b.fail(configError(KindModule, c.Name, err))
		} else if energy != nil && clock <= 0 {
			b.fail(configErrorf(KindModule, c.Name, ErrMissingParameter, "clock_frequency"))
		}

		module.Energy = energy
		module.ClockFrequency = clock
		if energy != nil {
			module.Area = energy.Area()
		}
		module.Power = series.New[backend.Power](Topic(KindModule, c.Name, "power"), window(c.Window), seriesLogger)
		module.Temperature = series.New[float64](Topic(KindModule, c.Name, "temperature"), window(c.Window), seriesLogger)
	}

	for _, c := range cfg.Partitions {
		id, _ := r.partitions.lookup(c.Name)
		partition, _ := r.partitions.get(id)

		if fp := c.Footprint; fp != nil {
			if fp.Width <= 0 || fp.Length <= 0 || fp.Layer < 0 || fp.X < 0 || fp.Y < 0 {
				b.fail(configErrorf(KindPartition, c.Name, ErrInvalidDimensions, "footprint %+v", *fp))
			}
			partition.Footprint = grid.Rect{X: fp.X, Y: fp.Y, Width: fp.Width, Length: fp.Length, Layer: fp.Layer}
			partition.HasFootprint = true
		}

		params := backend.Params(c.Reliability.Params).Merge(technology)
		reliability, err := b.factory.NewReliability(c.Reliability.Model, params)
		if err != nil {
			b.fail(configError(KindPartition, c.Name, err))
		}
		partition.Reliability = reliability

		temperature := defaultTemperature
		if c.Temperature != 0 {
			temperature = c.Temperature
		}
		if temperature < MinInitialTemperature || temperature > MaxInitialTemperature || math.IsNaN(temperature) {
			b.fail(configErrorf(KindPartition, c.Name, ErrTemperatureRange, "%g K", temperature))
		}

		w := window(c.Window)
		partition.Power = series.New[backend.Power](Topic(KindPartition, c.Name, "power"), w, seriesLogger)
		partition.Temperature = series.New[float64](Topic(KindPartition, c.Name, "temperature"), w, seriesLogger)
		partition.ReliabilityGrid = series.New[grid.Grid](Topic(KindPartition, c.Name, "reliability"), w, seriesLogger)
		partition.ActivityFactor = series.New[float64](Topic(KindPartition, c.Name, "activity_factor"), w, seriesLogger)

		partition.Temperature.Push(0, 0, temperature)
		for _, moduleID := range partition.Modules {
			module, _ := r.modules.get(moduleID)
			module.Temperature.Push(0, 0, temperature)
			partition.Area += module.Area
		}
	}

	for _, c := range cfg.Packages {
		id, _ := r.packages.lookup(c.Name)
		pkg, _ := r.packages.get(id)

		w := window(c.Window)
		pkg.Power = series.New[backend.Power](Topic(KindPackage, c.Name, "power"), w, seriesLogger)
		pkg.Temperature = series.New[float64](Topic(KindPackage, c.Name, "temperature"), w, seriesLogger)
		pkg.ThermalMap = series.New[grid.Grid](Topic(KindPackage, c.Name, "thermal_map"), w, seriesLogger)
		pkg.ReliabilityMap = series.New[grid.Grid](Topic(KindPackage, c.Name, "reliability_map"), w, seriesLogger)

		hottest := math.Inf(-1)
		complete := true
		floorplan := make([]backend.Floorplan, 0, len(pkg.Partitions))
		needsFootprint := c.Thermal.Model != "" && c.Thermal.Model != backend.None
		for _, partitionID := range pkg.Partitions {
			partition, _ := r.partitions.get(partitionID)
			pkg.Area += partition.Area
			if initial, ok := partition.Temperature.Latest(); ok {
				hottest = math.Max(hottest, initial.Value)
			}
			if !partition.HasFootprint {
				if needsFootprint {
					complete = false
					b.fail(configErrorf(KindPartition, partition.Name, ErrMissingParameter,
						"footprint, required by the thermal model of package %q", c.Name))
				}
				continue
			}
			floorplan = append(floorplan, backend.Floorplan{Partition: partition.Name, Footprint: partition.Footprint})
		}
		if math.IsInf(hottest, -1) {
			hottest = defaultTemperature
		}
		pkg.Temperature.Push(0, 0, hottest)

		if !complete {
			continue
		}
		thermal, err := b.factory.NewThermal(c.Thermal.Model, backend.ThermalSpec{
			Package:   c.Name,
			Params:    backend.Params(c.Thermal.Params).Merge(technology),
			Floorplan: floorplan,
		})
		if err != nil {
			b.fail(configError(KindPackage, c.Name, err))
		}
		pkg.Thermal = thermal
	}

	for _, c := range cfg.Sensors {
		b.bindSensor(c, window(c.Window), seriesLogger)
	}

	return b.err()
}

func (b *builder) bindSensor(c misc.SensorConfig, window int, seriesLogger *zap.Logger) {
	r := b.registry
	id, _ := r.sensors.lookup(c.Name)
	sensor, _ := r.sensors.get(id)

	kind, ok := ParseKind(c.Kind)
	if !ok || kind == KindSensor {
		b.fail(configErrorf(KindSensor, c.Name, ErrUnresolvedSensor, "kind %q", c.Kind))
		return
	}
	if !b.exists(kind, c.Instance) {
		b.fail(configErrorf(KindSensor, c.Name, ErrUnresolvedSensor, "%s %q does not exist", kind, c.Instance))
		return
	}
	observable := false
	for _, metric := range observableMetrics(kind) {
		observable = observable || metric == c.Metric
	}
	if !observable {
		b.fail(configErrorf(KindSensor, c.Name, ErrUnresolvedSensor, "%s has no scalar metric %q", kind, c.Metric))
		return
	}

	model, err := b.factory.NewSensor(c.Model, backend.Params(c.Params))
	if err != nil {
		b.fail(configError(KindSensor, c.Name, err))
		return
	}

	sensor.Kind = kind
	sensor.Instance = c.Instance
	sensor.Metric = c.Metric
	sensor.Model = model
	sensor.Data = series.New[float64](Topic(KindSensor, c.Name, "data"), window, seriesLogger)
	sensor.topic = Topic(kind, c.Instance, c.Metric)
	sensor.handler = func(time, period, value float64) {
		reading, ok := model.Read(time, period, value)
		if ok {
			sensor.Data.Put(reading.Time, reading.Period, reading.Value)
		}
	}

	topic := sensor.topic
	if _, wired := r.observers[topic]; !wired {
		r.observe(kind, c.Instance, c.Metric, func(time, period, value float64) {
			r.bus.Publish(topic, time, period, value)
		})
	}
	if err := r.bus.Subscribe(topic, sensor.handler); err != nil {
		b.fail(configError(KindSensor, c.Name, err))
		return
	}
	r.observers[topic] = append(r.observers[topic], id)
}

func (b *builder) exists(kind Kind, name string) bool {
	r := b.registry
	switch kind {
	case KindPackage:
		_, ok := r.packages.lookup(name)
		return ok
	case KindPartition:
		_, ok := r.partitions.lookup(name)
		return ok
	case KindModule:
		_, ok := r.modules.lookup(name)
		return ok
	}
	return false
}
