package misc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var invalidStatChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// StatFactory keeps named counters and labelled gauges in a private
// Prometheus registry. Stat names are prefixed with the factory name.
type StatFactory struct {
	name     string
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]*prometheus.GaugeVec
	labels   map[string][]string
}

func (this *StatFactory) Init(name string) {
	this.name = sanitizeStatName(name)
	this.registry = prometheus.NewRegistry()
	this.counters = make(map[string]prometheus.Counter)
	this.gauges = make(map[string]*prometheus.GaugeVec)
	this.labels = make(map[string][]string)
}

func (this *StatFactory) Name() string {
	return this.name
}

// Increment adds value to a counter, creating it on first use. Counters only
// grow; a negative value panics.
func (this *StatFactory) Increment(stat string, value int64) {
	if value < 0 {
		panic(fmt.Errorf("stat %s cannot be decremented by %d", stat, value))
	}

	counter, found := this.counters[stat]
	if !found {
		counter = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: this.name,
			Name:      sanitizeStatName(stat),
			Help:      stat,
		})
		this.registry.MustRegister(counter)
		this.counters[stat] = counter
	}
	counter.Add(float64(value))
}

// Set stores a gauge value for one label set. Every call for the same stat
// must use the same label names.
func (this *StatFactory) Set(stat string, labels map[string]string, value float64) {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	gauge, found := this.gauges[stat]
	if !found {
		gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: this.name,
			Name:      sanitizeStatName(stat),
			Help:      stat,
		}, names)
		this.registry.MustRegister(gauge)
		this.gauges[stat] = gauge
		this.labels[stat] = names
	} else if strings.Join(names, ",") != strings.Join(this.labels[stat], ",") {
		panic(fmt.Errorf("stat %s is labelled by %v, not %v", stat, this.labels[stat], names))
	}

	gauge.With(prometheus.Labels(labels)).Set(value)
}

// Registry exposes the underlying registry as a gatherer.
func (this *StatFactory) Registry() prometheus.Gatherer {
	return this.registry
}

// ToLines renders every stat as "name{labels}: value", sorted by name.
func (this *StatFactory) ToLines() []string {
	families, err := this.registry.Gather()
	if err != nil {
		panic(err)
	}

	lines := make([]string, 0)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := metric.GetGauge().GetValue()
			if metric.GetCounter() != nil {
				value = metric.GetCounter().GetValue()
			}

			pairs := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				pairs = append(pairs, fmt.Sprintf("%s=%q", label.GetName(), label.GetValue()))
			}

			name := family.GetName()
			if len(pairs) > 0 {
				name += "{" + strings.Join(pairs, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s: %s", name, strconv.FormatFloat(value, 'g', -1, 64)))
		}
	}
	return lines
}

// WriteTextfile exports the stats in the Prometheus text format, for the
// node exporter's textfile collector.
func (this *StatFactory) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, this.registry)
}

func sanitizeStatName(name string) string {
	name = invalidStatChars.ReplaceAllString(name, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}
