package simulator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"uIntrospector/src/introspection"
)

var ErrInvalidTrace = errors.New("invalid trace")

// TraceAccess is the activity of one module during one trace interval.
type TraceAccess struct {
	Module   string  `yaml:"module"`
	Read     float64 `yaml:"read"`
	Write    float64 `yaml:"write"`
	Search   float64 `yaml:"search"`
	ReadTag  float64 `yaml:"read_tag"`
	WriteTag float64 `yaml:"write_tag"`
	Scale    float64 `yaml:"scale"`
}

// OperatingPoint sets the reliability stress of one partition. It stays in
// effect until the partition's next operating point.
type OperatingPoint struct {
	Partition string  `yaml:"partition"`
	Frequency float64 `yaml:"frequency"`
	Voltage   float64 `yaml:"voltage"`
	Activity  float64 `yaml:"activity"`
	Active    *bool   `yaml:"active"`
}

func (this OperatingPoint) IsActive() bool {
	return this.Active == nil || *this.Active
}

type TraceInterval struct {
	Accesses        []TraceAccess    `yaml:"accesses"`
	OperatingPoints []OperatingPoint `yaml:"operating_points"`
}

// Trace is a recorded run: equal-length intervals of module activity starting
// at time zero. Period is in seconds.
type Trace struct {
	Period    float64         `yaml:"period"`
	Intervals []TraceInterval `yaml:"intervals"`
}

func LoadTrace(data []byte) (*Trace, error) {
	trace := new(Trace)

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(trace); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrace, err)
	}

	if trace.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive", ErrInvalidTrace)
	}
	for idx, interval := range trace.Intervals {
		for _, access := range interval.Accesses {
			if access.Module == "" {
				return nil, fmt.Errorf("%w: interval %d has an access without module", ErrInvalidTrace, idx)
			}
		}
		for _, point := range interval.OperatingPoints {
			if point.Partition == "" {
				return nil, fmt.Errorf("%w: interval %d has an operating point without partition", ErrInvalidTrace, idx)
			}
		}
	}
	return trace, nil
}

func LoadTraceFile(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadTrace(data)
}

// accumulator sums module activity over the trace intervals of one thermal
// step, keeping first-seen module order.
type accumulator struct {
	order    []string
	counters map[string]*introspection.AccessDescriptor
}

func newAccumulator() *accumulator {
	return &accumulator{counters: make(map[string]*introspection.AccessDescriptor)}
}

func (this *accumulator) Add(access TraceAccess) {
	scale := access.Scale
	if scale == 0 {
		scale = 1
	}

	descriptor, found := this.counters[access.Module]
	if !found {
		descriptor = &introspection.AccessDescriptor{Module: access.Module}
		this.counters[access.Module] = descriptor
		this.order = append(this.order, access.Module)
	}
	descriptor.Read += access.Read * scale
	descriptor.Write += access.Write * scale
	descriptor.Search += access.Search * scale
	descriptor.ReadTag += access.ReadTag * scale
	descriptor.WriteTag += access.WriteTag * scale
}

// Flush returns the accumulated table and resets the accumulator.
func (this *accumulator) Flush() []introspection.AccessDescriptor {
	table := make([]introspection.AccessDescriptor, 0, len(this.order))
	for _, module := range this.order {
		table = append(table, *this.counters[module])
	}
	this.order = nil
	this.counters = make(map[string]*introspection.AccessDescriptor)
	return table
}
