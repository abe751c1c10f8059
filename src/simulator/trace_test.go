package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uIntrospector/src/introspection"
)

const sampleTrace = `
period: 1.0e-3
intervals:
  - accesses:
      - {module: core.alu, read: 100, write: 10}
      - {module: core.lsu, read: 5, scale: 4}
    operating_points:
      - {partition: core, frequency: 2.0e9, voltage: 0.9, activity: 0.7}
  - accesses:
      - {module: core.alu, read: 50, search: 2}
    operating_points:
      - {partition: core, active: false}
`

func TestLoadTrace(t *testing.T) {
	trace, err := LoadTrace([]byte(sampleTrace))
	require.NoError(t, err)

	assert.Equal(t, 1.0e-3, trace.Period)
	require.Len(t, trace.Intervals, 2)
	assert.Equal(t, TraceAccess{Module: "core.lsu", Read: 5, Scale: 4}, trace.Intervals[0].Accesses[1])

	point := trace.Intervals[0].OperatingPoints[0]
	assert.True(t, point.IsActive())
	assert.Equal(t, 2.0e9, point.Frequency)
	assert.False(t, trace.Intervals[1].OperatingPoints[0].IsActive())
}

func TestLoadTraceRejectsMalformedTraces(t *testing.T) {
	tests := map[string]string{
		"missing period":   "intervals: []\n",
		"negative period":  "period: -1\n",
		"unknown field":    "period: 1\nspeed: 3\n",
		"anonymous access": "period: 1\nintervals:\n  - accesses:\n      - {read: 1}\n",
		"anonymous point":  "period: 1\nintervals:\n  - operating_points:\n      - {voltage: 1}\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTrace([]byte(data))
			assert.ErrorIs(t, err, ErrInvalidTrace)
		})
	}
}

func TestAccumulatorSumsScaledActivity(t *testing.T) {
	trace, err := LoadTrace([]byte(sampleTrace))
	require.NoError(t, err)

	acc := newAccumulator()
	for _, interval := range trace.Intervals {
		for _, access := range interval.Accesses {
			acc.Add(access)
		}
	}

	assert.Equal(t, []introspection.AccessDescriptor{
		{Module: "core.alu", Read: 150, Write: 10, Search: 2},
		{Module: "core.lsu", Read: 20},
	}, acc.Flush())
	assert.Empty(t, acc.Flush())
}
