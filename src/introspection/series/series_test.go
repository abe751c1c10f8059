package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(window int) (*Series[float64], *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New[float64]("module/core0/power", window, zap.New(core)), logs
}

func TestPushContiguousNeverFlushes(t *testing.T) {
	s, logs := newObserved(4)

	times := []struct{ time, period float64 }{
		{1.0, 1.0}, {1.5, 0.5}, {2.5, 1.0}, {2.75, 0.25}, {3.0, 0.25}, {4.0, 1.0},
	}
	for idx, tc := range times {
		require.True(t, s.IsSynchronous(tc.time, tc.period), "step %d", idx)
		require.True(t, s.Push(tc.time, tc.period, float64(idx)), "step %d", idx)
	}

	assert.Equal(t, 4, s.Len())
	assert.Zero(t, logs.FilterMessage("series desynchronized, flushing window").Len())
	assert.Equal(t, 1.5, s.Begin())
	assert.Equal(t, 4.0, s.End())
}

func TestPushOverlapFlushesWindow(t *testing.T) {
	s, logs := newObserved(4)

	require.True(t, s.Push(1.0, 1.0, 10))
	assert.False(t, s.Push(1.5, 1.0, 20))

	samples := s.Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, Sample[float64]{Time: 1.5, Period: 1.0, Value: 20}, samples[0])
	assert.Equal(t, 1, logs.FilterMessage("series desynchronized, flushing window").Len())
}

// (1.5, 0.5) covers (1.0, 1.5] and starts exactly where (1.0, 1.0) ends.
func TestHalfIntervalAfterFullIntervalIsContiguous(t *testing.T) {
	s, logs := newObserved(4)

	require.True(t, s.Push(1.0, 1.0, 10))
	assert.True(t, s.Push(1.5, 0.5, 20))

	assert.Equal(t, 2, s.Len())
	assert.Zero(t, logs.FilterMessage("series desynchronized, flushing window").Len())
	got, ok := s.Pull(0.5)
	require.True(t, ok)
	assert.Equal(t, 10.0, got)
	got, ok = s.Pull(1.25)
	require.True(t, ok)
	assert.Equal(t, 20.0, got)
}

func TestPushGapFlushesWindow(t *testing.T) {
	s, _ := newObserved(3)

	s.Push(1.0, 1.0, 1)
	s.Push(2.0, 1.0, 2)
	assert.False(t, s.Push(4.0, 1.0, 4))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 3.0, s.Begin())
}

func TestPushRejectsNegativePeriod(t *testing.T) {
	s, logs := newObserved(2)

	s.Push(1.0, 1.0, 1)
	assert.False(t, s.Push(2.0, -1.0, 2))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, logs.FilterMessage("rejecting sample with negative period").Len())
}

func TestWindowEvictsOldest(t *testing.T) {
	s, _ := newObserved(2)

	s.Push(1, 1, 1)
	s.Push(2, 1, 2)
	s.Push(3, 1, 3)

	samples := s.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, 2.0, samples[0].Value)
	assert.Equal(t, 3.0, samples[1].Value)

	_, ok := s.Pull(1.0)
	assert.False(t, ok)
}

func TestPull(t *testing.T) {
	s, _ := newObserved(3)
	s.Push(1.0, 1.0, 10)
	s.Push(2.0, 1.0, 20)
	s.Push(2.5, 0.5, 25)

	tests := []struct {
		name  string
		time  float64
		want  float64
		found bool
	}{
		{"inside first", 0.5, 10, true},
		{"end of first", 1.0, 10, true},
		{"just after boundary", 1.0000001, 20, true},
		{"end of last", 2.5, 25, true},
		{"before window", 0.0, 0, false},
		{"after window", 3.0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := s.Pull(tc.time)
			assert.Equal(t, tc.found, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPullPointSamples(t *testing.T) {
	s, _ := newObserved(3)
	s.Push(0, 0, 300)
	s.Push(1.0, 1.0, 310)

	got, ok := s.Pull(0)
	require.True(t, ok)
	assert.Equal(t, 300.0, got)

	got, ok = s.Pull(-1)
	require.True(t, ok, "a period-less sample covers the span before it")
	assert.Equal(t, 300.0, got)

	got, ok = s.Pull(0.25)
	require.True(t, ok)
	assert.Equal(t, 310.0, got)
}

func TestUpdate(t *testing.T) {
	s, logs := newObserved(2)

	assert.True(t, s.Update(1.0, 1.0, 5), "empty window synchronous with tail 0")
	assert.True(t, s.Update(1.0, 1.0, 7), "same interval overwrites")
	got, _ := s.Pull(1.0)
	assert.Equal(t, 7.0, got)

	assert.True(t, s.Update(2.0, 1.0, 9), "contiguous interval appends")
	assert.Equal(t, 2, s.Len())

	assert.False(t, s.Update(2.5, 1.0, 11))
	assert.False(t, s.Update(1.0, 1.0, 11), "older interval rejected")
	assert.Equal(t, 2, logs.FilterMessage("update rejected, series not synchronous").Len())

	got, _ = s.Pull(2.0)
	assert.Equal(t, 9.0, got)
}

func TestIsSynchronousUsesTailWhenEmpty(t *testing.T) {
	s, _ := newObserved(1)
	s.SetTail(5.0)

	assert.False(t, s.IsSynchronous(1.0, 1.0))
	assert.True(t, s.IsSynchronous(6.0, 1.0))
	assert.Equal(t, 5.0, s.Begin())
	assert.Equal(t, 5.0, s.End())
}

func TestNearToleratesRoundingOnLongRuns(t *testing.T) {
	assert.True(t, Near(1000.3-0.1, 1000.2))
	assert.False(t, Near(1.0, 1.0+1e-9))
}

func TestPutOverwritesSameInterval(t *testing.T) {
	s, logs := newObserved(2)
	s.Put(1.0, 1.0, 1)
	s.Put(1.0, 1.0, 2)
	s.Put(2.0, 1.0, 3)

	assert.Equal(t, 2, s.Len())
	got, _ := s.Pull(1.0)
	assert.Equal(t, 2.0, got)
	assert.Zero(t, logs.FilterMessage("series desynchronized, flushing window").Len())
}

func TestObserverSeesEveryWrite(t *testing.T) {
	s, _ := newObserved(2)
	var seen []Sample[float64]
	s.Observe(func(sample Sample[float64]) { seen = append(seen, sample) })

	s.Push(1.0, 1.0, 1)
	s.Update(1.0, 1.0, 2)
	s.Update(3.0, 1.0, 3)
	s.Update(2.0, 1.0, 4)

	require.Len(t, seen, 3)
	assert.Equal(t, 2.0, seen[1].Value)
	assert.Equal(t, 4.0, seen[2].Value)
}

func TestPeakSlotAndClear(t *testing.T) {
	s, _ := newObserved(1)

	_, ok := s.Peak()
	assert.False(t, ok)

	s.SetPeak(42)
	s.Push(1.0, 1.0, 1)

	peak, ok := s.Peak()
	require.True(t, ok)
	assert.Equal(t, 42.0, peak)

	s.Clear()
	assert.Zero(t, s.Len())
	_, ok = s.Peak()
	assert.False(t, ok)
	assert.True(t, s.IsSynchronous(2.0, 1.0), "tail survives clear")
}
