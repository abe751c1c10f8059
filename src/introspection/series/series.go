// Package series implements the time-windowed sample queue every metric of
// the introspection runtime flows through.
//
// A Series holds an ordered, non-overlapping run of (time-period, time]
// intervals, bounded to the most recent N samples. Producers are expected to
// push contiguous intervals; anything else flushes the window and restarts
// it from the new sample.
package series

import (
	"math"

	"go.uber.org/zap"
)

// Epsilon is the absolute tolerance used when comparing interval boundaries
// around unit-scale simulated times. Larger timestamps scale it by their
// magnitude so that float rounding of long runs is not mistaken for a gap.
const Epsilon = 1e-15

// Near reports whether two timestamps are equal within Epsilon.
func Near(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= Epsilon*scale
}

// Sample is one stored value covering (Time-Period, Time]. A zero Period marks
// a point sample whose extent was never specified.
type Sample[T any] struct {
	Time   float64
	Period float64
	Value  T
}

// Begin returns the start of the sample's interval.
func (s Sample[T]) Begin() float64 {
	return s.Time - s.Period
}

// Series is a bounded sliding window of samples of a single value type.
type Series[T any] struct {
	name    string
	window  int
	samples []Sample[T]
	tail    float64

	peak    T
	hasPeak bool

	observer func(Sample[T])
	logger   *zap.Logger
}

// New creates an empty series keeping at most window samples. A window below
// one is raised to one.
func New[T any](name string, window int, logger *zap.Logger) *Series[T] {
	if window < 1 {
		window = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Series[T]{
		name:    name,
		window:  window,
		samples: make([]Sample[T], 0, window),
		logger:  logger,
	}
}

func (s *Series[T]) Name() string {
	return s.name
}

func (s *Series[T]) Window() int {
	return s.window
}

func (s *Series[T]) Len() int {
	return len(s.samples)
}

// SetTail sets the externally tracked tail used by IsSynchronous while the
// window is empty.
func (s *Series[T]) SetTail(tail float64) {
	s.tail = tail
}

// Observe installs fn to be called with every value written to the series.
// A nil fn removes the observer.
func (s *Series[T]) Observe(fn func(Sample[T])) {
	s.observer = fn
}

// Push inserts a sample. It returns false when the sample was not contiguous
// with the stored window, in which case the window now holds only the new
// sample.
func (s *Series[T]) Push(time, period float64, value T) bool {
	if period < 0 {
		s.logger.Warn("rejecting sample with negative period",
			zap.String("series", s.name),
			zap.Float64("time", time),
			zap.Float64("period", period))
		return false
	}

	contiguous := true
	if last, ok := s.Latest(); ok {
		switch {
		case Near(time-period, last.Time):
		case period == 0 && time > last.Time:
		default:
			contiguous = false
		}
	}

	if !contiguous {
		s.logger.Warn("series desynchronized, flushing window",
			zap.String("series", s.name),
			zap.Float64("time", time),
			zap.Float64("period", period),
			zap.Float64("tail", s.End()),
			zap.Int("dropped", len(s.samples)))
		s.samples = s.samples[:0]
	}

	s.append(Sample[T]{Time: time, Period: period, Value: value})
	return contiguous
}

// Put overwrites the latest sample when it covers exactly (time-period, time]
// and pushes otherwise.
func (s *Series[T]) Put(time, period float64, value T) bool {
	if s.sameAsLatest(time, period) {
		s.overwrite(value)
		return true
	}
	return s.Push(time, period, value)
}

// Update overwrites or appends a sample only when the interval is synchronous
// with the window. Rejected updates are dropped with a warning.
func (s *Series[T]) Update(time, period float64, value T) bool {
	if !s.IsSynchronous(time, period) {
		s.logger.Warn("update rejected, series not synchronous",
			zap.String("series", s.name),
			zap.Float64("time", time),
			zap.Float64("period", period),
			zap.Float64("tail", s.End()))
		return false
	}
	if s.sameAsLatest(time, period) {
		s.overwrite(value)
		return true
	}
	s.append(Sample[T]{Time: time, Period: period, Value: value})
	return true
}

// IsSynchronous reports whether (time-period, time] either is the latest
// stored interval or starts exactly where it ends. An empty window compares
// against the externally tracked tail.
func (s *Series[T]) IsSynchronous(time, period float64) bool {
	last, ok := s.Latest()
	if !ok {
		return Near(time-period, s.tail)
	}
	if Near(time-period, last.Time) {
		return true
	}
	return Near(time, last.Time) && Near(period, last.Period)
}

// Pull returns the value whose interval contains time. Samples without a
// period cover the span since the preceding sample. The zero value and false
// are returned when nothing matches.
func (s *Series[T]) Pull(time float64) (T, bool) {
	for idx, sample := range s.samples {
		if sample.Period > 0 {
			if time > sample.Begin() && !Near(time, sample.Begin()) &&
				(time < sample.Time || Near(time, sample.Time)) {
				return sample.Value, true
			}
			continue
		}

		if Near(time, sample.Time) {
			return sample.Value, true
		}
		if time < sample.Time && (idx == 0 || time > s.samples[idx-1].Time) {
			return sample.Value, true
		}
	}

	s.logger.Debug("no sample covers requested time",
		zap.String("series", s.name),
		zap.Float64("time", time),
		zap.Float64("begin", s.Begin()),
		zap.Float64("end", s.End()))

	var zero T
	return zero, false
}

// Latest returns the most recent sample.
func (s *Series[T]) Latest() (Sample[T], bool) {
	if len(s.samples) == 0 {
		return Sample[T]{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Begin returns the start of the earliest stored interval, or the tracked
// tail when the window is empty.
func (s *Series[T]) Begin() float64 {
	if len(s.samples) == 0 {
		return s.tail
	}
	return s.samples[0].Begin()
}

// End returns the end of the latest stored interval, or the tracked tail when
// the window is empty.
func (s *Series[T]) End() float64 {
	if len(s.samples) == 0 {
		return s.tail
	}
	return s.samples[len(s.samples)-1].Time
}

// Samples returns a copy of the window, oldest first.
func (s *Series[T]) Samples() []Sample[T] {
	out := make([]Sample[T], len(s.samples))
	copy(out, s.samples)
	return out
}

// Clear drops every stored sample and the peak slot. The tail is kept at the
// end of the discarded window.
func (s *Series[T]) Clear() {
	s.tail = s.End()
	s.samples = s.samples[:0]
	var zero T
	s.peak = zero
	s.hasPeak = false
}

// SetPeak stores the one-shot peak value. Peak values are not time series and
// bypass the synchronicity checks.
func (s *Series[T]) SetPeak(value T) {
	s.peak = value
	s.hasPeak = true
}

// Peak returns the value stored with SetPeak.
func (s *Series[T]) Peak() (T, bool) {
	return s.peak, s.hasPeak
}

func (s *Series[T]) sameAsLatest(time, period float64) bool {
	last, ok := s.Latest()
	return ok && Near(time, last.Time) && Near(period, last.Period)
}

func (s *Series[T]) overwrite(value T) {
	idx := len(s.samples) - 1
	s.samples[idx].Value = value
	s.notify(s.samples[idx])
}

func (s *Series[T]) append(sample Sample[T]) {
	if len(s.samples) == s.window {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:len(s.samples)-1]
	}
	s.samples = append(s.samples, sample)
	s.tail = sample.Time
	s.notify(sample)
}

func (s *Series[T]) notify(sample Sample[T]) {
	if s.observer != nil {
		s.observer(sample)
	}
}
