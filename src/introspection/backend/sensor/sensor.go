// Package sensor provides SensorModel implementations: an ideal sensor that
// only applies a fixed delay, and a Gaussian one that adds bias, noise and
// quantisation on top.
package sensor

import (
	"fmt"
	"math"
	"math/rand/v2"

	"uIntrospector/src/introspection/backend"
)

const (
	IdealName    = "ideal"
	GaussianName = "gaussian"
)

// Parameters of a sensor. Delay is seconds added to the sample timestamp,
// Resolution is the quantisation step (0 disables it).
type Parameters struct {
	Delay      float64
	Bias       float64
	StdDev     float64
	Resolution float64
	Seed       uint64
}

func DefaultParameters() Parameters {
	return Parameters{Seed: 1}
}

func ParseParameters(params backend.Params) (Parameters, error) {
	p := DefaultParameters()
	r := backend.NewParamReader(params)
	p.Delay = r.FloatOr("delay", p.Delay)
	p.Bias = r.FloatOr("bias", p.Bias)
	p.StdDev = r.FloatOr("stddev", p.StdDev)
	p.Resolution = r.FloatOr("resolution", p.Resolution)
	p.Seed = r.Uint64Or("seed", p.Seed)
	if err := r.Err(); err != nil {
		return Parameters{}, err
	}
	if p.Delay < 0 || p.StdDev < 0 || p.Resolution < 0 {
		return Parameters{}, fmt.Errorf("%w: delay, stddev and resolution must not be negative", backend.ErrInvalidParameter)
	}
	return p, nil
}

// Ideal reports the raw value after a fixed delay.
type Ideal struct {
	delay float64
}

func NewIdeal(delay float64) *Ideal {
	return &Ideal{delay: delay}
}

func (s *Ideal) Read(time, period, raw float64) (backend.Reading, bool) {
	return backend.Reading{Time: time + s.delay, Period: period, Value: raw}, true
}

// Gaussian perturbs the raw value with N(bias, stddev^2) noise drawn from a
// seeded PCG stream, so runs are reproducible.
type Gaussian struct {
	params Parameters
	rng    *rand.Rand
}

func NewGaussian(params Parameters) *Gaussian {
	return &Gaussian{
		params: params,
		rng:    rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Gaussian) Read(time, period, raw float64) (backend.Reading, bool) {
	if math.IsNaN(raw) {
		return backend.Reading{}, false
	}
	value := raw + s.params.Bias + s.rng.NormFloat64()*s.params.StdDev
	if step := s.params.Resolution; step > 0 {
		value = math.Round(value/step) * step
	}
	return backend.Reading{Time: time + s.params.Delay, Period: period, Value: value}, true
}

// Register adds both sensor models to f.
func Register(f *backend.Factory) error {
	err := f.RegisterSensor(IdealName, func(params backend.Params) (backend.SensorModel, error) {
		p, err := ParseParameters(params)
		if err != nil {
			return nil, err
		}
		return NewIdeal(p.Delay), nil
	})
	if err != nil {
		return err
	}
	return f.RegisterSensor(GaussianName, func(params backend.Params) (backend.SensorModel, error) {
		p, err := ParseParameters(params)
		if err != nil {
			return nil, err
		}
		return NewGaussian(p), nil
	})
}
