// Package reliability provides a multi-mechanism Arrhenius ReliabilityModel.
// Each enabled wear-out mechanism scales a reference MTTF with temperature
// and electrical stress; mechanisms combine as competing failure rates.
package reliability

import (
	"fmt"
	"math"

	"uIntrospector/src/introspection/backend"
)

// Name is the factory name of the Arrhenius model.
const Name = "arrhenius"

// Boltzmann is the Boltzmann constant in eV/K.
const Boltzmann = 8.617333262e-5

// Mechanism identifies a wear-out mechanism.
type Mechanism string

const (
	Electromigration Mechanism = "em"
	TDDB             Mechanism = "tddb"
	NBTI             Mechanism = "nbti"
)

// Mechanisms lists every supported mechanism in evaluation order.
var Mechanisms = []Mechanism{Electromigration, TDDB, NBTI}

// MechanismParameters configures one mechanism. MTTF is in hours at the
// reference operating point; ActivationEnergy is in eV.
type MechanismParameters struct {
	MTTF             float64
	ActivationEnergy float64
	// VoltageExponent is the power-law acceleration with supply voltage,
	// or with current density for electromigration.
	VoltageExponent float64
}

// Parameters is the reference operating point plus the enabled mechanisms.
type Parameters struct {
	ReferenceTemperature float64
	ReferenceVoltage     float64
	ReferenceFrequency   float64
	ReferenceActivity    float64
	// IdleStress is the fraction of NBTI stress applied while inactive.
	IdleStress float64
	Mechanisms map[Mechanism]MechanismParameters
}

func DefaultParameters() Parameters {
	return Parameters{
		ReferenceTemperature: 345,
		ReferenceVoltage:     1.0,
		ReferenceFrequency:   1e9,
		ReferenceActivity:    0.5,
		IdleStress:           0.5,
		Mechanisms:           map[Mechanism]MechanismParameters{},
	}
}

func defaultMechanism(m Mechanism) MechanismParameters {
	switch m {
	case Electromigration:
		return MechanismParameters{ActivationEnergy: 0.9, VoltageExponent: 1.1}
	case TDDB:
		return MechanismParameters{ActivationEnergy: 0.75, VoltageExponent: 8}
	default:
		return MechanismParameters{ActivationEnergy: 0.5, VoltageExponent: 4}
	}
}

// ParseParameters enables a mechanism for every "<mechanism>_mttf" key, with
// optional "<mechanism>_activation_energy" and "<mechanism>_voltage_exponent".
func ParseParameters(params backend.Params) (Parameters, error) {
	p := DefaultParameters()
	r := backend.NewParamReader(params)

	p.ReferenceTemperature = r.FloatOr("reference_temperature", p.ReferenceTemperature)
	p.ReferenceVoltage = r.FloatOr("reference_voltage", p.ReferenceVoltage)
	p.ReferenceFrequency = r.FloatOr("reference_frequency", p.ReferenceFrequency)
	p.ReferenceActivity = r.FloatOr("reference_activity", p.ReferenceActivity)
	p.IdleStress = r.FloatOr("idle_stress", p.IdleStress)

	for _, m := range Mechanisms {
		prefix := string(m)
		if !params.Has(prefix + "_mttf") {
			continue
		}
		mp := defaultMechanism(m)
		mp.MTTF = r.Float(prefix + "_mttf")
		mp.ActivationEnergy = r.FloatOr(prefix+"_activation_energy", mp.ActivationEnergy)
		mp.VoltageExponent = r.FloatOr(prefix+"_voltage_exponent", mp.VoltageExponent)
		p.Mechanisms[m] = mp
	}
	if err := r.Err(); err != nil {
		return Parameters{}, err
	}
	return p, p.validate()
}

func (p Parameters) validate() error {
	if p.ReferenceTemperature <= 0 || p.ReferenceVoltage <= 0 ||
		p.ReferenceFrequency <= 0 || p.ReferenceActivity <= 0 {
		return fmt.Errorf("%w: reference operating point must be positive", backend.ErrInvalidParameter)
	}
	if p.IdleStress < 0 || p.IdleStress > 1 {
		return fmt.Errorf("%w: idle_stress must lie in [0, 1]", backend.ErrInvalidParameter)
	}
	if len(p.Mechanisms) == 0 {
		return fmt.Errorf("%w: no wear-out mechanism enabled", backend.ErrMissingParameter)
	}
	for m, mp := range p.Mechanisms {
		if mp.MTTF <= 0 {
			return fmt.Errorf("%w: %s_mttf must be positive", backend.ErrInvalidParameter, m)
		}
	}
	return nil
}

// Arrhenius is the combined wear-out model.
type Arrhenius struct {
	params Parameters
}

func New(params Parameters) (*Arrhenius, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Arrhenius{params: params}, nil
}

// Register adds the Arrhenius model to f.
func Register(f *backend.Factory) error {
	return f.RegisterReliability(Name, func(params backend.Params) (backend.ReliabilityModel, error) {
		p, err := ParseParameters(params)
		if err != nil {
			return nil, err
		}
		return New(p)
	})
}

// MTTF combines the enabled mechanisms by summing their failure rates.
// A mechanism under no stress contributes nothing; with no stress at all the
// result is +Inf.
func (a *Arrhenius) MTTF(temperature, frequency, voltage, activity float64, active bool) float64 {
	rate := 0.0
	for _, m := range Mechanisms {
		mp, ok := a.params.Mechanisms[m]
		if !ok {
			continue
		}
		if mttf := a.Mechanism(m, mp, temperature, frequency, voltage, activity, active); mttf > 0 && !math.IsInf(mttf, 1) {
			rate += 1 / mttf
		}
	}
	if rate == 0 {
		return math.Inf(1)
	}
	return 1 / rate
}

// Mechanism returns the MTTF of one mechanism at the given operating point.
func (a *Arrhenius) Mechanism(m Mechanism, mp MechanismParameters, temperature, frequency, voltage, activity float64, active bool) float64 {
	p := a.params
	temperature = math.Max(temperature, 1)
	thermal := math.Exp(mp.ActivationEnergy / Boltzmann * (1/temperature - 1/p.ReferenceTemperature))

	switch m {
	case Electromigration:
		// Current density follows switching activity, voltage and frequency.
		if !active || activity <= 0 || voltage <= 0 || frequency <= 0 {
			return math.Inf(1)
		}
		density := (activity * voltage * frequency) /
			(p.ReferenceActivity * p.ReferenceVoltage * p.ReferenceFrequency)
		return mp.MTTF * thermal * math.Pow(density, -mp.VoltageExponent)
	case TDDB:
		if voltage <= 0 {
			return math.Inf(1)
		}
		return mp.MTTF * thermal * math.Pow(p.ReferenceVoltage/voltage, mp.VoltageExponent)
	default:
		stress := 1.0
		if !active {
			stress = p.IdleStress
		}
		if voltage <= 0 || stress == 0 {
			return math.Inf(1)
		}
		return mp.MTTF * thermal * math.Pow(p.ReferenceVoltage/voltage, mp.VoltageExponent) / stress
	}
}
