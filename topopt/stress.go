package topopt

import (
	"fmt"
	"math"
)

// StressConstraint configures the minimum-density floor. An element stress is
// estimated from its strain energy as σ = StressScale·√(2·E·U/V); elements
// whose estimate exceeds AllowableStress get the floor
// clamp((σ/AllowableStress)^(1/penal), 0, 1).
//
// The density thresholds used (0.3 for estimating, 0.1 for enforcing) are a
// heuristic that keeps voids from being refilled.
type StressConstraint struct {
	AllowableStress float64 `yaml:"allowable_stress"`
	// StressScale converts the energy-based estimate to the stress units of
	// AllowableStress; zero means 1.
	StressScale float64 `yaml:"stress_scale"`
}

const stressDensityThreshold = 0.3

func (sc *StressConstraint) validate() error {
	if !(sc.AllowableStress > 0) || math.IsInf(sc.AllowableStress, 0) {
		return fmt.Errorf("%w: allowable stress %g must be positive", ErrInvalidConfig, sc.AllowableStress)
	}
	if sc.StressScale < 0 || math.IsNaN(sc.StressScale) || math.IsInf(sc.StressScale, 0) {
		return fmt.Errorf("%w: stress scale %g must be non-negative", ErrInvalidConfig, sc.StressScale)
	}
	if sc.StressScale == 0 {
		sc.StressScale = 1
	}
	return nil
}

// estimateStresses fills stresses and rhoMin from the energies of the last
// solve.
func (o *Optimizer) estimateStresses() {
	allow := o.stress.AllowableStress
	invPenal := 1 / o.cfg.Penal
	volume := o.conn.Element.GetProperties().Volume()
	o.maxStress = 0
	for e, rho := range o.rho {
		o.stresses[e] = 0
		o.rhoMin[e] = 0
		if rho <= stressDensityThreshold {
			continue
		}
		E := o.law.Modulus(rho)
		U := 0.5 * E * o.energy[e]
		sigma := o.stress.StressScale * math.Sqrt(math.Max(0, 2*E*U/volume))
		o.stresses[e] = sigma
		o.maxStress = math.Max(o.maxStress, sigma)
		if sigma > allow {
			o.rhoMin[e] = clamp(math.Pow(sigma/allow, invPenal), 0, 1)
		}
	}
}

// Stresses returns a copy of the element stress estimates of the last
// iteration, or nil when no stress constraint is configured.
func (o *Optimizer) Stresses() []float64 {
	if o.stress == nil {
		return nil
	}
	return append([]float64(nil), o.stresses...)
}

// MinDensities returns the stress-derived density floors of the last
// iteration, or nil when no stress constraint is configured.
func (o *Optimizer) MinDensities() []float64 {
	if o.stress == nil {
		return nil
	}
	return append([]float64(nil), o.rhoMin...)
}
