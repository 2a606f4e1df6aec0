package stiffness

import (
	"errors"
	"math"
)

// ErrDimensionMismatch indicates a density field whose length does not match
// the element count.
var ErrDimensionMismatch = errors.New("stiffness: dimension mismatch")

// SIMP is the penalized power-law material interpolation
// E(ρ) = Emin + ρ^p·(E0 − Emin).
type SIMP struct {
	Penal float64
	E0    float64
	Emin  float64
}

func (s SIMP) Modulus(rho float64) float64 {
	return s.Emin + math.Pow(rho, s.Penal)*(s.E0-s.Emin)
}

// Derivative is dE/dρ.
func (s SIMP) Derivative(rho float64) float64 {
	return s.Penal * math.Pow(rho, s.Penal-1) * (s.E0 - s.Emin)
}
