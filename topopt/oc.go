package topopt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	lambdaUpper     = 1e9
	lambdaRelGap    = 1e-3
	densityLower    = 0.001
	densityUpper    = 1.0
	floorActivation = 0.1 // stress floors apply only where the update exceeds this
)

// updateDensities performs the optimality-criteria update: bisection on the
// volume Lagrange multiplier until the bracket's relative gap closes. rho
// holds the densities of the last candidate multiplier on return.
func (o *Optimizer) updateDensities() {
	l1, l2 := 0.0, lambdaUpper
	target := o.cfg.Volfrac
	n := float64(len(o.rho))
	for l1+l2 > 0 && (l2-l1)/(l1+l2) > lambdaRelGap {
		lmid := 0.5 * (l1 + l2)
		o.candidate(lmid)
		if floats.Sum(o.rho)/n > target {
			l1 = lmid
		} else {
			l2 = lmid
		}
	}
}

// candidate writes the densities for multiplier lambda into rho.
func (o *Optimizer) candidate(lambda float64) {
	move := o.cfg.Move
	for e, old := range o.rhoOld {
		// Non-negative sensitivities (no load, numerical noise) shrink the
		// element as far as the move limit allows.
		var x float64
		if dc := o.dcFilt[e]; dc < 0 {
			x = old * math.Sqrt(-dc/lambda)
		}
		x = clamp(x, old-move, old+move)
		x = clamp(x, densityLower, densityUpper)
		if o.rhoMin != nil && x > floorActivation && o.rhoMin[e] > x {
			x = math.Min(o.rhoMin[e], old+move)
		}
		o.rho[e] = x
	}
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
