package topopt

// State is a snapshot of the optimizer after an iteration. Slices are copies
// owned by the caller.
type State struct {
	Densities []float64 `yaml:"densities"`
	// StrainEnergy is E(ρ_e)·uᵀKE₀u of the last solve, per element
	StrainEnergy []float64 `yaml:"strain_energy"`
	Compliance   float64   `yaml:"compliance"`
	Volume       float64   `yaml:"volume"`
	Change       float64   `yaml:"change"`
	Iteration    int       `yaml:"iteration"`
	Converged    bool      `yaml:"converged"`

	// MaxStress is the largest element stress estimate; zero unless a stress
	// constraint is configured.
	MaxStress float64 `yaml:"max_stress"`
}

func (o *Optimizer) State() State {
	return State{
		Densities:    o.Densities(),
		StrainEnergy: append([]float64(nil), o.strainEnergy...),
		Compliance:   o.compliance,
		Volume:       o.volume,
		Change:       o.change,
		Iteration:    o.iteration,
		Converged:    o.converged,
		MaxStress:    o.maxStress,
	}
}

func (o *Optimizer) Densities() []float64 {
	return append([]float64(nil), o.rho...)
}

func (o *Optimizer) IsConverged() bool { return o.converged }

func (o *Optimizer) Config() Config { return o.cfg }
