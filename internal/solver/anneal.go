package solver

import (
	"math"
	"math/rand"
	"time"
)

// AnnealState is the move/energy contract an annealing run drives. The
// state lives inside the implementation; Move replaces it with a
// perturbed neighbour and Energy evaluates the current state. State
// and SetState snapshot and restore it for rejection and best-state
// tracking.
type AnnealState[S any] interface {
	Move(rng *rand.Rand) error
	Energy() (float64, error)
	State() S
	SetState(S)
}

// AnnealConfig configures an annealing run.
type AnnealConfig struct {
	// TMax and TMin bound the exponential cooling schedule.
	TMax float64
	TMin float64
	// Steps is the number of annealing moves.
	Steps int
	// Updates is the number of progress reports over the run; zero
	// reports every step when Progress is set.
	Updates int
	// Seed fixes the random sequence; zero seeds from the clock.
	Seed int64
	// Progress, when set, receives periodic updates.
	Progress func(step int, temp, energy, best float64)
}

// Anneal runs an exponential-schedule simulated anneal over the
// problem state and returns the best state and energy seen. An error
// from Move or Energy stops the run immediately and is returned
// together with the best state found up to that point.
func Anneal[S any](prob AnnealState[S], cfg AnnealConfig) (best S, bestEnergy float64, err error) {
	if cfg.Steps <= 0 {
		cfg.Steps = 1
	}
	if cfg.TMax <= 0 {
		cfg.TMax = 1
	}
	if cfg.TMin <= 0 || cfg.TMin > cfg.TMax {
		cfg.TMin = cfg.TMax * 1e-8
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	energy, err := prob.Energy()
	if err != nil {
		return best, 0, err
	}
	best = prob.State()
	bestEnergy = energy
	prev := prob.State()
	prevEnergy := energy

	every := 1
	if cfg.Updates > 0 && cfg.Steps > cfg.Updates {
		every = cfg.Steps / cfg.Updates
	}
	cooling := math.Log(cfg.TMax / cfg.TMin)

	for step := 0; step < cfg.Steps; step++ {
		temp := cfg.TMax * math.Exp(-cooling*float64(step)/float64(cfg.Steps))

		if err := prob.Move(rng); err != nil {
			return best, bestEnergy, err
		}
		energy, err := prob.Energy()
		if err != nil {
			return best, bestEnergy, err
		}

		if acceptMetropolis(prevEnergy, energy, temp, rng) {
			prev = prob.State()
			prevEnergy = energy
		} else {
			prob.SetState(prev)
			energy = prevEnergy
		}

		if energy < bestEnergy {
			best = prob.State()
			bestEnergy = energy
		}

		if cfg.Progress != nil && (step+1)%every == 0 {
			cfg.Progress(step+1, temp, energy, bestEnergy)
		}
	}

	return best, bestEnergy, nil
}
