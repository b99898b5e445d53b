package optim

import (
	"fmt"
	"math"

	"sewresnet/nn"
)

// SchedulerState is the serializable state of a learning-rate schedule.
type SchedulerState struct {
	Name      string  `json:"name"`
	BaseLR    float64 `json:"base_lr"`
	LastEpoch int     `json:"last_epoch"`
}

// Scheduler adjusts an optimizer's learning rate once per epoch. Evaluation
// runs restore and save its state without stepping it.
type Scheduler interface {
	Step()
	State() SchedulerState
	LoadState(s SchedulerState) error
}

// NewScheduler returns "StepLR" (decay by gamma every stepSize epochs) or
// "CosALR" (cosine annealing to zero over tMax epochs).
func NewScheduler(name string, opt Optimizer, stepSize int, gamma float64, tMax int) (Scheduler, error) {
	switch name {
	case "StepLR":
		if stepSize <= 0 {
			return nil, fmt.Errorf("%w: step_size must be positive, got %d", nn.ErrConfiguration, stepSize)
		}
		return &StepLR{sched: newSched("StepLR", opt), StepSize: stepSize, Gamma: gamma}, nil
	case "CosALR":
		if tMax <= 0 {
			return nil, fmt.Errorf("%w: T_max must be positive, got %d", nn.ErrConfiguration, tMax)
		}
		return &CosineAnnealingLR{sched: newSched("CosALR", opt), TMax: tMax}, nil
	}
	return nil, fmt.Errorf("%w: unknown lr scheduler %q", nn.ErrConfiguration, name)
}

type sched struct {
	name      string
	opt       Optimizer
	baseLR    float64
	lastEpoch int
}

func newSched(name string, opt Optimizer) sched {
	return sched{name: name, opt: opt, baseLR: opt.LR()}
}

func (s *sched) State() SchedulerState {
	return SchedulerState{Name: s.name, BaseLR: s.baseLR, LastEpoch: s.lastEpoch}
}

func (s *sched) load(st SchedulerState, lr func(epoch int) float64) error {
	if st.Name != s.name {
		return fmt.Errorf("%w: cannot load %q state into %s", nn.ErrConfiguration, st.Name, s.name)
	}
	s.baseLR, s.lastEpoch = st.BaseLR, st.LastEpoch
	s.opt.SetLR(lr(s.lastEpoch))
	return nil
}

// StepLR multiplies the learning rate by Gamma every StepSize epochs.
type StepLR struct {
	sched
	StepSize int
	Gamma    float64
}

func (s *StepLR) lr(epoch int) float64 {
	return s.baseLR * math.Pow(s.Gamma, float64(epoch/s.StepSize))
}

func (s *StepLR) Step() {
	s.lastEpoch++
	s.opt.SetLR(s.lr(s.lastEpoch))
}

func (s *StepLR) LoadState(st SchedulerState) error { return s.load(st, s.lr) }

// CosineAnnealingLR follows half a cosine from the base rate to zero over TMax
// epochs, then back up.
type CosineAnnealingLR struct {
	sched
	TMax int
}

func (s *CosineAnnealingLR) lr(epoch int) float64 {
	return s.baseLR * (1 + math.Cos(math.Pi*float64(epoch)/float64(s.TMax))) / 2
}

func (s *CosineAnnealingLR) Step() {
	s.lastEpoch++
	s.opt.SetLR(s.lr(s.lastEpoch))
}

func (s *CosineAnnealingLR) LoadState(st SchedulerState) error { return s.load(st, s.lr) }
