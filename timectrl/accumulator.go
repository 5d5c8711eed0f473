package timectrl

// StepAccumulator converts irregular wall-clock frame deltas into
// whole multiples of a fixed simulation step, carrying the remainder.
// Hosts driven by a render loop feed it their frame time and step the
// simulation once per returned step, which keeps orbital integration
// numerically stable regardless of frame jitter.
type StepAccumulator struct {
	StepSeconds float64

	// MaxStepsPerAdvance bounds how many steps a single Advance may
	// emit, so a long stall doesn't trigger a catch-up spiral.
	// Zero means no bound.
	MaxStepsPerAdvance int

	remainder float64
}

// NewStepAccumulator builds an accumulator with the given fixed step.
func NewStepAccumulator(stepSeconds float64) *StepAccumulator {
	return &StepAccumulator{StepSeconds: stepSeconds, MaxStepsPerAdvance: 8}
}

// Advance folds in elapsed wall seconds and returns how many whole
// simulation steps to process now. The sub-step remainder is carried
// into the next call.
func (a *StepAccumulator) Advance(elapsedSeconds float64) int {
	if elapsedSeconds < 0 || a.StepSeconds <= 0 {
		return 0
	}
	a.remainder += elapsedSeconds

	steps := 0
	for a.remainder >= a.StepSeconds {
		a.remainder -= a.StepSeconds
		steps++
		if a.MaxStepsPerAdvance > 0 && steps >= a.MaxStepsPerAdvance {
			// Drop the backlog rather than spiral.
			a.remainder = 0
			break
		}
	}
	return steps
}

// Remainder returns the carried sub-step time, mainly for tests.
func (a *StepAccumulator) Remainder() float64 { return a.remainder }
