package window

// Step is one logical step of the per-track phase sequence.
type Step struct {
	Phase string `json:"phase"`
	Cycle string `json:"cycle,omitempty"`
}

func (s Step) String() string {
	if s.Cycle != "" {
		return s.Phase + " (" + s.Cycle + ")"
	}
	return s.Phase
}

// sequence is the authoritative per-track ordering of workflow steps:
// proposal, then application, then submission and assessment for each
// cycle in AllCycles order, then grade_release. Identical for every track.
//
// Callers must not assume a step's prerequisites are just the previous entry:
// grade_release fans in on all four assessment cycles (see Prerequisites).
var sequence = buildSequence()

func buildSequence() []Step {
	steps := make([]Step, 0, 3+2*len(AllCycles))
	steps = append(steps,
		Step{Phase: PhaseProposal},
		Step{Phase: PhaseApplication},
	)
	for _, cycle := range AllCycles {
		steps = append(steps,
			Step{Phase: PhaseSubmission, Cycle: cycle},
			Step{Phase: PhaseAssessment, Cycle: cycle},
		)
	}
	return append(steps, Step{Phase: PhaseGradeRelease})
}

// Sequence returns a copy of the ordered step list.
func Sequence() []Step {
	steps := make([]Step, len(sequence))
	copy(steps, sequence)
	return steps
}

// OrderIndex returns the step's total-order key within the sequence,
// or -1 for an unknown (phase, cycle) pair.
func OrderIndex(phase, cycle string) int {
	for i, s := range sequence {
		if s.Phase == phase && s.Cycle == cycle {
			return i
		}
	}
	return -1
}

// Prerequisites returns, in order, every step that must have completed before
// (phase, cycle) may begin: all transitively preceding steps of the sequence.
// For grade_release this is the whole workflow: every assessment cycle,
// not just the immediately preceding one.
func Prerequisites(phase, cycle string) []Step {
	idx := OrderIndex(phase, cycle)
	if idx <= 0 {
		return nil
	}
	prereqs := make([]Step, idx)
	copy(prereqs, sequence[:idx])
	return prereqs
}
