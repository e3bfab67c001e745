package workflow

import (
	"fmt"
	"slices"
)

// Phase is a state of the per-query state machine.
type Phase int

const (
	PhaseRouting Phase = iota + 1
	PhaseRetrieving
	PhaseExtracting
	PhaseSynthesizing
	PhaseCiting
	PhaseAssessing
	PhaseFinalized
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseRouting:      "routing",
	PhaseRetrieving:   "retrieving",
	PhaseExtracting:   "extracting",
	PhaseSynthesizing: "synthesizing",
	PhaseCiting:       "citing",
	PhaseAssessing:    "assessing",
	PhaseFinalized:    "finalized",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// transitions lists the phases reachable from each phase.
// Synthesizing goes straight to Finalized when there is no evidence to cite.
var transitions = map[Phase][]Phase{
	PhaseRouting:      {PhaseRetrieving},
	PhaseRetrieving:   {PhaseExtracting, PhaseSynthesizing},
	PhaseExtracting:   {PhaseSynthesizing},
	PhaseSynthesizing: {PhaseCiting, PhaseFinalized, PhaseFailed},
	PhaseCiting:       {PhaseAssessing},
	PhaseAssessing:    {PhaseFinalized},
}

// CanTransition reports whether the table allows moving from p to next.
func (p Phase) CanTransition(next Phase) bool {
	return slices.Contains(transitions[p], next)
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseFinalized || p == PhaseFailed
}
