package synthesis

import "fmt"

// State is a step of the per-request state machine.
type State int

const (
	StateIdle State = iota
	StateGuardCheck
	StateBlocked
	StateExtracting
	StateSynthesizing
	StateValidating
	StateRepairing
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGuardCheck:
		return "guard_check"
	case StateBlocked:
		return "blocked"
	case StateExtracting:
		return "extracting"
	case StateSynthesizing:
		return "synthesizing"
	case StateValidating:
		return "validating"
	case StateRepairing:
		return "repairing"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
