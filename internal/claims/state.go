package claims

import "fmt"

// ActionState is the lifecycle state of one claim action attempt.
type ActionState string

const (
	StatePending    ActionState = "PENDING"
	StateSubmitted  ActionState = "SUBMITTED"
	StateConfirming ActionState = "CONFIRMING"
	StateResolved   ActionState = "RESOLVED"
	StateFailed     ActionState = "FAILED"
	StateSkipped    ActionState = "SKIPPED"
)

// transitions is the allowed state graph. Failed and Skipped are reachable
// early so a pre-check or submit error short-circuits the attempt; Resolved,
// Failed and Skipped are terminal.
var transitions = map[ActionState][]ActionState{
	StatePending:    {StateSubmitted, StateFailed, StateSkipped},
	StateSubmitted:  {StateConfirming, StateFailed},
	StateConfirming: {StateResolved, StateFailed},
}

// attempt tracks one claim action through its lifecycle.
type attempt struct {
	state ActionState
}

func newAttempt() *attempt {
	return &attempt{state: StatePending}
}

// to advances the attempt to the next state. An illegal transition is a
// programming error and panics rather than silently corrupting the run.
func (a *attempt) to(next ActionState) {
	for _, allowed := range transitions[a.state] {
		if allowed == next {
			a.state = next
			return
		}
	}
	panic(fmt.Sprintf("claims: illegal transition %s -> %s", a.state, next))
}

// terminal reports whether the attempt reached a terminal state.
func (a *attempt) terminal() bool {
	switch a.state {
	case StateResolved, StateFailed, StateSkipped:
		return true
	}
	return false
}
