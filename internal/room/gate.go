package room

// Transition is the status change a gate evaluation demands.
type Transition int

const (
	// TransitionNone keeps the current status.
	TransitionNone Transition = iota
	// TransitionStart moves waiting to running.
	TransitionStart
	// TransitionAbandon forces running back to waiting.
	TransitionAbandon
)

func (t Transition) String() string {
	switch t {
	case TransitionStart:
		return "start"
	case TransitionAbandon:
		return "abandon"
	default:
		return "none"
	}
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Status     Status
	Transition Transition
}

// GateOpen reports whether a race may run: at least two players, every
// current player ready. Ready ids of departed players are ignored.
func GateOpen(players []Player, ready ReadySet) bool {
	if len(players) < MinPlayers {
		return false
	}
	covered := 0
	for _, p := range players {
		if !ready.Has(p.ID) {
			return false
		}
		covered++
	}
	return covered >= MinPlayers
}

// Evaluate applies the gate to the current status.
func Evaluate(players []Player, ready ReadySet, status Status) Decision {
	open := GateOpen(players, ready)
	switch {
	case status == StatusRunning && !open:
		return Decision{Status: StatusWaiting, Transition: TransitionAbandon}
	case status != StatusRunning && open:
		return Decision{Status: StatusRunning, Transition: TransitionStart}
	case status == StatusRunning:
		return Decision{Status: StatusRunning}
	default:
		return Decision{Status: StatusWaiting}
	}
}
