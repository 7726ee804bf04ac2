package roomclient

// Phase is the lifecycle position of a participant.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseQuerying
	PhaseCreating
	PhaseJoining
	PhaseJoined
	PhaseReadyWait
	PhaseRacing
	PhaseWaiting
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseQuerying:
		return "querying"
	case PhaseCreating:
		return "creating"
	case PhaseJoining:
		return "joining"
	case PhaseJoined:
		return "joined"
	case PhaseReadyWait:
		return "ready_wait"
	case PhaseRacing:
		return "racing"
	case PhaseWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// seated reports whether the phase implies a place on the roster.
func (p Phase) seated() bool {
	return p >= PhaseJoined
}
