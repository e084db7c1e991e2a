package sessioncache

// State is the lifecycle of the initialization protocol.
type State uint8

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Step names the phase of InitForUser that failed.
type Step uint8

const (
	StepMailBox Step = iota + 1
	StepProperties
	StepFanOut
)

func (s Step) String() string {
	switch s {
	case StepMailBox:
		return "mailbox"
	case StepProperties:
		return "properties"
	case StepFanOut:
		return "fan_out"
	default:
		return "unknown"
	}
}
