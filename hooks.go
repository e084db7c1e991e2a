package sessioncache

import "time"

// Hooks are lightweight callbacks for high-signal initialization events.
// Implementations MUST be cheap and non-blocking: SlotCommitted and
// StepFailed are called from fan-out goroutines.
type Hooks interface {
	// A new InitForUser run started.
	InitStarted(runID, groupID string, restricted bool)

	// A slot was overwritten with a freshly loaded record.
	SlotCommitted(runID string, kind Kind)

	// A step failed. For StepFanOut this fires once per failed member.
	StepFailed(runID string, step Step, kind Kind, err error)

	// The fan-out was skipped because the account is restricted.
	FanOutSkipped(runID string)

	// The run ended in StateReady or StateFailed.
	InitFinished(runID string, state State, elapsed time.Duration)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) InitStarted(string, string, bool)          {}
func (NopHooks) SlotCommitted(string, Kind)                {}
func (NopHooks) StepFailed(string, Step, Kind, error)      {}
func (NopHooks) FanOutSkipped(string)                      {}
func (NopHooks) InitFinished(string, State, time.Duration) {}
