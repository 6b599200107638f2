package ledger

// State is a step of the transfer state machine:
// Validating -> Locking -> Applying -> Logging -> Committed, with Rejected
// reachable from Validating and Applying.
type State string

const (
	StateValidating State = "validating"
	StateLocking    State = "locking"
	StateApplying   State = "applying"
	StateLogging    State = "logging"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
)
