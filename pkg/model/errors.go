package model

import "errors"

// Error kinds, IEEE 802.1Q MalformedFrame, UnknownEntity, OutOfRange and
// KernelInterfaceError are ordinary returned errors; ResourceExhaustion wraps
// whatever the runtime allocator reported. InvariantViolation is never
// returned — see pkg/orchestrator's panic/recover boundary — so it has no
// sentinel here.
var (
	ErrMalformedFrame      = errors.New("malformed BPDU frame")
	ErrUnknownBridge       = errors.New("unknown bridge")
	ErrUnknownPort         = errors.New("unknown port")
	ErrUnknownTree         = errors.New("unknown spanning tree instance")
	ErrOutOfRange          = errors.New("configuration value out of range")
	ErrInvalidEnum         = errors.New("invalid enumerated configuration value")
	ErrResourceExhaustion  = errors.New("resource exhaustion during configuration ingest")
	ErrCISTCannotBeDeleted = errors.New("the CIST cannot be deleted")
)

// InvariantViolation is panicked (never returned) when an internal contract
// break is detected. Such states are unreachable by construction; reaching
// one indicates a bug, so the process aborts with a diagnostic.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return "invariant " + e.Invariant + " violated: " + e.Detail
}

// PanicInvariant panics with an InvariantViolation. Callers that detect a
// genuinely unreachable state (e.g. a Bridge with no CIST tree) call this
// instead of returning an error.
func PanicInvariant(invariant, detail string) {
	panic(&InvariantViolation{Invariant: invariant, Detail: detail})
}
