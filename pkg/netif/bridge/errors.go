package bridge

import "fmt"

// Error types for bridge kernel-control operations
var (
	// ErrBridgeNotFound is returned when a bridge doesn't exist
	ErrBridgeNotFound = fmt.Errorf("bridge not found")

	// ErrPortNotFound is returned when a port interface doesn't exist
	ErrPortNotFound = fmt.Errorf("port interface not found")

	// ErrNotABridge is returned when the named interface is not a bridge
	ErrNotABridge = fmt.Errorf("interface is not a bridge")

	// ErrPermissionDenied is returned when operation requires root privileges
	ErrPermissionDenied = fmt.Errorf("operation requires administrator privileges")

	// ErrNotSupported is returned when the operation is not supported on
	// this platform
	ErrNotSupported = fmt.Errorf("bridge control not supported on this platform")

	// ErrMSTNotSupported is returned when the kernel rejects per-VLAN MST
	// state (no BR_BOOLOPT_MST_ENABLE); callers fold back to per-port state
	ErrMSTNotSupported = fmt.Errorf("kernel does not support per-VLAN MST state")
)

// BridgeError wraps an error with additional bridge-specific context
type BridgeError struct {
	Op     string // Operation that failed
	Bridge string // Bridge or port name
	Err    error  // Underlying error
}

func (e *BridgeError) Error() string {
	if e.Bridge != "" {
		return fmt.Sprintf("bridge %s: %s: %v", e.Bridge, e.Op, e.Err)
	}
	return fmt.Sprintf("bridge: %s: %v", e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

func wrapErr(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &BridgeError{Op: op, Bridge: name, Err: err}
}
