package vlan

import "fmt"

// Error types for VLAN table operations
var (
	// ErrPortNotFound is returned when the port interface doesn't exist
	ErrPortNotFound = fmt.Errorf("port interface not found")

	// ErrInvalidVID is returned when the VLAN id is out of range
	ErrInvalidVID = fmt.Errorf("invalid VLAN ID (must be 1-4094)")

	// ErrPermissionDenied is returned when operation requires root privileges
	ErrPermissionDenied = fmt.Errorf("operation requires administrator privileges")

	// ErrNotSupported is returned when the operation is not supported on
	// this platform
	ErrNotSupported = fmt.Errorf("VLAN table control not supported on this platform")
)
