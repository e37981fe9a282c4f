//go:build darwin
// +build darwin

package bridge

// newPlatformManager creates the Darwin-specific bridge manager
func newPlatformManager() (Manager, error) {
	return newDarwinManager()
}
