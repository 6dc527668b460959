//go:build !glcompute

package physics

// DefaultDevice returns the device used by the gpu executor. Builds without
// the glcompute tag run the kernel on the host.
func DefaultDevice(workers int) (Device, error) {
	return NewHostDevice(workers), nil
}
