package gpu

import (
	"errors"
	"fmt"
)

// Error kinds reported by Device implementations. Wrapped errors carry the
// detail; callers classify with errors.Is.
var (
	ErrAllocation            = errors.New("gpu: resource allocation failed")
	ErrShaderBuild           = errors.New("gpu: shader compile/link failed")
	ErrIncompleteFramebuffer = errors.New("gpu: framebuffer incomplete")
	ErrBackend               = errors.New("gpu: backend error")
)

// Check returns a wrapped ErrBackend if the device has a pending error.
func Check(dev Device, op string) error {
	if err := dev.Err(); err != nil {
		if errors.Is(err, ErrBackend) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrBackend, err)
	}
	return nil
}
