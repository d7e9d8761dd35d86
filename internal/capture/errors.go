package capture

import (
	errors "golang.org/x/xerrors"
)

var (
	// No camera could be opened. Returned (wrapped) by Open.
	ErrDeviceUnavailable = errors.New("capture: no camera device available")

	// The preview surface could not be attached to the device.
	ErrSurfaceBinding = errors.New("capture: failed to bind preview surface")

	// A lifecycle method was called out of order.
	ErrInvalidState = errors.New("capture: invalid state transition")

	// Start was called for a raw-path session without an encoder.
	ErrNoEncoder = errors.New("capture: no encoder attached")

	// The device negotiated a pixel format the raw path cannot carry.
	ErrUnsupportedFormat = errors.New("capture: unsupported pixel format")

	// Buffer pool contract violations.
	ErrPoolExhausted     = errors.New("capture: no idle frame buffer")
	ErrBufferNotInFlight = errors.New("capture: frame buffer is not in flight")
	ErrStaleBuffer       = errors.New("capture: frame buffer belongs to a previous allocation")
	ErrPoolBusy          = errors.New("capture: frame buffers still in flight")
)

// StateError reports a lifecycle call made from the wrong state. It matches
// ErrInvalidState under errors.Is.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return "capture: " + e.Op + " not allowed in state " + e.State.String()
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
