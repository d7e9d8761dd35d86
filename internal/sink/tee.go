package sink

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/camsource/internal/capture"
)

// Tee forwards every frame to each of its encoders in turn. A failing
// encoder does not keep the frame from the rest.
type Tee []capture.Encoder

func (t Tee) AddFrameData(frame []byte) error {
	var first error
	failed := 0
	for _, enc := range t {
		if err := enc.AddFrameData(frame); err != nil {
			if first == nil {
				first = err
			}
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	if failed == 1 && len(t) == 1 {
		return first
	}
	return errors.Errorf("sink: %d of %d encoders failed, first: %w", failed, len(t), first)
}
