/*
Package capture adapts a camera device to a real-time media pipeline.

A Session owns one camera device. It walks the device through
Open -> Start -> Stop -> Close, negotiates the preview size, and forwards
every captured frame down two independent paths:

  - the texture path, where the platform renders frames into a hardware
    surface and calls OnTextureFrameAvailable. Frames are tagged with their
    orientation, mirrored for front-facing cameras, and passed to the
    registered TextureConsumer (or dropped when there is none).

  - the raw path, where the device writes NV21 frames into callback buffers
    owned by a small BufferPool. Each frame is handed to the Encoder and the
    buffer is then returned to the pool and resubmitted to the device.

Example usage:

	s, err := capture.NewSession(capture.Config{
		Width:    1280,
		Height:   720,
		Cameras:  enumerator,
		Rotation: capture.FixedRotation(0),
		Encoder:  encoder,
	})
	if err != nil {
		// ...
	}
	if err := s.Open(); err != nil {
		// Retry, or give up. Nothing was acquired.
	}
	defer s.Close()
	if err := s.Start(); err != nil {
		// ...
	}

The package never encodes, renders or transmits anything itself.
*/
package capture
