package capture

import (
	"sync/atomic"
)

type textureMsg struct {
	frame TextureFrame
	st    *stream
}

// OnTextureFrameAvailable is called on the render thread for every frame the
// device draws into the bound surface. The frame is forwarded to the consumer
// with its current orientation; front-facing frames are mirrored so that they
// look like a mirror image on screen. Frames are dropped, never queued, when
// the session is not streaming or no consumer is attached.
func (s *Session) OnTextureFrameAvailable(handle TextureHandle, m Matrix, timestampNs int64) {
	st := s.current()
	if st == nil || !st.paths.has(PathTexture) {
		atomic.AddUint64(&s.counters.textureDropped, 1)
		return
	}

	msg := textureMsg{
		frame: TextureFrame{Handle: handle, Matrix: m, TimestampNs: timestampNs},
		st:    st,
	}
	switch err := s.texture.handoff(msg); err {
	case nil:
	case errLoopStopped:
		atomic.AddUint64(&s.counters.textureDropped, 1)
	default:
		s.log.Warn("texture frame %d: %v", timestampNs, err)
	}
}

func (s *Session) deliverTexture(frame interface{}) error {
	msg := frame.(textureMsg)

	c := s.Consumer()
	if c == nil {
		atomic.AddUint64(&s.counters.textureDropped, 1)
		return nil
	}

	// Device rotation can change between frames, so never cache this.
	rotation := FrameOrientation(s.cfg.Rotation.DeviceRotation(), msg.st.info)

	m := msg.frame.Matrix
	if msg.st.info.Facing == FacingFront {
		m = Multiply(m, HorizontalFlipMatrix())
	}

	c.ConsumeTextureFrame(msg.frame.Handle, PixelFormatTextureOES,
		msg.st.params.Width, msg.st.params.Height, rotation, s.cfg.Clock(), m)
	atomic.AddUint64(&s.counters.textureDelivered, 1)
	return nil
}
