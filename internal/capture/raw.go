package capture

import (
	"sync/atomic"

	errors "golang.org/x/xerrors"
)

type rawMsg struct {
	buf *FrameBuffer
	st  *stream
}

// onRawFrame is the device's frame callback. It owns buf for the duration of
// the call. Whatever happens to the frame, buf goes back to the pool and a
// buffer is resubmitted to dev before returning, so the device is never
// starved.
func (s *Session) onRawFrame(buf *FrameBuffer, dev Device) {
	st := s.current()
	if st == nil || st.pool == nil {
		// Closed underneath us: the buffer's pool has already been reset.
		atomic.AddUint64(&s.counters.rawDropped, 1)
		return
	}
	defer s.recycle(st.pool, buf, dev)

	switch err := s.raw.handoff(rawMsg{buf, st}); err {
	case nil:
	case errLoopStopped:
		atomic.AddUint64(&s.counters.rawDropped, 1)
	default:
		atomic.AddUint64(&s.counters.encoderErrors, 1)
		s.log.Warn("encoder: %v", err)
	}
}

func (s *Session) deliverRaw(frame interface{}) error {
	msg := frame.(rawMsg)

	data := msg.buf.Bytes()
	if !s.cfg.ZeroCopy {
		// The buffer is handed back as soon as this returns.
		data = append([]byte(nil), data...)
	}
	if err := s.cfg.Encoder.AddFrameData(data); err != nil {
		return errors.Errorf("capture: frame %d: %w", msg.buf.Index(), err)
	}
	atomic.AddUint64(&s.counters.rawDelivered, 1)
	return nil
}

func (s *Session) recycle(pool *BufferPool, buf *FrameBuffer, dev Device) {
	if err := pool.Release(buf); err != nil {
		if errors.Is(err, ErrStaleBuffer) {
			s.log.Debug("dropping buffer from a previous allocation")
			return
		}
		s.log.Error("returning frame buffer: %v", err)
		return
	}
	next, err := pool.Acquire()
	if err != nil {
		s.log.Error("resubmitting frame buffer: %v", err)
		return
	}
	dev.AddCallbackBuffer(next)
}
