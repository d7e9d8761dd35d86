package sink

import (
	"os"
	"sync"

	errors "golang.org/x/xerrors"
)

// FileSink writes each raw frame to a file, back to back. The output of an
// NV21 session can be played with e.g.
//
//	ffplay -f rawvideo -pixel_format nv21 -video_size 1280x720 frames.nv21
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	frames int
}

// NewFileSink creates (or truncates) filename.
func NewFileSink(filename string) (*FileSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Errorf("sink: %w", err)
	}

	return &FileSink{file: f}, nil
}

// AddFrameData appends a frame to the file.
func (s *FileSink) AddFrameData(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errClosed
	}
	if _, err := s.file.Write(frame); err != nil {
		return errors.Errorf("sink: frame %d: %w", s.frames, err)
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written.
func (s *FileSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Close file sink
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	log.Debug("closed after %d frames", s.frames)
	return err
}
