package capture

import (
	"sync"

	errors "golang.org/x/xerrors"
)

// A deliverFunc forwards one frame to its consumer.
type deliverFunc func(frame interface{}) error

// A deliveryLoop forwards frames for one path on its own goroutine. Frames are
// handed over one at a time through an unbuffered channel, and the sender
// waits until delivery has finished. There is never more than one frame in
// the loop, so nothing is queued on behalf of a slow or absent consumer.
type deliveryLoop struct {
	name    string
	deliver deliverFunc

	in  chan interface{}
	ack chan error

	// Serializes handoff() callers.
	sendMu sync.Mutex

	// Closed when stop() is requested, to trigger run loop exit.
	quit chan struct{}

	// Closed when run loop actually terminates.
	terminated chan struct{}

	sync.Mutex
}

func newDeliveryLoop(name string, deliver deliverFunc) *deliveryLoop {
	return &deliveryLoop{
		name:    name,
		deliver: deliver,
		in:      make(chan interface{}),
		ack:     make(chan error),
	}
}

var errLoopStopped = errors.New("capture: delivery loop not running")

func (loop *deliveryLoop) start() {
	loop.Lock()
	defer loop.Unlock()

	if loop.quit != nil {
		panic("deliveryLoop: already running")
	}
	loop.quit = make(chan struct{})
	loop.terminated = make(chan struct{})

	go loop.run(loop.quit, loop.terminated)
}

func (loop *deliveryLoop) run(quit <-chan struct{}, terminated chan<- struct{}) {
	defer close(terminated)
	log.Debug("%s delivery loop started", loop.name)
	for {
		select {
		case <-quit:
			log.Debug("%s delivery loop stopped", loop.name)
			return
		case frame := <-loop.in:
			// The sender is blocked waiting for this.
			loop.ack <- loop.deliverSafely(frame)
		}
	}
}

func (loop *deliveryLoop) deliverSafely(frame interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("capture: %s consumer panicked: %v", loop.name, r)
		}
	}()
	return loop.deliver(frame)
}

// stop terminates the run loop and waits for it to exit. A frame that is
// mid-delivery completes first. It is a no-op when not running.
func (loop *deliveryLoop) stop() {
	loop.Lock()
	defer loop.Unlock()

	if loop.quit == nil {
		return
	}
	close(loop.quit)
	<-loop.terminated

	loop.quit = nil
	loop.terminated = nil
}

func (loop *deliveryLoop) running() bool {
	loop.Lock()
	defer loop.Unlock()
	return loop.quit != nil
}

// handoff passes frame to the loop and waits for it to be delivered. It
// returns errLoopStopped without delivering if the loop is not running or
// stops before accepting the frame; otherwise it returns the delivery error.
func (loop *deliveryLoop) handoff(frame interface{}) error {
	loop.sendMu.Lock()
	defer loop.sendMu.Unlock()

	loop.Lock()
	quit := loop.quit
	loop.Unlock()
	if quit == nil {
		return errLoopStopped
	}

	select {
	case loop.in <- frame:
	case <-quit:
		return errLoopStopped
	}
	return <-loop.ack
}
