//////////////////////////////////////////////////////////////////////////////
//
// Broadcast frames from one writer to multiple subscribers.
//
// Each subscriber has its own channel (i.e. queue). When a frame is
// broadcast, the same byte slice is added to each subscriber's channel; the
// data within the slice is not copied, so subscribers must treat it as
// read-only.
//
// Each subscriber may specify the maximum number of frames it wishes to
// buffer. Once this capacity is reached, the oldest frame is dropped for
// each new frame.
//
//////////////////////////////////////////////////////////////////////////////

package sink

import (
	"sync"
	"sync/atomic"
)

// Broadcaster implements capture.Encoder, fanning frames out to subscribers.
type Broadcaster struct {
	// Frames dropped on slow subscribers. Accessed atomically.
	dropped uint64

	mutex       sync.RWMutex
	subscribers []chan []byte
	closed      bool
}

// NewBroadcaster instantiates a new one-to-many frame broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Close the broadcaster. All subscriber channels are closed and drained, and
// further frames are rejected.
func (b *Broadcaster) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, subscriber := range b.subscribers {
		close(subscriber)
		for len(subscriber) > 0 {
			<-subscriber // Drain
		}
	}

	// Allow subscriber channels to be garbage collected
	b.subscribers = nil
	b.closed = true
	return nil
}

// Subscribe to broadcasts, buffering up to n frames for the subscriber.
func (b *Broadcaster) Subscribe(n int) <-chan []byte {
	if n < 1 {
		panic("malformed buffer size")
	}

	channel := make(chan []byte, n)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		close(channel)
		return channel
	}
	b.subscribers = append(b.subscribers, channel)
	return channel
}

// Unsubscribe from broadcaster by providing the read-only channel returned
// by Subscribe(). The channel is closed.
func (b *Broadcaster) Unsubscribe(s <-chan []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i, subscriber := range b.subscribers {
		if s == subscriber {
			close(subscriber)
			n := len(b.subscribers) - 1
			b.subscribers[i] = b.subscribers[n]
			b.subscribers[n] = nil
			b.subscribers = b.subscribers[:n]
			return
		}
	}
}

// Subscribers returns the current number of subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.subscribers)
}

// Dropped returns the number of frames dropped on slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// AddFrameData broadcasts a frame. It never blocks on a subscriber. The
// frame stays queued after the call returns, so it must not be a buffer the
// caller reuses.
func (b *Broadcaster) AddFrameData(frame []byte) error {
	// The write lock keeps Unsubscribe from closing a channel mid-send, and
	// makes the drop-oldest exchange atomic.
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return errClosed
	}

	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- frame:
		default:
			// Drop oldest frame, add newest
			select {
			case <-subscriber:
			default:
			}
			subscriber <- frame
			atomic.AddUint64(&b.dropped, 1)
		}
	}
	return nil
}
