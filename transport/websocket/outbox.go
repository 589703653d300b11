package websocket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wricardo/quizler/game/protocol"
)

var (
	errQueueClosed = errors.New("connection closed")
	errQueueFull   = errors.New("send buffer full")
	errDetached    = errors.New("no longer joined")
)

// queue holds encoded frames waiting for the write pump. A full queue closes
// itself; a client that cannot keep up is disconnected.
type queue struct {
	frames chan []byte
	mu     sync.Mutex
	closed bool
}

func newQueue(size int) *queue {
	if size <= 0 {
		size = 256
	}
	return &queue{frames: make(chan []byte, size)}
}

// push enqueues a frame without blocking.
func (q *queue) push(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errQueueClosed
	}
	select {
	case q.frames <- frame:
		return nil
	default:
		q.closed = true
		close(q.frames)
		return errQueueFull
	}
}

// close stops the write pump once the pending frames are written.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.frames)
	}
}

// outbox is the engine.Peer handed to a game for one admission. Detaching it
// makes every later Send fail, so the game drops the participant.
type outbox struct {
	q        *queue
	detached atomic.Bool
}

func newOutbox(q *queue) *outbox {
	return &outbox{q: q}
}

// Send encodes msg and queues it for the connection.
func (o *outbox) Send(msg protocol.ServerMessage) error {
	if o.detached.Load() {
		return errDetached
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msg.ServerType(), err)
	}
	return o.q.push(frame)
}

func (o *outbox) detach() {
	o.detached.Store(true)
}
