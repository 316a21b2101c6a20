package observer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid observer state transition")
	ErrQueueFull         = errors.New("observer send queue full")
	ErrNotLive           = errors.New("observer is not live")
)

// State is the lifecycle state of an observer.
type State int32

const (
	Connecting State = iota
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the transport side of an observer.
// Send must not block; a message that cannot be queued is an error.
type Conn interface {
	Send(msg []byte) error
	Close() error
}

var lastID atomic.Uint32

// NextID returns a process-wide unique observer id. Ids are never reused.
func NextID() uint32 {
	return lastID.Add(1)
}

// Observer is one connected recipient of frames.
type Observer struct {
	ID          uint32
	RemoteAddr  string
	ConnectedAt time.Time

	state atomic.Int32
	conn  Conn

	mu     sync.Mutex
	reason string
}

// New creates an observer in the Connecting state.
func New(id uint32, remoteAddr string, conn Conn) *Observer {
	return &Observer{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// State returns the current lifecycle state.
func (o *Observer) State() State {
	return State(o.state.Load())
}

// Activate moves the observer from Connecting to Live.
func (o *Observer) Activate() error {
	if !o.state.CompareAndSwap(int32(Connecting), int32(Live)) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State(), Live)
	}
	return nil
}

// Send hands msg to the transport. Only live observers accept messages.
func (o *Observer) Send(msg []byte) error {
	if o.State() != Live {
		return ErrNotLive
	}
	return o.conn.Send(msg)
}

// Close moves the observer to Closed and releases its connection.
// Closing an already closed observer is a no-op.
func (o *Observer) Close(reason string) error {
	o.mu.Lock()
	if o.State() == Closed {
		o.mu.Unlock()
		return nil
	}
	o.reason = reason
	o.state.Store(int32(Closed))
	o.mu.Unlock()

	if o.conn == nil {
		return nil
	}
	return o.conn.Close()
}

// Reason returns why the observer was closed, or "" while it is open.
func (o *Observer) Reason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}
