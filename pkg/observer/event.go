package observer

import "fmt"

// EventKind tags a connection event emitted by the transport.
type EventKind int

const (
	EventConnect EventKind = iota + 1
	EventDisconnect
	EventData
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventData:
		return "data"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a connection notification. Observer is set for EventConnect,
// Payload for EventData and Err for EventError.
type Event struct {
	Kind       EventKind
	ObserverID uint32
	Observer   *Observer
	Payload    []byte
	Err        error
}

// Connect returns the event announcing a new observer.
func Connect(o *Observer) Event {
	return Event{Kind: EventConnect, ObserverID: o.ID, Observer: o}
}

// Disconnect returns the event announcing the transport closed id.
func Disconnect(id uint32) Event {
	return Event{Kind: EventDisconnect, ObserverID: id}
}

// Data returns the event carrying an inbound message from id.
func Data(id uint32, payload []byte) Event {
	return Event{Kind: EventData, ObserverID: id, Payload: payload}
}

// Error returns the event reporting a transport failure for id.
func Error(id uint32, err error) Event {
	return Event{Kind: EventError, ObserverID: id, Err: err}
}
