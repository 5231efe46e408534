package pool

import (
	"fmt"
	"time"
)

// EventType identifies a pool lifecycle event.
type EventType uint8

const (
	// EventCreated fires after the factory created a new object.
	EventCreated EventType = iota
	// EventAdopted fires when Release takes ownership of a foreign object.
	EventAdopted
	// EventReused fires when a passive instance is handed out again.
	EventReused
	// EventShared fires when REUSE overflow hands out an active instance.
	EventShared
	// EventReleased fires when an object is returned to the passive buffer
	// or a shared holder lets go.
	EventReleased
	// EventDropped fires when a returned object does not fit the passive buffer.
	EventDropped
	// EventDestroyed fires after the factory destroyed an object.
	EventDestroyed
	// EventOverflow fires whenever a request hits the capacity ceiling.
	EventOverflow
	// EventDisposed fires once when the pool is disposed.
	EventDisposed
)

var eventNames = [...]string{
	EventCreated:   "created",
	EventAdopted:   "adopted",
	EventReused:    "reused",
	EventShared:    "shared",
	EventReleased:  "released",
	EventDropped:   "dropped",
	EventDestroyed: "destroyed",
	EventOverflow:  "overflow",
	EventDisposed:  "disposed",
}

// String implements fmt.Stringer.
func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Event is delivered to an Observer after the pool state changed.
type Event struct {
	Type EventType
	Key  any
	// ID is the object identity, zero for pool-wide events.
	ID    uint64
	Time  time.Time
	Stats Stats
}

// Stats is a snapshot of pool counters.
type Stats struct {
	All     int
	Active  int
	Passive int

	Created   uint64
	Adopted   uint64
	Reused    uint64
	Shared    uint64
	Released  uint64
	Destroyed uint64
	Overflows uint64
}

// Observer receives pool events. Observers run synchronously on the
// goroutine that drives the pool and must not call back into it.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Observers fans events out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
