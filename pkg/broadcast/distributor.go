package broadcast

import (
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/observer"
)

// Close reasons reported to observers and logs.
const (
	ReasonOverload   = "overload"
	ReasonSendFailed = "send failed"
	ReasonDisconnect = "disconnect"
	ReasonTransport  = "transport error"
	ReasonCleanup    = "cleanup"
	ReasonShutdown   = "shutdown"
)

// Result describes the outcome of one Broadcast call.
type Result struct {
	Delivered int
	Failed    int
	Shed      int // Observers closed by overload shedding
}

// Stats are running totals since the distributor was created.
type Stats struct {
	Live       int
	Registered uint64
	Removed    uint64
	Delivered  uint64
	Failed     uint64
	Sheds      uint64
	CleanedUp  uint64
}

// Distributor owns the live observer set and fans frames out to it.
// It is not safe for concurrent use; one loop goroutine owns it and all
// connection events reach it through Handle.
type Distributor struct {
	maxObservers int
	observers    map[uint32]*observer.Observer
	stats        Stats
	log          zerolog.Logger
}

// New creates an empty distributor.
func New(cfg config.BroadcastConfig, log zerolog.Logger) *Distributor {
	return &Distributor{
		maxObservers: cfg.MaxObservers,
		observers:    make(map[uint32]*observer.Observer),
		log:          log.With().Str("component", "broadcast").Logger(),
	}
}

// Register activates o and adds it to the live set.
func (d *Distributor) Register(o *observer.Observer) error {
	if _, ok := d.observers[o.ID]; ok {
		return fmt.Errorf("observer %d already registered", o.ID)
	}
	if err := o.Activate(); err != nil {
		return fmt.Errorf("failed to register observer %d: %w", o.ID, err)
	}

	d.observers[o.ID] = o
	d.stats.Registered++
	d.log.Info().Uint32("id", o.ID).Str("remote", o.RemoteAddr).Int("live", len(d.observers)).Msg("observer connected")
	return nil
}

// Remove closes observer id and drops it from the live set.
// It reports whether id was registered.
func (d *Distributor) Remove(id uint32, reason string) bool {
	o, ok := d.observers[id]
	if !ok {
		return false
	}

	delete(d.observers, id)
	d.stats.Removed++
	if err := o.Close(reason); err != nil {
		d.log.Debug().Err(err).Uint32("id", id).Msg("close failed")
	}
	d.log.Info().Uint32("id", id).Str("reason", reason).Int("live", len(d.observers)).Msg("observer closed")
	return true
}

// Handle applies one connection event to the live set.
func (d *Distributor) Handle(ev observer.Event) {
	switch ev.Kind {
	case observer.EventConnect:
		if ev.Observer == nil {
			d.log.Warn().Uint32("id", ev.ObserverID).Msg("connect event without observer")
			return
		}
		if err := d.Register(ev.Observer); err != nil {
			d.log.Warn().Err(err).Msg("observer rejected")
			_ = ev.Observer.Close(ReasonTransport)
		}
	case observer.EventDisconnect:
		d.Remove(ev.ObserverID, ReasonDisconnect)
	case observer.EventData:
		// Inbound messages are accepted and ignored.
		d.log.Debug().Uint32("id", ev.ObserverID).Int("bytes", len(ev.Payload)).Msg("inbound message ignored")
	case observer.EventError:
		d.log.Warn().Err(ev.Err).Uint32("id", ev.ObserverID).Msg("transport error")
		d.Remove(ev.ObserverID, ReasonTransport)
	default:
		d.log.Warn().Stringer("kind", ev.Kind).Msg("unknown event")
	}
}

// Broadcast delivers msg to every live observer.
//
// With no observers it does nothing. With more than the configured maximum it
// closes every observer and delivers nothing. Otherwise a failed send closes
// only the failing observer.
func (d *Distributor) Broadcast(msg []byte) Result {
	var res Result

	d.prune()
	if len(d.observers) == 0 {
		return res
	}

	if len(d.observers) > d.maxObservers {
		live := len(d.observers)
		res.Shed = d.CloseAll(ReasonOverload)
		d.stats.Sheds++
		d.log.Warn().Int("live", live).Int("max", d.maxObservers).Msg("too many observers, shedding all connections")
		return res
	}

	for _, id := range d.ids() {
		if err := d.observers[id].Send(msg); err != nil {
			d.log.Debug().Err(err).Uint32("id", id).Msg("send failed")
			d.Remove(id, ReasonSendFailed)
			res.Failed++
			continue
		}
		res.Delivered++
	}

	d.stats.Delivered += uint64(res.Delivered)
	d.stats.Failed += uint64(res.Failed)
	return res
}

// Cleanup drops observers whose connection already closed and then closes
// the oldest observers beyond limit. It returns how many were dropped.
func (d *Distributor) Cleanup(limit int) int {
	n := d.prune()

	if limit >= 0 && len(d.observers) > limit {
		ids := d.ids()
		for _, id := range ids[:len(ids)-limit] {
			d.Remove(id, ReasonCleanup)
			n++
		}
	}

	d.stats.CleanedUp += uint64(n)
	return n
}

// CloseAll closes every observer and returns how many were closed.
func (d *Distributor) CloseAll(reason string) int {
	ids := d.ids()
	for _, id := range ids {
		d.Remove(id, reason)
	}
	return len(ids)
}

// Count returns the number of observers in the live set.
func (d *Distributor) Count() int {
	return len(d.observers)
}

// Stats returns running totals.
func (d *Distributor) Stats() Stats {
	s := d.stats
	s.Live = len(d.observers)
	return s
}

// prune removes observers that were closed outside the distributor.
func (d *Distributor) prune() int {
	var n int
	for id, o := range d.observers {
		if o.State() == observer.Closed {
			delete(d.observers, id)
			d.stats.Removed++
			n++
		}
	}
	return n
}

// ids returns registered ids oldest first.
func (d *Distributor) ids() []uint32 {
	return slices.Sorted(maps.Keys(d.observers))
}
