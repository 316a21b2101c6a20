package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/broadcast"
	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/frame"
	"github.com/itohio/goeeg/pkg/monitor"
	"github.com/itohio/goeeg/pkg/observer"
	"github.com/itohio/goeeg/pkg/sample"
)

const eventQueue = 64

// Sampler produces one frame per tick.
type Sampler interface {
	SampleAll(timestamp int64) sample.Frame
}

// Publisher receives every encoded frame in addition to the observers.
// Publish must not block.
type Publisher interface {
	Publish(msg []byte) bool
}

// Loop is the single event loop of the stream. It owns the distributor:
// ticks and connection events are processed one at a time.
type Loop struct {
	interval     time.Duration
	cleanupLimit int

	sampler Sampler
	dist    *broadcast.Distributor
	mon     *monitor.Monitor
	relays  []Publisher
	log     zerolog.Logger

	events chan observer.Event
	done   chan struct{}
	start  time.Time
}

// New creates a loop. Run must be called to start ticking.
func New(cfg *config.Config, sampler Sampler, mon *monitor.Monitor, log zerolog.Logger) *Loop {
	return &Loop{
		interval:     cfg.Acquisition.Interval,
		cleanupLimit: cfg.Broadcast.CleanupLimit,
		sampler:      sampler,
		dist:         broadcast.New(cfg.Broadcast, log),
		mon:          mon,
		log:          log.With().Str("component", "stream").Logger(),
		events:       make(chan observer.Event, eventQueue),
		done:         make(chan struct{}),
		start:        time.Now(),
	}
}

// AddRelay mirrors every encoded frame to p.
func (l *Loop) AddRelay(p Publisher) {
	l.relays = append(l.relays, p)
}

// Notify queues a connection event for the loop. It returns false once the
// loop has stopped.
func (l *Loop) Notify(ev observer.Event) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.events <- ev:
	case <-l.done:
		return false
	}

	// The loop may have stopped after the send; its final discard can miss ev.
	select {
	case <-l.done:
		l.discard()
	default:
	}
	return true
}

// Run ticks every interval until ctx is cancelled, then closes every
// observer. A tick that overruns the interval is followed immediately by
// the next one; ticks never overlap or queue up.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().Dur("interval", l.interval).Msg("stream started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			close(l.done)
			n := l.dist.CloseAll(broadcast.ReasonShutdown)
			n += l.discard()
			l.log.Info().Int("closed", n).Msg("stream stopped")
			return nil
		case ev := <-l.events:
			l.dist.Handle(ev)
		case <-timer.C:
			fired := time.Now()
			l.tick(fired)

			wait := l.interval - time.Since(fired)
			if wait < 0 {
				l.log.Debug().Dur("overrun", -wait).Msg("tick overran interval")
				wait = 0
			}
			timer.Reset(wait)
		}
	}
}

// tick runs one sample, encode and broadcast cycle.
func (l *Loop) tick(now time.Time) broadcast.Result {
	l.drain()

	f := l.sampler.SampleAll(now.Sub(l.start).Milliseconds())

	msg, err := frame.Encode(f)
	if err != nil {
		l.log.Error().Err(err).Msg("failed to encode frame")
		return broadcast.Result{}
	}

	res := l.dist.Broadcast(msg)
	for _, r := range l.relays {
		r.Publish(msg)
	}

	l.dist.Cleanup(l.cleanupLimit)

	if l.mon != nil {
		l.mon.Record(now, f, len(msg), res, l.dist.Count())
	}
	return res
}

// drain applies every queued connection event so a tick sees all events
// that arrived before it started.
func (l *Loop) drain() {
	for {
		select {
		case ev := <-l.events:
			l.dist.Handle(ev)
		default:
			return
		}
	}
}

// discard empties the event queue after the loop stopped, closing observers
// that connected but were never registered. Safe for concurrent use.
func (l *Loop) discard() int {
	var n int
	for {
		select {
		case ev := <-l.events:
			if ev.Kind == observer.EventConnect && ev.Observer != nil {
				_ = ev.Observer.Close(broadcast.ReasonShutdown)
				n++
			}
		default:
			return n
		}
	}
}
