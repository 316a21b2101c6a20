package monitor

import (
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/broadcast"
	"github.com/itohio/goeeg/pkg/sample"
)

// Summary describes one diagnostic window.
type Summary struct {
	Start       time.Time
	End         time.Time
	Frames      int
	Delivered   int
	Failed      int
	Sheds       int
	Observers   int // Live observers after the last frame
	MessageSize int // Bytes of the last encoded frame
	Last        []float32
	Min         []float32
	Max         []float32
}

// Monitor accumulates per-tick statistics and reports a Summary every
// interval. It has no effect on delivery.
type Monitor struct {
	interval time.Duration
	channels int
	log      zerolog.Logger

	mu      sync.Mutex
	current Summary

	callbacks []func(Summary)
	cbMu      sync.RWMutex
}

// New creates a monitor for frames with the given channel count.
func New(interval time.Duration, channels int, log zerolog.Logger) *Monitor {
	m := &Monitor{
		interval: interval,
		channels: channels,
		log:      log.With().Str("component", "monitor").Logger(),
	}
	m.reset(time.Time{})
	return m
}

// OnReport registers a callback invoked with every completed summary.
func (m *Monitor) OnReport(callback func(Summary)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Record adds one tick to the current window and reports the window once
// it spans the interval.
func (m *Monitor) Record(now time.Time, f sample.Frame, size int, res broadcast.Result, observers int) {
	m.mu.Lock()

	s := &m.current
	if s.Start.IsZero() {
		s.Start = now
	}

	s.End = now
	s.Frames++
	s.Delivered += res.Delivered
	s.Failed += res.Failed
	if res.Shed > 0 {
		s.Sheds++
	}
	s.Observers = observers
	s.MessageSize = size

	for i, r := range f.Channels {
		if i >= m.channels {
			break
		}
		s.Last[i] = r.Value
		if s.Frames == 1 || r.Value < s.Min[i] {
			s.Min[i] = r.Value
		}
		if s.Frames == 1 || r.Value > s.Max[i] {
			s.Max[i] = r.Value
		}
	}

	if now.Sub(s.Start) < m.interval {
		m.mu.Unlock()
		return
	}

	done := m.current
	m.reset(now)
	m.mu.Unlock()

	m.report(done)
}

func (m *Monitor) reset(start time.Time) {
	m.current = Summary{
		Start: start,
		Last:  make([]float32, m.channels),
		Min:   make([]float32, m.channels),
		Max:   make([]float32, m.channels),
	}
}

func (m *Monitor) report(s Summary) {
	m.log.Info().
		Dur("window", s.End.Sub(s.Start)).
		Int("frames", s.Frames).
		Int("observers", s.Observers).
		Int("delivered", s.Delivered).
		Int("failed", s.Failed).
		Int("sheds", s.Sheds).
		Str("size", humanize.Bytes(uint64(s.MessageSize))).
		Floats32("last", s.Last).
		Floats32("min", s.Min).
		Floats32("max", s.Max).
		Msg("stream diagnostics")

	m.cbMu.RLock()
	callbacks := slices.Clone(m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(s)
	}
}
