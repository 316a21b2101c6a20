package sample

import (
	"github.com/chewxy/math32"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/ads"
)

// MicrovoltsPerVolt is the fixed scale from reader volts to reported units.
const MicrovoltsPerVolt = 1e6

// Reader reads one channel and returns volts.
type Reader interface {
	ReadChannel(ch int) (float32, error)
}

// Reading is one sanitized channel value.
// A Value of 0 may stand in for a failed or invalid read and is not
// equivalent to a measured zero.
type Reading struct {
	Channel   int
	SubDevice int
	Pin       int
	Value     float32 // Microvolts, finite and within the clamp range
}

// Frame holds one tick worth of readings ordered by channel.
type Frame struct {
	Timestamp int64 // Milliseconds since process start
	Channels  []Reading
}

// Sampler reads every channel once per tick.
type Sampler struct {
	reader Reader
	topo   ads.Topology
	clamp  float32
	log    zerolog.Logger
}

// NewSampler creates a sampler clamping values to +/-clampMicrovolts.
func NewSampler(reader Reader, topo ads.Topology, clampMicrovolts float64, log zerolog.Logger) *Sampler {
	return &Sampler{
		reader: reader,
		topo:   topo,
		clamp:  float32(clampMicrovolts),
		log:    log.With().Str("component", "sampler").Logger(),
	}
}

// SampleAll reads all channels in ascending order and returns a new frame.
// A failing channel reads as 0 and never aborts the tick.
func (s *Sampler) SampleAll(timestamp int64) Frame {
	frame := Frame{
		Timestamp: timestamp,
		Channels:  make([]Reading, s.topo.Channels),
	}

	for ch := range frame.Channels {
		var value float32

		volts, err := s.reader.ReadChannel(ch)
		if err != nil {
			s.log.Debug().Err(err).Int("channel", ch).Msg("read failed")
			value = 0
		} else {
			value = volts * MicrovoltsPerVolt
		}

		frame.Channels[ch] = Reading{
			Channel:   ch,
			SubDevice: s.topo.SubDevice(ch),
			Pin:       s.topo.Pin(ch),
			Value:     Sanitize(value, s.clamp),
		}
	}

	return frame
}

// Sanitize replaces NaN and infinities with 0, then clamps to [-limit, +limit].
func Sanitize(v, limit float32) float32 {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return 0
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
