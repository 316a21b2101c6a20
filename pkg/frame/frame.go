package frame

import (
	"encoding/json"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/itohio/goeeg/pkg/sample"
)

// message is the wire shape of one frame. Field order is part of the format.
type message struct {
	Timestamp int64     `json:"timestamp"`
	Channels  []channel `json:"channels"`
}

type channel struct {
	ID    int     `json:"id"`
	Value float32 `json:"value"`
	ADS   int     `json:"ads"`
	Pin   int     `json:"pin"`
}

// Encode packages a frame into its JSON message. Encoding the same frame
// twice yields identical bytes. Non-finite values are written as 0.
func Encode(f sample.Frame) ([]byte, error) {
	msg := message{
		Timestamp: f.Timestamp,
		Channels:  make([]channel, len(f.Channels)),
	}

	for i, r := range f.Channels {
		v := r.Value
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			v = 0
		}
		msg.Channels[i] = channel{
			ID:    r.Channel,
			Value: v,
			ADS:   r.SubDevice,
			Pin:   r.Pin,
		}
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return b, nil
}

// Decode parses a message produced by Encode.
func Decode(b []byte) (sample.Frame, error) {
	var msg message
	if err := json.Unmarshal(b, &msg); err != nil {
		return sample.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	f := sample.Frame{
		Timestamp: msg.Timestamp,
		Channels:  make([]sample.Reading, len(msg.Channels)),
	}
	for i, c := range msg.Channels {
		f.Channels[i] = sample.Reading{
			Channel:   c.ID,
			SubDevice: c.ADS,
			Pin:       c.Pin,
			Value:     c.Value,
		}
	}
	return f, nil
}
