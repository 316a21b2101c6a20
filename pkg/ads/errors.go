package ads

import "errors"

var (
	// ErrNotConnected is returned by bus operations before Connect.
	ErrNotConnected = errors.New("not connected")
	// ErrTimeout is returned when the bridge does not answer in time.
	ErrTimeout = errors.New("bridge timeout")
	// ErrBridge wraps an ERR reply from the bridge firmware.
	ErrBridge = errors.New("bridge error")
	// ErrOffline is returned by the mock for addresses configured offline.
	ErrOffline = errors.New("sub-device offline")
)
