package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"gopkg.in/yaml.v3"
)

const (
	// DeviceSerial selects the serial I2C bridge.
	DeviceSerial = "serial"
	// DeviceMock selects the simulated bus.
	DeviceMock = "mock"
)

// Config represents the application configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Server      ServerConfig      `yaml:"server"`
	Broadcast   BroadcastConfig   `yaml:"broadcast"`
	Relay       RelayConfig       `yaml:"relay"`
	Log         LogConfig         `yaml:"log"`
	Mock        MockConfig        `yaml:"mock"`
}

// DeviceConfig describes how the ADC sub-devices are reached.
type DeviceConfig struct {
	Kind      string        `yaml:"kind"`
	Port      string        `yaml:"port"`
	BaudRate  int           `yaml:"baud_rate"`
	Timeout   time.Duration `yaml:"timeout"`   // Per-command bridge timeout
	Addresses []uint8       `yaml:"addresses"` // One I2C address per sub-device, in channel order
	Gain      string        `yaml:"gain"`
	DataRate  int           `yaml:"data_rate"` // Samples per second
}

// AcquisitionConfig contains the sampling parameters.
type AcquisitionConfig struct {
	Channels        int           `yaml:"channels"`
	Interval        time.Duration `yaml:"interval"`
	ClampMicrovolts float64       `yaml:"clamp_microvolts"`
}

// ServerConfig contains the HTTP and stream endpoint parameters.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	StreamPath   string        `yaml:"stream_path"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SendQueue    int           `yaml:"send_queue"` // Outbound messages buffered per observer
}

// BroadcastConfig contains the fan-out limits.
type BroadcastConfig struct {
	MaxObservers       int           `yaml:"max_observers"` // Shed everyone above this many live observers
	CleanupLimit       int           `yaml:"cleanup_limit"` // -1 disables the cap
	DiagnosticInterval time.Duration `yaml:"diagnostic_interval"`
}

// RelayConfig contains the optional Redis frame mirror. Empty Addr disables it.
type RelayConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	Queue    int    `yaml:"queue"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json

	// Optional rotated JSON log file in addition to stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MockConfig contains mock bus configuration.
type MockConfig struct {
	AmplitudeMicrovolts float64 `yaml:"amplitude_microvolts"`
	FrequencyHz         float64 `yaml:"frequency_hz"`
	NoiseMicrovolts     float64 `yaml:"noise_microvolts"`
	Offline             []uint8 `yaml:"offline"` // Addresses that fail every read
}

// Default returns a default configuration matching the two-ADS1115 reference rig.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Kind:      DeviceSerial,
			Port:      "/dev/ttyUSB0",
			BaudRate:  115200,
			Timeout:   100 * time.Millisecond,
			Addresses: []uint8{0x48, 0x4B},
			Gain:      "sixteen",
			DataRate:  860,
		},
		Acquisition: AcquisitionConfig{
			Channels:        8,
			Interval:        50 * time.Millisecond, // 20 Hz
			ClampMicrovolts: 1000000,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			StreamPath:   "/ws",
			WriteTimeout: 50 * time.Millisecond,
			SendQueue:    4,
		},
		Broadcast: BroadcastConfig{
			MaxObservers:       3,
			CleanupLimit:       8,
			DiagnosticInterval: 5 * time.Second,
		},
		Relay: RelayConfig{
			Channel: "eeg:frames",
			Queue:   16,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Mock: MockConfig{
			AmplitudeMicrovolts: 50,
			FrequencyHz:         10,
			NoiseMicrovolts:     5,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.ensureDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills every zero-valued field from Default().
func (c *Config) ensureDefaults() error {
	if err := mergo.Merge(c, Default()); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}
	return nil
}

// ApplyEnv overrides selected fields from EEG_* environment variables.
func (c *Config) ApplyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"EEG_DEVICE_KIND", &c.Device.Kind},
		{"EEG_DEVICE_PORT", &c.Device.Port},
		{"EEG_LISTEN_ADDR", &c.Server.Addr},
		{"EEG_REDIS_ADDR", &c.Relay.Addr},
		{"EEG_REDIS_PASSWORD", &c.Relay.Password},
		{"EEG_REDIS_CHANNEL", &c.Relay.Channel},
		{"EEG_LOG_LEVEL", &c.Log.Level},
		{"EEG_LOG_FORMAT", &c.Log.Format},
		{"EEG_LOG_FILE", &c.Log.File},
	}

	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

// Validate reports configuration that the acquisition pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Device.Kind {
	case DeviceSerial:
		if c.Device.Port == "" {
			errs = append(errs, errors.New("device.port is required for the serial bridge"))
		}
	case DeviceMock:
	default:
		errs = append(errs, fmt.Errorf("device.kind %q is not one of %s, %s", c.Device.Kind, DeviceSerial, DeviceMock))
	}

	subDevices := len(c.Device.Addresses)
	if subDevices == 0 {
		errs = append(errs, errors.New("device.addresses must list at least one sub-device"))
	}
	if c.Acquisition.Channels <= 0 {
		errs = append(errs, fmt.Errorf("acquisition.channels must be positive, got %d", c.Acquisition.Channels))
	} else if subDevices > 0 && c.Acquisition.Channels%subDevices != 0 {
		errs = append(errs, fmt.Errorf("acquisition.channels (%d) must divide evenly across %d sub-devices", c.Acquisition.Channels, subDevices))
	}
	if c.Acquisition.Interval <= 0 {
		errs = append(errs, errors.New("acquisition.interval must be positive"))
	}
	if c.Acquisition.ClampMicrovolts <= 0 {
		errs = append(errs, errors.New("acquisition.clamp_microvolts must be positive"))
	}
	if !strings.HasPrefix(c.Server.StreamPath, "/") || c.Server.StreamPath == "/" {
		errs = append(errs, fmt.Errorf("server.stream_path %q must be an absolute path other than /", c.Server.StreamPath))
	}
	if c.Broadcast.MaxObservers <= 0 {
		errs = append(errs, errors.New("broadcast.max_observers must be positive"))
	}
	if c.Broadcast.CleanupLimit != -1 && c.Broadcast.CleanupLimit < c.Broadcast.MaxObservers {
		errs = append(errs, fmt.Errorf("broadcast.cleanup_limit (%d) must be -1 or at least max_observers (%d)", c.Broadcast.CleanupLimit, c.Broadcast.MaxObservers))
	}

	return errors.Join(errs...)
}
