package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/itohio/goeeg/pkg/ads"
	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/logging"
	"github.com/itohio/goeeg/pkg/monitor"
	"github.com/itohio/goeeg/pkg/relay"
	"github.com/itohio/goeeg/pkg/sample"
	"github.com/itohio/goeeg/pkg/server"
	"github.com/itohio/goeeg/pkg/stream"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use mocked ADS1115 pair instead of the serial bridge")
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		addrFlag   = flag.String("addr", "", "Listen address override (e.g., :8080)")
		scanFlag   = flag.Bool("scan", false, "List serial ports, scan the bridge I2C bus and exit")
		initFlag   = flag.Bool("init", false, "Write the effective configuration to the config path and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	if *mockFlag {
		cfg.Device.Kind = config.DeviceMock
	}
	if *portFlag != "" {
		cfg.Device.Port = *portFlag
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	logger := logging.New(cfg.Log, os.Stderr)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if *initFlag {
		if err := cfg.Save(*configFlag); err != nil {
			logger.Fatal().Err(err).Msg("failed to write configuration")
		}
		logger.Info().Str("path", *configFlag).Msg("configuration written")
		return
	}

	if *scanFlag {
		if err := scan(os.Stdout, newBus(cfg)); err != nil {
			logger.Fatal().Err(err).Msg("scan failed")
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("stream failed")
	}
}

func newBus(cfg *config.Config) ads.Bus {
	if cfg.Device.Kind == config.DeviceMock {
		return ads.NewMock(&cfg.Mock, cfg.Device.Addresses)
	}
	return ads.NewSerial(cfg.Device.Port, cfg.Device.BaudRate, cfg.Device.Timeout)
}

func newBank(cfg *config.Config) (*ads.Bank, error) {
	gain, err := ads.ParseGain(cfg.Device.Gain)
	if err != nil {
		return nil, err
	}
	rate, err := ads.ParseDataRate(cfg.Device.DataRate)
	if err != nil {
		return nil, err
	}
	return ads.NewBank(newBus(cfg), cfg.Device.Addresses, cfg.Acquisition.Channels, gain, rate)
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := newBank(cfg)
	if err != nil {
		return err
	}
	if err := bank.Init(); err != nil {
		logger.Fatal().Err(err).Str("kind", cfg.Device.Kind).Str("port", cfg.Device.Port).Msg("failed to initialize ADS1115 sub-devices")
	}
	defer bank.Close()

	logger.Info().
		Str("kind", cfg.Device.Kind).
		Int("channels", cfg.Acquisition.Channels).
		Int("sub_devices", len(cfg.Device.Addresses)).
		Str("gain", cfg.Device.Gain).
		Msg("acquisition ready")

	sampler := sample.NewSampler(bank, bank.Topology(), cfg.Acquisition.ClampMicrovolts, logger)
	mon := monitor.New(cfg.Broadcast.DiagnosticInterval, cfg.Acquisition.Channels, logger)
	loop := stream.New(cfg, sampler, mon, logger)

	if cfg.Relay.Addr != "" {
		r, err := relay.Dial(ctx, cfg.Relay, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("relay disabled")
		} else {
			defer r.Close()
			loop.AddRelay(r)
			go r.Run(ctx)
		}
	}

	router := server.SetupRouter(chi.NewRouter(), cfg, loop, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("stream", cfg.Server.StreamPath).Msg("starting to listen for connections")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
		stop()
	}

	if err := <-loopDone; err != nil && runErr == nil {
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	router.Wait()

	return runErr
}
