// simplemqtt - single-topic MQTT client
//
// Connects to one broker, keeps one subscription alive across reconnects,
// logs every message it receives and publishes one demo message after a
// delay. It exits non-zero when the broker stays unreachable beyond the
// retry ceiling.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/config"
	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/influxdb"
	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/logging"
	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnv names the config file when --config is not given.
const configEnv = "SIMPLEMQTT_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds command-line overrides. Only flags the user set are applied.
type cliFlags struct {
	fs *pflag.FlagSet

	configPath   string
	topic        string
	message      string
	logLevel     string
	publishDelay int
}

// parseFlags parses args into cliFlags.
func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{
		fs: pflag.NewFlagSet("simplemqtt", pflag.ContinueOnError),
	}

	f.fs.StringVar(&f.configPath, "config", os.Getenv(configEnv), "Path to YAML config file (env "+configEnv+")")
	f.fs.StringVar(&f.topic, "topic", "", "Topic to subscribe and publish to")
	f.fs.StringVar(&f.message, "message", "", "Demo message payload")
	f.fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.fs.IntVar(&f.publishDelay, "publish-delay", 0, "Seconds to wait before publishing the demo message")

	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// apply copies explicitly set flags into cfg and revalidates it.
func (f *cliFlags) apply(cfg *config.Config) error {
	if f.fs.Changed("topic") {
		cfg.MQTT.Topic = f.topic
	}
	if f.fs.Changed("message") {
		cfg.Demo.Message = f.message
	}
	if f.fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if f.fs.Changed("publish-delay") {
		cfg.Demo.PublishDelay = f.publishDelay
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}
	return nil
}

// run is the application logic, separated from main for testability.
//
// Returns:
//   - error: nil on signal shutdown, or the failure that stopped the client
func run(ctx context.Context, args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting simplemqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}

	log.Info("configuration loaded", "path", flags.configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	opts := mqtt.OptionsFromConfig(cfg)
	opts.Logger = log

	if influxClient := startTelemetry(ctx, cfg, log); influxClient != nil {
		opts.Recorder = influxClient
		defer func() {
			log.Info("closing InfluxDB")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	id := mqtt.IdentityFromConfig(cfg)
	mgr, err := mqtt.New(id, mqtt.NewPahoTransport(id, opts), opts)
	if err != nil {
		return fmt.Errorf("creating MQTT manager: %w", err)
	}
	defer func() {
		if closeErr := mgr.Disconnect(); closeErr != nil {
			log.Error("error disconnecting from MQTT", "error", closeErr)
		}
	}()

	if err := mgr.SubscribeFunc(cfg.MQTT.Topic, messageLogger(log)); err != nil {
		return fmt.Errorf("subscribing to %s: %w", cfg.MQTT.Topic, err)
	}

	return serve(ctx, mgr, cfg, log)
}

// serve publishes the demo message after the configured delay and then
// waits for shutdown or for the manager to give up.
func serve(ctx context.Context, mgr *mqtt.Manager, cfg *config.Config, log *logging.Logger) error {
	publishTimer := time.NewTimer(cfg.PublishDelay())
	defer publishTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return nil

		case err := <-mgr.Fatal():
			return fmt.Errorf("MQTT connection: %w", err)

		case <-publishTimer.C:
			if err := mgr.PublishString(cfg.MQTT.Topic, cfg.Demo.Message); err != nil {
				log.Warn("demo publish failed", "topic", cfg.MQTT.Topic, "error", err)
				continue
			}
			log.Info("demo message published", "topic", cfg.MQTT.Topic)
		}
	}
}

// messageLogger returns the demo handler, which logs every message.
func messageLogger(log *logging.Logger) func(mqtt.Message) {
	return func(msg mqtt.Message) {
		log.Info("message received",
			"topic", msg.Topic,
			"payload", msg.String(),
		)
	}
}

// startTelemetry connects to InfluxDB when enabled. Telemetry is optional:
// failures are logged and the client runs without it.
func startTelemetry(ctx context.Context, cfg *config.Config, log *logging.Logger) *influxdb.Client {
	if !cfg.InfluxDB.Enabled {
		return nil
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
		return nil
	}

	client.SetOnError(func(writeErr error) {
		log.Warn("InfluxDB write failed", "error", writeErr)
	})
	log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return client
}
