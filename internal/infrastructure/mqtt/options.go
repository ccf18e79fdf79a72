package mqtt

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/config"
)

// Connection policy defaults.
const (
	// DefaultQoS is used for both subscribe and publish.
	DefaultQoS byte = 1

	// DefaultKeepAlive is the MQTT keep-alive interval.
	DefaultKeepAlive = 20 * time.Second

	// DefaultMaxRetries is the number of consecutive connect failures tolerated.
	// The failure that takes the count above it is fatal.
	DefaultMaxRetries = 5

	// DefaultReconnectPause debounces reconnect attempts against an unreachable broker.
	DefaultReconnectPause = 2500 * time.Millisecond

	// DefaultPublishTimeout bounds how long Publish waits for delivery confirmation.
	DefaultPublishTimeout = 10 * time.Second

	// DefaultDisconnectQuiesce is the grace period for in-flight work on disconnect.
	DefaultDisconnectQuiesce = 250 * time.Millisecond

	// DefaultConnectTimeout bounds a single connection attempt.
	DefaultConnectTimeout = 10 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options configures a Manager and its Transport.
//
// Start from DefaultOptions: zero durations are replaced with defaults, but a
// zero QoS, MaxRetries or CleanSession is taken literally.
type Options struct {
	QoS            byte
	KeepAlive      time.Duration
	CleanSession   bool
	ConnectTimeout time.Duration

	// MaxRetries is the retry ceiling. Zero makes the first connect failure fatal.
	MaxRetries        int
	ReconnectPause    time.Duration
	PublishTimeout    time.Duration
	DisconnectQuiesce time.Duration

	Username  string
	Password  string
	TLSConfig *tls.Config

	// Logger receives lifecycle reports. Nil discards them.
	Logger Logger

	// Recorder receives telemetry. Nil disables it.
	Recorder Recorder

	// OnFatal is called once, from the callback goroutine, when the retry
	// ceiling is exceeded. The same error is also sent on Manager.Fatal().
	OnFatal func(err error)
}

// DefaultOptions returns the default connection policy.
func DefaultOptions() Options {
	return Options{
		QoS:               DefaultQoS,
		KeepAlive:         DefaultKeepAlive,
		CleanSession:      true,
		ConnectTimeout:    DefaultConnectTimeout,
		MaxRetries:        DefaultMaxRetries,
		ReconnectPause:    DefaultReconnectPause,
		PublishTimeout:    DefaultPublishTimeout,
		DisconnectQuiesce: DefaultDisconnectQuiesce,
	}
}

// OptionsFromConfig builds Options from the loaded configuration.
// Logger, Recorder and OnFatal are left for the caller to set.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.QoS = byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0..2 by config.Validate
	opts.KeepAlive = cfg.KeepAlive()
	opts.CleanSession = cfg.MQTT.Session.CleanSession
	opts.ConnectTimeout = cfg.ConnectTimeout()
	opts.MaxRetries = cfg.MQTT.Retry.MaxAttempts
	opts.ReconnectPause = cfg.ReconnectPause()
	opts.PublishTimeout = cfg.PublishTimeout()
	opts.DisconnectQuiesce = cfg.DisconnectQuiesce()
	opts.Username = cfg.MQTT.Auth.Username
	opts.Password = cfg.MQTT.Auth.Password

	if isSecureBroker(cfg.MQTT.Broker.URL) {
		opts.TLSConfig = &tls.Config{
			MinVersion: tlsMinVersion,
		}
	}

	return opts
}

// IdentityFromConfig returns the broker address and client id from the configuration.
func IdentityFromConfig(cfg *config.Config) Identity {
	return Identity{
		BrokerURL: cfg.MQTT.Broker.URL,
		ClientID:  cfg.MQTT.Broker.ClientID,
	}
}

// validate rejects values the Manager cannot work with.
func (o Options) validate() error {
	if o.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if o.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries %d is negative", ErrInvalidOptions, o.MaxRetries)
	}
	if o.KeepAlive < 0 || o.ConnectTimeout < 0 || o.ReconnectPause < 0 ||
		o.PublishTimeout < 0 || o.DisconnectQuiesce < 0 {
		return fmt.Errorf("%w: durations cannot be negative", ErrInvalidOptions)
	}
	return nil
}

// withDefaults fills zero durations and a nil logger.
func (o Options) withDefaults() Options {
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReconnectPause == 0 {
		o.ReconnectPause = DefaultReconnectPause
	}
	if o.PublishTimeout == 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.DisconnectQuiesce == 0 {
		o.DisconnectQuiesce = DefaultDisconnectQuiesce
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// buildClientOptions creates paho MQTT options for a PahoTransport.
//
// Paho's own auto-reconnect and connect-retry are switched off: the Manager
// owns the retry ceiling and the reconnect pause, so paho must report every
// failure and every lost connection instead of hiding them.
func buildClientOptions(id Identity, o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(id.BrokerURL)
	opts.SetClientID(id.ClientID)

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(o.CleanSession)
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetConnectTimeout(o.ConnectTimeout)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	// Handlers may publish from inside HandleMessage; with ordered delivery that
	// would stall the router until the publish timeout.
	opts.SetOrderMatters(false)

	if o.TLSConfig != nil {
		opts.SetTLSConfig(o.TLSConfig)
	}

	return opts
}

// isSecureBroker reports whether the broker URL uses a TLS scheme.
func isSecureBroker(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "ssl", "tls", "mqtts", "wss":
		return true
	default:
		return false
	}
}
