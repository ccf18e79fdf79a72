package mqtt

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/config"
)

func testConfig(broker string) *config.Config {
	cfg := &config.Config{}
	cfg.MQTT.Broker.URL = broker
	cfg.MQTT.Broker.ClientID = "client-1"
	cfg.MQTT.Topic = "test/hello"
	cfg.MQTT.QoS = 2
	cfg.MQTT.Auth.Username = "user"
	cfg.MQTT.Auth.Password = "secret"
	cfg.MQTT.Session.KeepAlive = 30
	cfg.MQTT.Session.CleanSession = false
	cfg.MQTT.Session.ConnectTimeout = 5
	cfg.MQTT.Retry.MaxAttempts = 3
	cfg.MQTT.Retry.PauseMillis = 100
	cfg.MQTT.Publish.TimeoutSeconds = 2
	cfg.MQTT.Publish.DisconnectQuiesce = 50
	return cfg
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, byte(1), opts.QoS)
	assert.Equal(t, 20*time.Second, opts.KeepAlive)
	assert.True(t, opts.CleanSession)
	assert.Equal(t, 5, opts.MaxRetries)
	assert.Equal(t, 2500*time.Millisecond, opts.ReconnectPause)
	assert.Equal(t, 10*time.Second, opts.PublishTimeout)
	assert.NoError(t, opts.validate())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testConfig("tcp://broker.local:1883")

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, byte(2), opts.QoS)
	assert.Equal(t, 30*time.Second, opts.KeepAlive)
	assert.False(t, opts.CleanSession)
	assert.Equal(t, 5*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, opts.ReconnectPause)
	assert.Equal(t, 2*time.Second, opts.PublishTimeout)
	assert.Equal(t, 50*time.Millisecond, opts.DisconnectQuiesce)
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.Nil(t, opts.TLSConfig)

	id := IdentityFromConfig(cfg)
	assert.Equal(t, Identity{BrokerURL: "tcp://broker.local:1883", ClientID: "client-1"}, id)
}

func TestOptionsFromConfig_SecureSchemes(t *testing.T) {
	for _, broker := range []string{"ssl://b:8883", "tls://b:8883", "mqtts://b:8883", "wss://b:443"} {
		t.Run(broker, func(t *testing.T) {
			opts := OptionsFromConfig(testConfig(broker))
			require.NotNil(t, opts.TLSConfig)
			assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MinVersion)
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{QoS: 0, MaxRetries: 0}.withDefaults()

	assert.Equal(t, byte(0), opts.QoS, "zero QoS is kept")
	assert.Equal(t, 0, opts.MaxRetries, "zero retry ceiling is kept")
	assert.Equal(t, DefaultKeepAlive, opts.KeepAlive)
	assert.Equal(t, DefaultConnectTimeout, opts.ConnectTimeout)
	assert.Equal(t, DefaultReconnectPause, opts.ReconnectPause)
	assert.Equal(t, DefaultPublishTimeout, opts.PublishTimeout)
	assert.Equal(t, DefaultDisconnectQuiesce, opts.DisconnectQuiesce)
	assert.NotNil(t, opts.Logger)
}

func TestBuildClientOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Username = "user"
	opts.Password = "secret"

	po := buildClientOptions(testIdentity, opts)

	require.Len(t, po.Servers, 1)
	assert.Equal(t, "10.0.0.100:1883", po.Servers[0].Host)
	assert.Equal(t, testIdentity.ClientID, po.ClientID)
	assert.Equal(t, "user", po.Username)
	assert.Equal(t, "secret", po.Password)
	assert.True(t, po.CleanSession)
	assert.Equal(t, int64(20), po.KeepAlive)
	assert.Equal(t, DefaultConnectTimeout, po.ConnectTimeout)
	assert.False(t, po.AutoReconnect, "the manager owns reconnection")
	assert.False(t, po.ConnectRetry, "the manager owns the retry ceiling")
	assert.False(t, po.Order)
}

func TestBuildClientOptions_NoCredentials(t *testing.T) {
	po := buildClientOptions(testIdentity, DefaultOptions())

	assert.Empty(t, po.Username)
	assert.Empty(t, po.Password)
}
