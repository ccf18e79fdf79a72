package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing on a manager that is not connected.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectFailed wraps the cause of a failed connection attempt.
	ErrConnectFailed = errors.New("mqtt: connection failed")

	// ErrRetriesExhausted is reported once consecutive connect failures exceed the retry ceiling.
	// The manager stops reconnecting after this; the owner decides what happens next.
	ErrRetriesExhausted = errors.New("mqtt: connect retries exhausted")

	// ErrPublishFailed is returned when the broker or transport rejects a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrPublishTimeout is returned when no delivery confirmation arrives in time.
	// It does not imply the broker dropped the message.
	ErrPublishTimeout = errors.New("mqtt: publish not confirmed within timeout")

	// ErrSubscribeFailed is reported when the broker rejects a subscription.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrDisconnectFailed wraps the cause of a failed disconnect.
	ErrDisconnectFailed = errors.New("mqtt: disconnect failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or malformed topic is provided.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPayloadTooLarge is returned when a payload exceeds maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrNilHandler is returned when subscribing without a message handler.
	ErrNilHandler = errors.New("mqtt: handler cannot be nil")

	// ErrNoHandler is reported when a message arrives while no handler is registered.
	ErrNoHandler = errors.New("mqtt: no message handler registered")

	// ErrInvalidIdentity is returned when the broker address or client id is unusable.
	ErrInvalidIdentity = errors.New("mqtt: invalid client identity")

	// ErrInvalidOptions is returned for negative timeouts or retry ceilings.
	ErrInvalidOptions = errors.New("mqtt: invalid options")

	// ErrNilTransport is returned when constructing a manager without a transport.
	ErrNilTransport = errors.New("mqtt: transport cannot be nil")
)
