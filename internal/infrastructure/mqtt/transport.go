package mqtt

import "time"

// Transport is the asynchronous MQTT network client the Manager drives.
//
// Connect, Subscribe and Publish return immediately; their outcome is
// reported later to the registered Listener, tagged with the Operation the
// caller supplied. Implementations call the Listener from their own
// goroutines.
type Transport interface {
	// SetListener registers the receiver of completions, connection loss and messages.
	SetListener(l Listener)

	// Connect starts a connection attempt.
	Connect(op Operation)

	// Subscribe starts a subscription to topic.
	Subscribe(topic string, qos byte, op Operation)

	// Publish starts a publish and returns a token that can be waited on.
	Publish(topic string, qos byte, payload []byte, op Operation) DeliveryToken

	// Disconnect closes the connection, allowing quiesce for in-flight work.
	Disconnect(quiesce time.Duration) error

	// PendingDeliveryTokens returns publishes that have not completed yet.
	PendingDeliveryTokens() []DeliveryToken
}

// DeliveryToken tracks one publish.
type DeliveryToken interface {
	// WaitTimeout blocks until the publish completes or d elapses.
	// It returns false on timeout.
	WaitTimeout(d time.Duration) bool

	// Error returns the publish error once complete, nil on success.
	Error() error

	// Topic returns the topic the message was published to.
	Topic() string
}

// Listener is the callback surface a Transport reports to.
// The Manager implements it; see dispatch.go.
type Listener interface {
	OnSuccess(c Completion)
	OnFailure(c Completion)
	OnConnectionLost(cause error)
	OnMessage(topic string, payload []byte)
}

// Logger is the logging interface the mqtt package needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Recorder receives connection lifecycle telemetry. It is optional.
type Recorder interface {
	RecordConnectionEvent(clientID, event string, retries int)
	RecordPublish(clientID, topic, outcome string, elapsed time.Duration)
}

// Connection events passed to Recorder.RecordConnectionEvent.
const (
	EventConnecting       = "connecting"
	EventConnected        = "connected"
	EventConnectFailed    = "connect_failed"
	EventConnectionLost   = "connection_lost"
	EventRetriesExhausted = "retries_exhausted"
	EventDisconnected     = "disconnected"
)

// Publish outcomes passed to Recorder.RecordPublish.
const (
	OutcomeOK       = "ok"
	OutcomeTimeout  = "timeout"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)
