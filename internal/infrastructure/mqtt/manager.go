package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Manager owns one broker connection and at most one subscription.
//
// It connects on construction, re-issues the subscription after every
// successful (re)connect, reconnects after connection loss, and gives up once
// consecutive connect failures exceed Options.MaxRetries.
//
// A Manager serves a single topic. Calling Subscribe again retargets it; use
// one Manager per topic when several are needed.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The lock is never held while waiting on the network or sleeping.
type Manager struct {
	id        Identity
	transport Transport
	opts      Options
	logger    Logger

	// mu guards every field below it.
	mu        sync.Mutex
	state     State
	retries   int
	sub       *subscription
	closed    bool // Disconnect was called
	exhausted bool // retry ceiling exceeded

	// pubMu serialises publishes so a completion is attributable to one call.
	pubMu sync.Mutex

	fatal     chan error
	fatalOnce sync.Once

	// sleep is the reconnect pause, replaceable in tests.
	sleep func(time.Duration)
}

// New creates a Manager and starts connecting.
//
// It never blocks and never fails because the broker is unreachable:
// connect failures arrive later and are handled by retry. Only unusable
// arguments are reported as errors.
//
// Parameters:
//   - id: Broker address and client id
//   - transport: The asynchronous MQTT client to drive
//   - opts: Policy values, usually DefaultOptions() or OptionsFromConfig()
//
// Returns:
//   - *Manager: Manager in the connecting state
//   - error: ErrInvalidIdentity, ErrInvalidQoS, ErrInvalidOptions or ErrNilTransport
func New(id Identity, transport Transport, opts Options) (*Manager, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrNilTransport
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	m := &Manager{
		id:        id,
		transport: transport,
		opts:      opts,
		logger:    opts.Logger,
		state:     StateDisconnected,
		fatal:     make(chan error, 1),
		sleep:     time.Sleep,
	}

	transport.SetListener(m)
	m.connect()

	return m, nil
}

// connect moves to Connecting and starts a connection attempt.
// It does nothing once the Manager has been disconnected or has given up.
func (m *Manager) connect() {
	m.mu.Lock()
	if m.closed || m.exhausted {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	retries := m.retries
	m.mu.Unlock()

	m.logger.Info("trying to connect to MQTT broker",
		"broker", m.id.BrokerURL,
		"client_id", m.id.ClientID,
		"retries", retries,
	)
	m.recordEvent(EventConnecting, retries)

	m.transport.Connect(ConnectOp)
}

// reconnect waits for the reconnect pause, then connects again.
// It runs on the caller's goroutine, which is the transport's callback goroutine.
func (m *Manager) reconnect() {
	m.sleep(m.opts.ReconnectPause)

	m.mu.Lock()
	stopped := m.closed || m.exhausted
	m.mu.Unlock()
	if stopped {
		m.logger.Debug("reconnect skipped, manager stopped")
		return
	}

	m.logger.Info("reconnecting to MQTT broker", "broker", m.id.BrokerURL)
	m.connect()
}

// Subscribe sets the subscription to topic with handler.
//
// Any previous subscription is replaced. When connected, the subscribe is
// sent now; otherwise it is sent automatically on the next successful
// connect. Either way it is re-sent after every reconnect.
//
// Subscribe does not wait for the broker; the outcome is logged when it arrives.
//
// Returns:
//   - error: ErrInvalidTopic or ErrNilHandler for unusable arguments, nil otherwise
func (m *Manager) Subscribe(topic string, handler Handler) error {
	if err := ValidateFilter(topic); err != nil {
		return err
	}
	if isNilHandler(handler) {
		return ErrNilHandler
	}

	m.mu.Lock()
	m.sub = &subscription{topic: topic, handler: handler}
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected {
		m.logger.Info("not connected to broker, subscription deferred until connected", "topic", topic)
		return nil
	}

	m.issueSubscribe(topic)
	return nil
}

// SubscribeFunc is Subscribe with a plain function as handler.
func (m *Manager) SubscribeFunc(topic string, fn func(Message)) error {
	if fn == nil {
		return ErrNilHandler
	}
	return m.Subscribe(topic, HandlerFunc(fn))
}

// issueSubscribe sends the subscribe for topic.
func (m *Manager) issueSubscribe(topic string) {
	m.logger.Info("subscribing to topic", "topic", topic, "qos", m.opts.QoS)
	m.transport.Subscribe(topic, m.opts.QoS, SubscribeOp)
}

// Publish sends payload to topic and waits for delivery confirmation.
//
// Nothing is queued: when not connected Publish fails immediately with
// ErrNotConnected and does not touch the network. When connected it waits
// up to Options.PublishTimeout; a timeout does not change the connection state.
//
// Returns:
//   - error: nil once confirmed, or ErrInvalidTopic, ErrPayloadTooLarge,
//     ErrNotConnected, ErrPublishTimeout, ErrPublishFailed
func (m *Manager) Publish(topic string, payload []byte) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	if !m.IsConnected() {
		m.logger.Warn("cannot publish, not connected to broker", "topic", topic)
		m.recordPublish(topic, OutcomeRejected, 0)
		return ErrNotConnected
	}

	start := time.Now()
	m.logger.Debug("publishing message", "topic", topic, "size", len(payload), "qos", m.opts.QoS)

	token := m.transport.Publish(topic, m.opts.QoS, payload, PublishOp)
	if token == nil {
		m.recordPublish(topic, OutcomeFailed, time.Since(start))
		return fmt.Errorf("%w: transport returned no delivery token", ErrPublishFailed)
	}

	if !token.WaitTimeout(m.opts.PublishTimeout) {
		m.logger.Warn("publish not completed within timeout",
			"topic", topic,
			"timeout", m.opts.PublishTimeout,
		)
		m.recordPublish(topic, OutcomeTimeout, time.Since(start))
		return fmt.Errorf("%w: %v", ErrPublishTimeout, m.opts.PublishTimeout)
	}

	if err := token.Error(); err != nil {
		m.recordPublish(topic, OutcomeFailed, time.Since(start))
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	m.recordPublish(topic, OutcomeOK, time.Since(start))
	return nil
}

// PublishString is a convenience method that publishes a string payload.
func (m *Manager) PublishString(topic, payload string) error {
	return m.Publish(topic, []byte(payload))
}

// Disconnect closes the connection and stops all reconnection.
//
// Unconfirmed publishes are reported but do not delay the disconnect beyond
// Options.DisconnectQuiesce. Failures are reported and returned, never
// retried. The Manager cannot be reconnected afterwards; calling Disconnect
// again is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if pending := m.transport.PendingDeliveryTokens(); len(pending) > 0 {
		topics := make([]string, 0, len(pending))
		for _, tok := range pending {
			topics = append(topics, tok.Topic())
		}
		m.logger.Warn("there are pending delivery tokens", "count", len(pending), "topics", topics)
	}

	m.logger.Info("disconnecting from the MQTT broker")
	err := m.transport.Disconnect(m.opts.DisconnectQuiesce)

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()

	switch {
	case err == nil:
		m.logger.Info("disconnected from the MQTT broker")
	case errors.Is(err, ErrNotConnected):
		// Nothing was open, e.g. disconnecting while a connect attempt was pending.
		m.logger.Info("disconnected from the MQTT broker", "note", "no open connection")
		err = nil
	default:
		m.logger.Error("disconnect failed", "error", err)
		err = fmt.Errorf("%w: %w", ErrDisconnectFailed, err)
	}

	m.recordEvent(EventDisconnected, 0)
	return err
}

// Fatal returns a channel that receives one error, wrapping ErrRetriesExhausted,
// when the Manager gives up connecting. It is never closed.
func (m *Manager) Fatal() <-chan error {
	return m.fatal
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the last notification was a successful connect.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Retries returns the number of consecutive failed connection attempts.
func (m *Manager) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Subscription returns the current subscription topic, if one is set.
func (m *Manager) Subscription() (topic string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub == nil {
		return "", false
	}
	return m.sub.topic, true
}

// Identity returns the broker address and client id.
func (m *Manager) Identity() Identity {
	return m.id
}

// HealthCheck reports whether the Manager is connected.
//
// Returns:
//   - error: nil if connected, ErrRetriesExhausted after giving up,
//     ErrNotConnected otherwise, or the context error
func (m *Manager) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.exhausted:
		return ErrRetriesExhausted
	case m.state != StateConnected:
		return ErrNotConnected
	default:
		return nil
	}
}

// reportFatal delivers the give-up error exactly once.
func (m *Manager) reportFatal(err error) {
	m.fatalOnce.Do(func() {
		m.fatal <- err
		if m.opts.OnFatal != nil {
			m.opts.OnFatal(err)
		}
	})
}

func (m *Manager) recordEvent(event string, retries int) {
	if m.opts.Recorder != nil {
		m.opts.Recorder.RecordConnectionEvent(m.id.ClientID, event, retries)
	}
}

func (m *Manager) recordPublish(topic, outcome string, elapsed time.Duration) {
	if m.opts.Recorder != nil {
		m.opts.Recorder.RecordPublish(m.id.ClientID, topic, outcome, elapsed)
	}
}

// isNilHandler catches both a nil interface and a nil HandlerFunc.
func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return true
	}
	return false
}
