package mqtt

import "fmt"

// The Manager is the Listener for its own Transport. Completions are
// classified by the Operation they carry; connection state only changes on
// connect results and connection loss. Nothing here panics or returns an
// error to the transport: every failure ends in a state transition or a log.

// OnSuccess handles a successful completion.
func (m *Manager) OnSuccess(c Completion) {
	switch c.Op {
	case ConnectOp:
		m.onConnected()
	case SubscribeOp:
		m.logger.Info("subscription success", "topic", m.subscribeTopic(c))
	case PublishOp:
		if topic := c.topic(); topic != "" {
			m.logger.Info("publish successful", "topic", topic)
		} else {
			m.logger.Info("publish successful")
		}
	default:
		m.logger.Warn("completion for unknown operation ignored", "operation", c.Op.String())
	}
}

// OnFailure handles a failed completion.
func (m *Manager) OnFailure(c Completion) {
	switch c.Op {
	case ConnectOp:
		m.onConnectFailed(c.Err)
	case SubscribeOp:
		m.logger.Warn("subscription failed", "topic", m.subscribeTopic(c), "error", c.Err)
	case PublishOp:
		if topic := c.topic(); topic != "" {
			m.logger.Warn("publish failed", "topic", topic, "error", c.Err)
		} else {
			m.logger.Warn("publish failed", "error", c.Err)
		}
	default:
		m.logger.Warn("failure for unknown operation ignored", "operation", c.Op.String(), "error", c.Err)
	}
}

// OnConnectionLost resets the retry count and reconnects.
func (m *Manager) OnConnectionLost(cause error) {
	m.mu.Lock()
	if m.closed || m.exhausted {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.retries = 0
	m.mu.Unlock()

	if cause != nil {
		m.logger.Warn("connection to MQTT broker lost", "cause", cause)
	} else {
		m.logger.Warn("connection to MQTT broker lost")
	}
	m.recordEvent(EventConnectionLost, 0)

	m.reconnect()
}

// OnMessage passes an inbound message to the subscription handler.
func (m *Manager) OnMessage(topic string, payload []byte) {
	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()

	if sub == nil || isNilHandler(sub.handler) {
		m.logger.Error("message dropped", "topic", topic, "error", ErrNoHandler)
		return
	}

	m.deliver(sub.handler, Message{Topic: topic, Payload: payload})
}

// onConnected records a successful connect and restores the subscription.
func (m *Manager) onConnected() {
	m.mu.Lock()
	if m.closed || m.exhausted {
		m.mu.Unlock()
		return
	}
	m.state = StateConnected
	m.retries = 0
	sub := m.sub
	m.mu.Unlock()

	m.logger.Info("connection successfully made to MQTT broker", "broker", m.id.BrokerURL)
	m.recordEvent(EventConnected, 0)

	if sub != nil {
		m.issueSubscribe(sub.topic)
	}
}

// onConnectFailed counts the failure and either reconnects or gives up.
func (m *Manager) onConnectFailed(cause error) {
	m.mu.Lock()
	if m.closed || m.exhausted {
		m.mu.Unlock()
		return
	}
	m.retries++
	retries := m.retries
	giveUp := retries > m.opts.MaxRetries
	if giveUp {
		m.exhausted = true
		m.state = StateDisconnected
	} else {
		m.state = StateConnecting
	}
	m.mu.Unlock()

	m.logger.Warn("connection attempt to MQTT broker failed",
		"broker", m.id.BrokerURL,
		"retries", retries,
		"max_retries", m.opts.MaxRetries,
		"error", cause,
	)
	m.recordEvent(EventConnectFailed, retries)

	if giveUp {
		err := fmt.Errorf("%w: %d consecutive failures connecting to %s: %w",
			ErrRetriesExhausted, retries, m.id.BrokerURL, connectCause(cause))
		m.logger.Error("giving up on MQTT broker", "error", err)
		m.recordEvent(EventRetriesExhausted, retries)
		m.reportFatal(err)
		return
	}

	m.reconnect()
}

// subscribeTopic prefers the topic the transport reported, falling back to the
// current subscription.
func (m *Manager) subscribeTopic(c Completion) string {
	if topic := c.topic(); topic != "" {
		return topic
	}
	topic, _ := m.Subscription()
	return topic
}

// deliver calls the handler, recovering from panics so the transport's
// delivery goroutine survives a faulty handler.
func (m *Manager) deliver(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("MQTT handler panic recovered",
				"topic", msg.Topic,
				"panic", r,
			)
		}
	}()

	h.HandleMessage(msg)
}

// connectCause never returns nil so the fatal error always wraps ErrConnectFailed.
func connectCause(cause error) error {
	if cause == nil {
		return ErrConnectFailed
	}
	return fmt.Errorf("%w: %w", ErrConnectFailed, cause)
}
