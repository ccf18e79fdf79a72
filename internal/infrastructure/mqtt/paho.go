package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// PahoTransport is the Transport built on paho.mqtt.golang.
//
// Every paho token is watched on its own goroutine and its completion is
// reported to the Listener with the Operation the caller supplied.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type PahoTransport struct {
	client pahomqtt.Client

	listener   Listener
	listenerMu sync.RWMutex

	// pending tracks publishes that have not completed.
	pending   map[*pahoDeliveryToken]struct{}
	pendingMu sync.Mutex
}

// NewPahoTransport creates a paho-backed Transport. It does not connect.
func NewPahoTransport(id Identity, opts Options) *PahoTransport {
	t := &PahoTransport{
		pending: make(map[*pahoDeliveryToken]struct{}),
	}

	pahoOpts := buildClientOptions(id, opts.withDefaults())

	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if l := t.currentListener(); l != nil {
			l.OnConnectionLost(err)
		}
	})

	// Messages that match no subscription callback, e.g. retained deliveries
	// racing a resubscribe, still reach the handler.
	pahoOpts.SetDefaultPublishHandler(t.deliver)

	t.client = pahomqtt.NewClient(pahoOpts)
	return t
}

// SetListener registers the receiver of completions and messages.
func (t *PahoTransport) SetListener(l Listener) {
	t.listenerMu.Lock()
	t.listener = l
	t.listenerMu.Unlock()
}

func (t *PahoTransport) currentListener() Listener {
	t.listenerMu.RLock()
	defer t.listenerMu.RUnlock()
	return t.listener
}

// Connect starts a connection attempt.
func (t *PahoTransport) Connect(op Operation) {
	token := t.client.Connect()
	go t.watch(op, token, nil)
}

// Subscribe starts a subscription to topic.
func (t *PahoTransport) Subscribe(topic string, qos byte, op Operation) {
	token := t.client.Subscribe(topic, qos, t.deliver)
	go t.watch(op, token, []string{topic})
}

// Publish starts a non-retained publish.
func (t *PahoTransport) Publish(topic string, qos byte, payload []byte, op Operation) DeliveryToken {
	token := t.client.Publish(topic, qos, false, payload)
	dt := &pahoDeliveryToken{token: token, topic: topic}

	t.pendingMu.Lock()
	t.pending[dt] = struct{}{}
	t.pendingMu.Unlock()

	go func() {
		<-token.Done()

		t.pendingMu.Lock()
		delete(t.pending, dt)
		t.pendingMu.Unlock()

		t.report(op, token.Error(), []string{topic})
	}()

	return dt
}

// Disconnect closes the connection, waiting up to quiesce for in-flight work.
//
// Returns:
//   - error: ErrNotConnected if no connection was open
func (t *PahoTransport) Disconnect(quiesce time.Duration) error {
	open := t.client.IsConnectionOpen()

	// Called even when not open: paho aborts a connect attempt in progress.
	t.client.Disconnect(uint(quiesce.Milliseconds())) // #nosec G115 -- quiesce is validated non-negative

	if !open {
		return ErrNotConnected
	}
	return nil
}

// PendingDeliveryTokens returns publishes that have not completed.
func (t *PahoTransport) PendingDeliveryTokens() []DeliveryToken {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()

	tokens := make([]DeliveryToken, 0, len(t.pending))
	for dt := range t.pending {
		tokens = append(tokens, dt)
	}
	return tokens
}

// watch waits for token and reports its outcome.
func (t *PahoTransport) watch(op Operation, token pahomqtt.Token, topics []string) {
	<-token.Done()

	err := token.Error()
	if err == nil {
		err = subscribeRefusal(token)
	}
	t.report(op, err, topics)
}

// report forwards an outcome to the listener.
func (t *PahoTransport) report(op Operation, err error, topics []string) {
	l := t.currentListener()
	if l == nil {
		return
	}

	c := Completion{Op: op, Topics: topics, Err: err}
	if err != nil {
		l.OnFailure(c)
		return
	}
	l.OnSuccess(c)
}

// deliver forwards an inbound paho message.
func (t *PahoTransport) deliver(_ pahomqtt.Client, msg pahomqtt.Message) {
	if l := t.currentListener(); l != nil {
		l.OnMessage(msg.Topic(), msg.Payload())
	}
}

// subscribeRefusal turns a 0x80 SUBACK into an error; paho completes such
// tokens without one.
func subscribeRefusal(token pahomqtt.Token) error {
	st, ok := token.(*pahomqtt.SubscribeToken)
	if !ok {
		return nil
	}
	for topic, code := range st.Result() {
		if code == subackFailure {
			return fmt.Errorf("%w: broker refused %q", ErrSubscribeFailed, topic)
		}
	}
	return nil
}

// pahoDeliveryToken adapts a paho publish token to DeliveryToken.
type pahoDeliveryToken struct {
	token pahomqtt.Token
	topic string
}

func (d *pahoDeliveryToken) WaitTimeout(timeout time.Duration) bool {
	return d.token.WaitTimeout(timeout)
}

func (d *pahoDeliveryToken) Error() error {
	return d.token.Error()
}

func (d *pahoDeliveryToken) Topic() string {
	return d.topic
}

var _ Transport = (*PahoTransport)(nil)
