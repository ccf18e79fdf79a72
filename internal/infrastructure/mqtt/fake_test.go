package mqtt

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeTransport records every call and lets tests deliver callbacks by hand.
type fakeTransport struct {
	mu sync.Mutex

	listener    Listener
	connects    int
	subscribes  []subscribeCall
	publishes   []publishCall
	disconnects int

	// nextToken, when set, supplies the token for the next publishes.
	nextToken     func(topic string) *fakeToken
	disconnectErr error
	pending       []DeliveryToken
}

type subscribeCall struct {
	topic string
	qos   byte
	op    Operation
}

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
	op      Operation
}

func (f *fakeTransport) SetListener(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

func (f *fakeTransport) Connect(op Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op != ConnectOp {
		panic(fmt.Sprintf("connect tagged %v", op))
	}
	f.connects++
}

func (f *fakeTransport) Subscribe(topic string, qos byte, op Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, subscribeCall{topic: topic, qos: qos, op: op})
}

func (f *fakeTransport) Publish(topic string, qos byte, payload []byte, op Operation) DeliveryToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, publishCall{topic: topic, qos: qos, payload: payload, op: op})
	if f.nextToken != nil {
		return f.nextToken(topic)
	}
	return completedToken(topic, nil)
}

func (f *fakeTransport) Disconnect(time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return f.disconnectErr
}

func (f *fakeTransport) PendingDeliveryTokens() []DeliveryToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) subscribeCalls() []subscribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subscribeCall(nil), f.subscribes...)
}

func (f *fakeTransport) publishCalls() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishCall(nil), f.publishes...)
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// fakeToken completes when done is closed.
type fakeToken struct {
	topic string
	err   error
	done  chan struct{}
}

func completedToken(topic string, err error) *fakeToken {
	t := &fakeToken{topic: topic, err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func openToken(topic string) *fakeToken {
	return &fakeToken{topic: topic, done: make(chan struct{})}
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Error() error  { return t.err }
func (t *fakeToken) Topic() string { return t.topic }

// logEntry is one captured log call.
type logEntry struct {
	level string
	msg   string
	args  []any
}

// attr returns the value logged under key.
func (e logEntry) attr(key string) (any, bool) {
	for i := 0; i+1 < len(e.args); i += 2 {
		if k, ok := e.args[i].(string); ok && k == key {
			return e.args[i+1], true
		}
	}
	return nil, false
}

// captureLogger records log calls for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

// find returns the entries with msg.
func (l *captureLogger) find(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// fakeRecorder records telemetry calls.
type fakeRecorder struct {
	mu       sync.Mutex
	events   []string
	outcomes []string
}

func (r *fakeRecorder) RecordConnectionEvent(_ string, event string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *fakeRecorder) RecordPublish(_ string, _ string, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *fakeRecorder) snapshot() (events, outcomes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([]string(nil), r.outcomes...)
}

// harness bundles a Manager with its fakes.
type harness struct {
	mgr       *Manager
	transport *fakeTransport
	logger    *captureLogger
	recorder  *fakeRecorder

	pauseMu sync.Mutex
	pauses  []time.Duration
}

func (h *harness) pauseCount() int {
	h.pauseMu.Lock()
	defer h.pauseMu.Unlock()
	return len(h.pauses)
}

var testIdentity = Identity{BrokerURL: "tcp://10.0.0.100:1883", ClientID: "ghj489543jghewr"}

// newHarness builds a Manager on a fake transport. mutate may adjust options.
func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		transport: &fakeTransport{},
		logger:    &captureLogger{},
		recorder:  &fakeRecorder{},
	}

	opts := DefaultOptions()
	opts.PublishTimeout = 50 * time.Millisecond
	opts.Logger = h.logger
	opts.Recorder = h.recorder
	if mutate != nil {
		mutate(&opts)
	}

	mgr, err := New(testIdentity, h.transport, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	mgr.sleep = func(d time.Duration) {
		h.pauseMu.Lock()
		h.pauses = append(h.pauses, d)
		h.pauseMu.Unlock()
	}
	h.mgr = mgr
	return h
}

// connect delivers a connect success.
func (h *harness) connect() {
	h.mgr.OnSuccess(Completion{Op: ConnectOp})
}

// failConnect delivers a connect failure.
func (h *harness) failConnect() {
	h.mgr.OnFailure(Completion{Op: ConnectOp, Err: fmt.Errorf("connection refused")})
}
