package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableBroker refuses connections immediately on any normal host.
const unreachableBroker = "tcp://127.0.0.1:1"

// recordingListener collects transport callbacks.
type recordingListener struct {
	mu        sync.Mutex
	successes []Completion
	failures  []Completion
}

func (r *recordingListener) OnSuccess(c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, c)
}

func (r *recordingListener) OnFailure(c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, c)
}

func (r *recordingListener) OnConnectionLost(error)   {}
func (r *recordingListener) OnMessage(string, []byte) {}

func (r *recordingListener) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func (r *recordingListener) firstFailure() Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[0]
}

func newUnreachableTransport(t *testing.T) (*PahoTransport, *recordingListener) {
	t.Helper()

	opts := DefaultOptions()
	opts.ConnectTimeout = 2 * time.Second
	tr := NewPahoTransport(Identity{BrokerURL: unreachableBroker, ClientID: "paho-transport-test"}, opts)

	l := &recordingListener{}
	tr.SetListener(l)
	return tr, l
}

func TestPahoTransport_PublishWithoutConnection(t *testing.T) {
	tr, l := newUnreachableTransport(t)

	token := tr.Publish("t1", DefaultQoS, []byte("x"), PublishOp)

	require.True(t, token.WaitTimeout(time.Second), "publish on a closed client completes at once")
	assert.Error(t, token.Error())
	assert.Equal(t, "t1", token.Topic())

	require.Eventually(t, func() bool { return l.failureCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	c := l.firstFailure()
	assert.Equal(t, PublishOp, c.Op)
	assert.Equal(t, []string{"t1"}, c.Topics)

	assert.Eventually(t, func() bool {
		return len(tr.PendingDeliveryTokens()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPahoTransport_ConnectFailureReported(t *testing.T) {
	tr, l := newUnreachableTransport(t)

	tr.Connect(ConnectOp)

	require.Eventually(t, func() bool { return l.failureCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	c := l.firstFailure()
	assert.Equal(t, ConnectOp, c.Op)
	assert.Error(t, c.Err)
}

func TestPahoTransport_DisconnectWhenNotConnected(t *testing.T) {
	tr, _ := newUnreachableTransport(t)

	assert.ErrorIs(t, tr.Disconnect(DefaultDisconnectQuiesce), ErrNotConnected)
}

func TestManager_GivesUpOnUnreachableBroker(t *testing.T) {
	id := Identity{BrokerURL: unreachableBroker, ClientID: "paho-manager-test"}

	opts := DefaultOptions()
	opts.MaxRetries = 2
	opts.ReconnectPause = 10 * time.Millisecond
	opts.ConnectTimeout = 2 * time.Second

	mgr, err := New(id, NewPahoTransport(id, opts), opts)
	require.NoError(t, err)

	select {
	case err := <-mgr.Fatal():
		assert.ErrorIs(t, err, ErrRetriesExhausted)
	case <-time.After(15 * time.Second):
		t.Fatal("manager did not give up on an unreachable broker")
	}

	assert.Equal(t, StateDisconnected, mgr.State())
	assert.Equal(t, 3, mgr.Retries())
	assert.NoError(t, mgr.Disconnect())
}
