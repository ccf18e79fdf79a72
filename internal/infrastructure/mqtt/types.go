package mqtt

import (
	"fmt"
	"net/url"
)

// Identity is the broker address and client id a Manager connects with.
// It is fixed for the lifetime of the Manager.
type Identity struct {
	// BrokerURL is scheme://host:port, e.g. tcp://10.0.0.100:1883.
	BrokerURL string
	ClientID  string
}

// Validate reports whether the identity can be used to connect.
func (id Identity) Validate() error {
	if id.ClientID == "" {
		return fmt.Errorf("%w: client id is empty", ErrInvalidIdentity)
	}
	if id.BrokerURL == "" {
		return fmt.Errorf("%w: broker address is empty", ErrInvalidIdentity)
	}
	u, err := url.Parse(id.BrokerURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	if u.Scheme == "" || u.Hostname() == "" || u.Port() == "" {
		return fmt.Errorf("%w: broker address %q is not scheme://host:port", ErrInvalidIdentity, id.BrokerURL)
	}
	return nil
}

// State is the connection state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Operation tags an asynchronous transport call so its completion can be
// attributed to the call that started it. At most one operation of each kind
// is attributed at a time.
type Operation int

const (
	ConnectOp Operation = iota + 1
	SubscribeOp
	PublishOp
)

func (o Operation) String() string {
	switch o {
	case ConnectOp:
		return "connect"
	case SubscribeOp:
		return "subscribe"
	case PublishOp:
		return "publish"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Completion is delivered by a Transport when an operation finishes.
type Completion struct {
	Op Operation
	// Topics lists the topics the operation concerned, when the transport knows them.
	Topics []string
	// Err is nil on success.
	Err error
}

// topic returns the first topic of the completion, or "" when none is known.
func (c Completion) topic() string {
	if len(c.Topics) == 0 {
		return ""
	}
	return c.Topics[0]
}

// Message is a single inbound message. It is built per delivery and not retained.
type Message struct {
	Topic   string
	Payload []byte
}

// String returns the payload as text.
func (m Message) String() string {
	return string(m.Payload)
}

// Handler receives messages for the active subscription.
//
// HandleMessage runs on the transport's delivery goroutine and must not block
// indefinitely.
type Handler interface {
	HandleMessage(msg Message)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(msg Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg Message) {
	f(msg)
}

// subscription is the single topic/handler pair a Manager keeps alive across reconnects.
type subscription struct {
	topic   string
	handler Handler
}
