// Package mqtt provides a single-topic MQTT client with managed reconnection.
//
// This package manages:
//   - Connection lifecycle against one broker with a bounded retry ceiling
//   - One subscription per Manager, restored after every reconnect
//   - Publishing with a bounded wait for delivery confirmation
//   - Classification of asynchronous completions by operation
//
// # Architecture
//
// A Manager drives a Transport, the asynchronous network client. Every
// Transport call is tagged with an Operation (ConnectOp, SubscribeOp,
// PublishOp) and its outcome comes back to the Manager, which is the
// Transport's Listener:
//
//	caller → Manager → Transport → broker
//	         Manager ← Listener callbacks ← Transport
//
// PahoTransport is the production Transport on paho.mqtt.golang. Paho's own
// reconnect logic is disabled so the Manager sees every failure.
//
// # State Machine
//
//	Disconnected --New--> Connecting
//	Connecting --connect ok--> Connected          (retries = 0, resubscribe)
//	Connecting --connect failed--> Connecting     (retries++, pause, retry)
//	Connecting --retries > MaxRetries--> Disconnected (Fatal() fires)
//	Connected --connection lost--> Connecting     (retries = 0, pause, retry)
//	any --Disconnect--> Disconnected
//
// Subscribe and publish failures never count toward the retry ceiling.
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. Callbacks arrive on
// transport goroutines. The Manager's lock is never held while sleeping
// before a reconnect or while Publish waits for confirmation, so a
// connection loss can be handled mid-publish.
//
// # Usage
//
//	transport := mqtt.NewPahoTransport(id, opts)
//	mgr, err := mqtt.New(id, transport, opts)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Disconnect()
//
//	mgr.Subscribe("test/hello", mqtt.HandlerFunc(func(msg mqtt.Message) {
//	    log.Printf("received %s: %s", msg.Topic, msg.Payload)
//	}))
//
//	if err := mgr.PublishString("test/hello", "Hello @ ALL"); err != nil {
//	    log.Printf("publish: %v", err)
//	}
//
//	err = <-mgr.Fatal() // the broker stayed unreachable
package mqtt
