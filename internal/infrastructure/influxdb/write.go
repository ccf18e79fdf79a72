package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/simple-mqtt-client/internal/infrastructure/mqtt"
)

// Measurement names.
const (
	measurementConnection = "mqtt_connection"
	measurementPublish    = "mqtt_publish"
)

// RecordConnectionEvent writes one connection lifecycle event.
//
// Example point:
//
//	mqtt_connection,client_id=ghj489543jghewr,event=connect_failed retries=2i
func (c *Client) RecordConnectionEvent(clientID, event string, retries int) {
	c.writePoint(connectionPoint(clientID, event, retries, time.Now()))
}

// RecordPublish writes the outcome of one publish.
//
// Example point:
//
//	mqtt_publish,client_id=ghj489543jghewr,outcome=ok,topic=test/hello elapsed_ms=3.2
func (c *Client) RecordPublish(clientID, topic, outcome string, elapsed time.Duration) {
	c.writePoint(publishPoint(clientID, topic, outcome, elapsed, time.Now()))
}

// writePoint queues p for the next batch. Points after Close are dropped.
func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	c.writer.WritePoint(p)
}

func connectionPoint(clientID, event string, retries int, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementConnection,
		map[string]string{
			"client_id": clientID,
			"event":     event,
		},
		map[string]interface{}{
			"retries": retries,
		},
		ts,
	)
}

func publishPoint(clientID, topic, outcome string, elapsed time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementPublish,
		map[string]string{
			"client_id": clientID,
			"topic":     topic,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"elapsed_ms": float64(elapsed) / float64(time.Millisecond),
		},
		ts,
	)
}

var _ mqtt.Recorder = (*Client)(nil)
