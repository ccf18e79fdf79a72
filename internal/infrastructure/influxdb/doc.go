// Package influxdb records MQTT client telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and implements
// mqtt.Recorder, so a Manager can report connection lifecycle events and
// publish outcomes without knowing where they go.
//
// # Measurements
//
//	mqtt_connection  tags: client_id, event             fields: retries
//	mqtt_publish     tags: client_id, topic, outcome    fields: elapsed_ms
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	opts := mqtt.OptionsFromConfig(cfg)
//	opts.Recorder = client
//
// # Error Handling
//
// Writes are non-blocking and batched; write failures arrive asynchronously
// through the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
