// Package config handles loading and validating the simple MQTT client configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The defaults give the standard connection policy: QoS 1,
// 20 second keep-alive, clean sessions, a ceiling of 5 consecutive connect
// failures, a 2.5 second reconnect pause and a 10 second publish timeout.
//
// Security Considerations:
//   - Broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.URL)
package config
