// Package config loads config.yaml for the BLE bridge process.
//
// Values come from the YAML file, then GRAYLOGIC_* environment variables
// override them, then Validate checks the result. Keep the MQTT password
// and InfluxDB token in the environment rather than the file.
//
// Bridge-specific settings (read timeout, proxy allowlist, pre-registered
// devices) live in a separate file named by ble.config_file and are loaded
// by the bleproxy package.
//
//	cfg, err := config.Load("configs/config.yaml")
package config
