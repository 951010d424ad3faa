package bleproxy

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-ble/internal/device"
	"github.com/nerrad567/gray-logic-ble/internal/gatt"
)

// Config is the root configuration for the BLE proxy bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge  BridgeConfig   `yaml:"bridge"`
	MQTT    MQTTSettings   `yaml:"mqtt"`
	Proxies []ProxyConfig  `yaml:"proxies"`
	Devices []DeviceConfig `yaml:"devices"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`

	// ReadTimeout is how long a read request may wait for a proxy
	// response before it fails (seconds).
	// Default: 10 seconds.
	ReadTimeout int `yaml:"read_timeout"`

	// DefaultMTU is used when a proxy does not report the negotiated ATT_MTU.
	// Default: 23.
	DefaultMTU int `yaml:"default_mtu"`
}

// MQTTSettings contains bus settings specific to the bridge.
// Broker connection details come from the main configuration.
type MQTTSettings struct {
	// QoS is used for subscriptions and read requests (0, 1, or 2).
	// Default: 1.
	QoS int `yaml:"qos"`
}

// ProxyConfig lists a BLE proxy node the bridge accepts messages from.
// An empty proxies list accepts every proxy.
type ProxyConfig struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// DeviceConfig supplies metadata used when a device is first seen.
// Devices not listed here are still tracked.
type DeviceConfig struct {
	// Address is the device's BLE address in any common notation.
	Address string `yaml:"address"`

	// AddressType is "public" or "random". Overrides the proxy's report.
	AddressType string `yaml:"address_type"`

	// Manufacturer is stored on the device record.
	Manufacturer string `yaml:"manufacturer"`

	// Tags are stored on the device record.
	Tags []string `yaml:"tags"`
}

// LoadConfig reads configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BLE_BRIDGE_SECTION_KEY
// For example: BLE_BRIDGE_ID, BLE_BRIDGE_READ_TIMEOUT
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
// Used as-is when no bridge configuration file is given.
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "ble-bridge-01",
			HealthInterval: 30,
			ReadTimeout:    10,
			DefaultMTU:     gatt.DefaultMTU,
		},
		MQTT: MQTTSettings{
			QoS: 1,
		},
		Proxies: []ProxyConfig{},
		Devices: []DeviceConfig{},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLE_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("BLE_BRIDGE_HEALTH_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.HealthInterval = n
		}
	}
	if v := os.Getenv("BLE_BRIDGE_READ_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.ReadTimeout = n
		}
	}
	if v := os.Getenv("BLE_BRIDGE_MQTT_QOS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.QoS = n
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateMQTT()...)
	errs = append(errs, c.validateProxies()...)
	errs = append(errs, c.validateDevices()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if c.Bridge.ReadTimeout < 1 {
		errs = append(errs, "bridge.read_timeout must be at least 1 second")
	}
	if c.Bridge.DefaultMTU < gatt.DefaultMTU {
		errs = append(errs, fmt.Sprintf("bridge.default_mtu must be at least %d", gatt.DefaultMTU))
	}
	return errs
}

func (c *Config) validateMQTT() []string {
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return []string{"mqtt.qos must be 0, 1, or 2"}
	}
	return nil
}

func (c *Config) validateProxies() []string {
	var errs []string
	seen := make(map[string]bool)

	for i, p := range c.Proxies {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("proxies[%d].id is required", i))
			continue
		}
		if strings.ContainsAny(p.ID, "/+#") {
			errs = append(errs, fmt.Sprintf("proxies[%d].id %q must not contain MQTT topic characters", i, p.ID))
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("proxies[%d].id %q is duplicate", i, p.ID))
		}
		seen[p.ID] = true
	}

	return errs
}

func (c *Config) validateDevices() []string {
	var errs []string
	seen := make(map[string]bool)

	for i, dev := range c.Devices {
		addr, err := device.NormaliseAddress(dev.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d].address %q is invalid", i, dev.Address))
			continue
		}
		if seen[addr] {
			errs = append(errs, fmt.Sprintf("devices[%d].address %q is duplicate", i, dev.Address))
		}
		seen[addr] = true

		if dev.AddressType != "" {
			if err := device.ValidateAddressType(device.AddressType(dev.AddressType)); err != nil {
				errs = append(errs, fmt.Sprintf("devices[%d].address_type %q is invalid (use public or random)", i, dev.AddressType))
			}
		}
		if err := device.ValidateTags(dev.Tags); err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d].tags: %v", i, err))
		}
	}

	return errs
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetReadTimeout returns the read request timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Bridge.ReadTimeout) * time.Second
}

// AcceptsProxy reports whether messages from proxyID should be handled.
func (c *Config) AcceptsProxy(proxyID string) bool {
	if len(c.Proxies) == 0 {
		return true
	}
	for _, p := range c.Proxies {
		if p.ID == proxyID {
			return true
		}
	}
	return false
}

// BuildDeviceIndex maps normalised addresses to their configured metadata.
// Entries with unparseable addresses are skipped; Validate reports them.
func (c *Config) BuildDeviceIndex() map[string]DeviceConfig {
	index := make(map[string]DeviceConfig, len(c.Devices))
	for _, dev := range c.Devices {
		addr, err := device.NormaliseAddress(dev.Address)
		if err != nil {
			continue
		}
		index[addr] = dev
	}
	return index
}
