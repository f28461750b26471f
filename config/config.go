// Package config loads and assembles vehicle configuration: identity,
// declared capabilities, broker connection options, and scheduler tuning.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v2"
)

// ActionDeclaration describes one action type this vehicle accepts, the
// basis for the validate package's declared-action check (§4.7) and for
// the factsheet's supported-actions list.
type ActionDeclaration struct {
	ActionType        string   `yaml:"actionType"`
	ActionScopes      []string `yaml:"actionScopes"` // "INSTANT", "NODE", "EDGE"
	ActionDescription string   `yaml:"actionDescription,omitempty"`
}

// AGVDescription identifies this vehicle and its declared capabilities to
// Master Control — the factsheet's type-specification section and the
// identity fields checked by header-target validation (§4.7, §6).
type AGVDescription struct {
	Manufacturer       string              `yaml:"manufacturer"`
	SerialNumber       string              `yaml:"serialNumber"`
	AGVKinematic       string              `yaml:"agvKinematic,omitempty"`
	AGVClass           string              `yaml:"agvClass,omitempty"`
	MaxLoadMass        float64             `yaml:"maxLoadMass,omitempty"`
	LocalizationTypes  []string            `yaml:"localizationTypes,omitempty"`
	NavigationTypes    []string            `yaml:"navigationTypes,omitempty"`
	SupportedActions   []ActionDeclaration `yaml:"supportedActions"`
}

// Broker carries the MQTT connection parameters loaded from YAML.
type Broker struct {
	Address          string `yaml:"address"`
	Interface        string `yaml:"interface"`
	Version          string `yaml:"version"`
	Username         string `yaml:"username,omitempty"`
	Password         string `yaml:"password,omitempty"`
	UseTLS           bool   `yaml:"useTLS,omitempty"`
	OAuth2TokenURL   string `yaml:"oauth2TokenUrl,omitempty"`
	OAuth2ClientID   string `yaml:"oauth2ClientId,omitempty"`
	OAuth2Secret     string `yaml:"oauth2ClientSecret,omitempty"`
	OAuth2Scopes     []string `yaml:"oauth2Scopes,omitempty"`
}

// Base is the YAML-loadable configuration body. Functional Options layer
// runtime tuning over it without requiring a config file round trip
// (useful in tests, or for flags that override a file value).
type Base struct {
	AGV   AGVDescription `yaml:"agv"`
	Broker Broker        `yaml:"broker"`

	StateUpdatePeriod time.Duration `yaml:"stateUpdatePeriod"`
	SpinnerCount      int           `yaml:"spinnerCount"`
	QueueCapacity     int           `yaml:"queueCapacity"`
	LogLevel          string        `yaml:"logLevel"`
	LogFormat         string        `yaml:"logFormat"` // "text" or "json"
}

// defaults mirrors the zero-value-is-valid convention the scheduler's own
// Options follows: an empty Base still produces a runnable configuration.
func defaults() Base {
	return Base{
		StateUpdatePeriod: 1 * time.Second,
		SpinnerCount:      4,
		QueueCapacity:     256,
		LogLevel:          "info",
		LogFormat:         "text",
		Broker:            Broker{Interface: "uagv", Version: "v2"},
	}
}

// Config is the fully assembled, immutable-after-build vehicle
// configuration.
type Config struct {
	Base
}

// Option mutates a Base during Load, the same functional-options shape the
// scheduler uses to layer tuning over a struct of defaults.
type Option func(*Base)

func WithSpinnerCount(n int) Option {
	return func(b *Base) { b.SpinnerCount = n }
}

func WithStateUpdatePeriod(d time.Duration) Option {
	return func(b *Base) { b.StateUpdatePeriod = d }
}

func WithQueueCapacity(n int) Option {
	return func(b *Base) { b.QueueCapacity = n }
}

func WithLogLevel(level string) Option {
	return func(b *Base) { b.LogLevel = level }
}

func WithBrokerCredentials(username, password string) Option {
	return func(b *Base) { b.Broker.Username = username; b.Broker.Password = password }
}

// Load reads a YAML configuration file and layers opts over it. An empty
// path skips the file read and starts from defaults() alone, so a fully
// programmatic (no file) configuration is supported too.
func Load(path string, opts ...Option) (Config, error) {
	base := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		loaded := defaults()
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		base = loaded
	}
	for _, opt := range opts {
		opt(&base)
	}
	if err := base.validate(); err != nil {
		return Config{}, err
	}
	return Config{Base: base}, nil
}

func (b Base) validate() error {
	if b.AGV.Manufacturer == "" || b.AGV.SerialNumber == "" {
		return fmt.Errorf("config: agv.manufacturer and agv.serialNumber are required")
	}
	if b.SpinnerCount <= 0 {
		return fmt.Errorf("config: spinnerCount must be positive")
	}
	if b.QueueCapacity <= 0 {
		return fmt.Errorf("config: queueCapacity must be positive")
	}
	return nil
}
