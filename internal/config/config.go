// Package config loads the pipeline configuration from YAML. Defaults come
// from struct tags so a minimal config file only needs the device address and
// button characteristic.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/srg/ringlink/internal/action"
	"github.com/srg/ringlink/internal/event"
	"github.com/srg/ringlink/internal/profile"
	"github.com/srg/ringlink/internal/pulse"
)

// Config is the root configuration document.
type Config struct {
	LogLevel string `yaml:"log_level" default:"info"`

	Device    Device            `yaml:"device"`
	Pulse     Pulse             `yaml:"pulse"`
	Bus       Bus               `yaml:"bus"`
	Router    Router            `yaml:"router"`
	Actions   map[string]Action `yaml:"actions"`
	Mappings  map[string]string `yaml:"mappings"`
	LLM       LLM               `yaml:"llm"`
	Mirror    Mirror            `yaml:"mirror"`
	Telemetry Telemetry         `yaml:"telemetry"`
	Diag      Diag              `yaml:"diag"`
}

// Device identifies the ring and how to reach it.
type Device struct {
	Address        string          `yaml:"address"`
	ConnectTimeout time.Duration   `yaml:"connect_timeout" default:"30s"`
	Profile        profile.Profile `yaml:"profile"`
}

// Pulse configures the gesture state machine.
type Pulse struct {
	DebounceWindow time.Duration `yaml:"debounce_window" default:"400ms"`
	LongPress      time.Duration `yaml:"long_press" default:"700ms"`
	Overflow       string        `yaml:"overflow" default:"cap"`
	FrameBuffer    int           `yaml:"frame_buffer" default:"128"`
}

// Bus sizes the per-subscriber event queues.
type Bus struct {
	SubscriberCapacity int `yaml:"subscriber_capacity" default:"64"`
}

// Router bounds action execution.
type Router struct {
	MaxInFlight   int           `yaml:"max_inflight" default:"1"`
	OnSaturation  string        `yaml:"on_saturation" default:"queue"`
	InvokeTimeout time.Duration `yaml:"invoke_timeout" default:"30s"`
	JournalSize   uint32        `yaml:"journal_size" default:"256"`
}

// Action binds an action id to an executor and its options.
type Action struct {
	Executor string            `yaml:"executor"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// LLM configures the text-generation providers.
type LLM struct {
	OpenAI OpenAIProvider `yaml:"openai"`
	Ollama OllamaProvider `yaml:"ollama"`
}

// OpenAIProvider covers both api.openai.com and OpenAI-compatible servers
// via BaseURL.
type OpenAIProvider struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model" default:"gpt-4o-mini"`
}

// OllamaProvider speaks the ollama native REST API.
type OllamaProvider struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	BaseURL string `yaml:"base_url" default:"http://127.0.0.1:11434"`
	Model   string `yaml:"model" default:"llama3.2"`
}

// Mirror configures the websocket event mirror.
type Mirror struct {
	URL string `yaml:"url"`
}

// Telemetry configures the MQTT event publisher.
type Telemetry struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id" default:"ringlink"`
	Topic    string `yaml:"topic" default:"ringlink/events"`
}

// Diag configures the raw notification capture ring.
type Diag struct {
	Enabled      bool `yaml:"enabled" default:"true"`
	CaptureBytes int  `yaml:"capture_bytes" default:"4096"`
}

// Default returns the configuration with every default applied, including
// the stock gesture mappings.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	cfg.Actions = map[string]Action{
		"toggle_listen":        {Executor: "ui"},
		"send_last_transcript": {Executor: "ui"},
		"cycle_llm":            {Executor: "ui"},
	}
	cfg.Mappings = map[string]string{
		"button_single": "toggle_listen",
		"button_double": "send_last_transcript",
		"button_long":   "cycle_llm",
	}
	return cfg
}

// Load reads and validates the config file at path. An empty path returns
// the defaults (still subject to validation by the caller's command).
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected so
// typos surface instead of silently using a default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints and normalizes UUIDs in place.
// It is required before the config is used to run the pipeline.
func (c *Config) Validate() error {
	if c.Device.Address == "" {
		return fmt.Errorf("device.address is required")
	}
	if err := c.Device.Profile.Normalize(); err != nil {
		return fmt.Errorf("device.profile: %w", err)
	}
	if c.Device.ConnectTimeout <= 0 {
		return fmt.Errorf("device.connect_timeout must be > 0")
	}

	return c.ValidateSettings()
}

// ValidateSettings checks every section except the device, for commands
// that inspect configuration without connecting to a ring.
func (c *Config) ValidateSettings() error {
	if c.Pulse.DebounceWindow <= 0 {
		return fmt.Errorf("pulse.debounce_window must be > 0")
	}
	if c.Pulse.LongPress <= 0 {
		return fmt.Errorf("pulse.long_press must be > 0")
	}
	if c.Pulse.FrameBuffer <= 0 {
		return fmt.Errorf("pulse.frame_buffer must be > 0")
	}
	if _, err := pulse.ParseOverflow(c.Pulse.Overflow); err != nil {
		return fmt.Errorf("pulse.overflow: %w", err)
	}

	if c.Bus.SubscriberCapacity <= 0 {
		return fmt.Errorf("bus.subscriber_capacity must be > 0")
	}

	if c.Router.MaxInFlight < 1 {
		return fmt.Errorf("router.max_inflight must be >= 1")
	}
	if _, err := action.ParseSaturation(c.Router.OnSaturation); err != nil {
		return fmt.Errorf("router.on_saturation: %w", err)
	}
	if c.Router.InvokeTimeout < 0 {
		return fmt.Errorf("router.invoke_timeout must be >= 0")
	}
	if c.Router.JournalSize == 0 {
		return fmt.Errorf("router.journal_size must be > 0")
	}

	for id, a := range c.Actions {
		if id == "" {
			return fmt.Errorf("actions: empty action id")
		}
		if a.Executor == "" {
			return fmt.Errorf("actions.%s: executor is required", id)
		}
	}

	for kindName, actionID := range c.Mappings {
		if _, err := event.ParseKind(kindName); err != nil {
			return fmt.Errorf("mappings: %w", err)
		}
		if actionID == action.NoopAction {
			continue
		}
		if _, ok := c.Actions[actionID]; !ok {
			return fmt.Errorf("mappings.%s: unknown action %q", kindName, actionID)
		}
	}

	if c.Diag.Enabled && c.Diag.CaptureBytes <= 0 {
		return fmt.Errorf("diag.capture_bytes must be > 0 when diag is enabled")
	}
	return nil
}

// PulseConfig converts the pulse section to the interpreter's config.
// Call only after ValidateSettings.
func (c *Config) PulseConfig() pulse.Config {
	overflow, _ := pulse.ParseOverflow(c.Pulse.Overflow)
	return pulse.Config{
		DebounceWindow: c.Pulse.DebounceWindow,
		LongPress:      c.Pulse.LongPress,
		Overflow:       overflow,
	}
}

// RouterConfig converts the router section. Call only after ValidateSettings.
func (c *Config) RouterConfig() action.RouterConfig {
	saturation, _ := action.ParseSaturation(c.Router.OnSaturation)
	return action.RouterConfig{
		MaxInFlight:   c.Router.MaxInFlight,
		OnSaturation:  saturation,
		InvokeTimeout: c.Router.InvokeTimeout,
	}
}

// Mapping converts the mappings section to kind bindings. Call only after
// ValidateSettings.
func (c *Config) Mapping() (*action.Mapping, error) {
	explicit := make(map[event.Kind]string, len(c.Mappings))
	for kindName, actionID := range c.Mappings {
		kind, err := event.ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		explicit[kind] = actionID
	}
	return action.NewMapping(explicit)
}
