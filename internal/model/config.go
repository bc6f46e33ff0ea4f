package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// --- Configuration Structures ---

// Column widths of the printer models seen in the field.
const (
	Width58mmNarrow = 24
	Width58mm       = 40
	Width80mm       = 48
	Width80mmWide   = 56

	MinWidth = 16
	MaxWidth = 96
)

// ChannelKind names a delivery mechanism.
type ChannelKind string

const (
	ChannelSpooler ChannelKind = "spooler"
	ChannelRawPort ChannelKind = "rawport"
	ChannelRelay   ChannelKind = "relay"
	ChannelWebhook ChannelKind = "webhook"
	ChannelNATS    ChannelKind = "nats"
)

// MaxRelayTimeout bounds every HTTP relay call.
const MaxRelayTimeout = 15 * time.Second

type Config struct {
	Server   ServerConfig    `yaml:"server" json:"server"`
	Ticket   TicketConfig    `yaml:"ticket" json:"ticket"`
	Encoder  EncoderConfig   `yaml:"encoder" json:"encoder"`
	Dispatch DispatchConfig  `yaml:"dispatch" json:"dispatch"`
	Channels []ChannelConfig `yaml:"channels" json:"channels"`
	Agent    AgentConfig     `yaml:"agent" json:"agent"`
	Preview  PreviewConfig   `yaml:"preview" json:"preview"`
}

type ServerConfig struct {
	// Addr is the listen address of the ticket API, e.g. "127.0.0.1:8080".
	Addr string `yaml:"addr" json:"addr"`
}

type TicketConfig struct {
	// Width is the number of columns of the target printer.
	Width int `yaml:"width" json:"width"`
	// RestaurantName is used when a request carries none.
	RestaurantName string `yaml:"restaurantName" json:"restaurantName"`
	// Timezone is an IANA name used for the ticket timestamp.
	Timezone   string `yaml:"timezone" json:"timezone"`
	TimeFormat string `yaml:"timeFormat" json:"timeFormat"`
}

type EncoderConfig struct {
	// Codepage is one of utf8, cp858 or cp437.
	Codepage  string `yaml:"codepage" json:"codepage"`
	Cut       bool   `yaml:"cut" json:"cut"`
	FeedLines int    `yaml:"feedLines" json:"feedLines"`
}

type DispatchConfig struct {
	// Timeout bounds each channel attempt that has no timeout of its own.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ChannelConfig describes one link of the dispatch chain. Which fields are
// required depends on Kind.
type ChannelConfig struct {
	Name    string            `yaml:"name" json:"name"`
	Kind    ChannelKind       `yaml:"kind" json:"kind"`
	Printer string            `yaml:"printer,omitempty" json:"printer,omitempty"`
	Port    string            `yaml:"port,omitempty" json:"port,omitempty"`
	URL     string            `yaml:"url,omitempty" json:"url,omitempty"`
	Subject string            `yaml:"subject,omitempty" json:"subject,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type AgentConfig struct {
	// URL of the cloud WebSocket endpoint. Empty disables the agent.
	URL string `yaml:"url" json:"url"`
	// APIURL is where an agent without a key registers to obtain one.
	APIURL   string `yaml:"apiUrl" json:"apiUrl"`
	APIKey   string `yaml:"apiKey" json:"apiKey"`
	AgentKey string `yaml:"agentKey" json:"agentKey"`
	// Name identifies this station in the cloud dashboard.
	Name string `yaml:"name" json:"name"`
}

type PreviewConfig struct {
	ChromePath string        `yaml:"chromePath" json:"chromePath"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns the settings written on first start.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Ticket: TicketConfig{
			Width:          Width80mm,
			RestaurantName: DefaultRestaurantName,
			Timezone:       "Local",
			TimeFormat:     "02/01/2006 15:04",
		},
		Encoder:  EncoderConfig{Codepage: "cp858", Cut: true, FeedLines: 3},
		Dispatch: DispatchConfig{Timeout: 15 * time.Second},
		Channels: []ChannelConfig{
			{Name: "spooler", Kind: ChannelSpooler, Printer: "POS-80", Timeout: 10 * time.Second},
			{Name: "raw", Kind: ChannelRawPort, Port: "tcp://192.168.1.50:9100", Timeout: 5 * time.Second},
		},
		Preview: PreviewConfig{Timeout: 15 * time.Second},
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Ticket.Width < MinWidth || c.Ticket.Width > MaxWidth {
		return fmt.Errorf("ticket.width %d out of range [%d, %d]", c.Ticket.Width, MinWidth, MaxWidth)
	}
	switch strings.ToLower(c.Encoder.Codepage) {
	case "", "utf8", "utf-8", "cp858", "cp437":
	default:
		return fmt.Errorf("encoder.codepage %q is not supported", c.Encoder.Codepage)
	}
	if c.Encoder.FeedLines < 0 || c.Encoder.FeedLines > 255 {
		return fmt.Errorf("encoder.feedLines %d out of range [0, 255]", c.Encoder.FeedLines)
	}

	seen := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if seen[ch.Name] {
			return fmt.Errorf("channels[%d]: duplicate name %q", i, ch.Name)
		}
		seen[ch.Name] = true
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("channels[%d] %q: %w", i, ch.Name, err)
		}
	}
	return nil
}

func (c ChannelConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	switch c.Kind {
	case ChannelSpooler:
		if c.Printer == "" {
			return fmt.Errorf("printer is required for %s channels", c.Kind)
		}
	case ChannelRawPort:
		if c.Port == "" {
			return fmt.Errorf("port is required for %s channels", c.Kind)
		}
	case ChannelRelay, ChannelWebhook:
		u, err := url.Parse(c.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("url %q must be an absolute http(s) URL", c.URL)
		}
		if c.Kind == ChannelRelay && c.Timeout > MaxRelayTimeout {
			return fmt.Errorf("timeout %s exceeds %s", c.Timeout, MaxRelayTimeout)
		}
	case ChannelNATS:
		if c.URL == "" || c.Subject == "" {
			return fmt.Errorf("url and subject are required for %s channels", c.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}
