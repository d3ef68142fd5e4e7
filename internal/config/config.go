// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tytonet/tyto/internal/log"
)

// Config is the top-level static configuration.
// Maps to the `tyto:` root key in YAML.
type Config struct {
	Log     log.Config    `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	SIP     SIPConfig     `mapstructure:"sip"`
	RTP     RTPConfig     `mapstructure:"rtp"`
	RTCP    RTCPConfig    `mapstructure:"rtcp"`
	TPNCP   TPNCPConfig   `mapstructure:"tpncp"`
}

// MetricsConfig contains Prometheus metrics settings. Disabled by default;
// the analyzer is a batch tool and usually has no scraper watching it.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// SIPConfig contains SIP signalling settings. Flows announced by SDP in
// SIP dialogs on these ports get their media dissectors pinned.
type SIPConfig struct {
	Ports []int `mapstructure:"ports"`
}

// RTPConfig contains the RTP dissector preferences. The heuristic is off
// by default; the RTP header carries too little structure to claim
// arbitrary UDP safely, so without it only SDP-announced flows decode.
type RTPConfig struct {
	Heuristic bool `mapstructure:"heuristic"`
}

// RTCPConfig contains the RTCP dissector preferences.
type RTCPConfig struct {
	ShowSetupInfo   bool   `mapstructure:"show_setup_info"`
	ShowRoundtrip   bool   `mapstructure:"show_roundtrip"`
	RoundtripMinMS  int    `mapstructure:"roundtrip_min_ms"`
	DefaultProtocol string `mapstructure:"default_protocol"` // rtcp | srtcp
	Heuristic       bool   `mapstructure:"heuristic"`
}

// TPNCPConfig contains the TPNCP dissector preferences. When the schema
// file cannot be loaded the dissector stays registered but declines every
// frame, leaving the flows to the transport summary.
type TPNCPConfig struct {
	LoadSchema bool   `mapstructure:"load_schema"`
	SchemaPath string `mapstructure:"schema_path"`
	UDPPort    int    `mapstructure:"udp_port"`
	TCPPort    int    `mapstructure:"tcp_port"`
	HAPort     int    `mapstructure:"ha_port"`
}

// configRoot is the top-level wrapper matching the YAML structure `tyto: ...`.
type configRoot struct {
	Tyto Config `mapstructure:"tyto"`
}

// Load loads configuration. An empty path yields the defaults; env vars
// override either way (key "tyto.log.level" maps to env TYTO_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Tyto

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "tyto." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	logDefaults := log.DefaultConfig()
	v.SetDefault("tyto.log.level", logDefaults.Level)
	v.SetDefault("tyto.log.pattern", logDefaults.Pattern)
	v.SetDefault("tyto.log.time", logDefaults.Time)

	// Metrics defaults
	v.SetDefault("tyto.metrics.enabled", false)
	v.SetDefault("tyto.metrics.listen", ":9091")
	v.SetDefault("tyto.metrics.path", "/metrics")

	// SIP defaults
	v.SetDefault("tyto.sip.ports", []int{5060})

	// RTP defaults
	v.SetDefault("tyto.rtp.heuristic", false)

	// RTCP defaults
	v.SetDefault("tyto.rtcp.show_setup_info", true)
	v.SetDefault("tyto.rtcp.show_roundtrip", false)
	v.SetDefault("tyto.rtcp.roundtrip_min_ms", 10)
	v.SetDefault("tyto.rtcp.default_protocol", "rtcp")
	v.SetDefault("tyto.rtcp.heuristic", true)

	// TPNCP defaults
	v.SetDefault("tyto.tpncp.load_schema", true)
	v.SetDefault("tyto.tpncp.schema_path", "tpncp.dat")
	v.SetDefault("tyto.tpncp.udp_port", 2424)
	v.SetDefault("tyto.tpncp.tcp_port", 2424)
	v.SetDefault("tyto.tpncp.ha_port", 2442)
}

// Validate checks the configuration for values no run could work with.
func (cfg *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error/fatal/panic)", cfg.Log.Level)
	}

	if cfg.RTCP.DefaultProtocol != "rtcp" && cfg.RTCP.DefaultProtocol != "srtcp" {
		return fmt.Errorf("invalid rtcp.default_protocol: %s (must be rtcp/srtcp)", cfg.RTCP.DefaultProtocol)
	}
	if cfg.RTCP.RoundtripMinMS < 0 {
		return fmt.Errorf("invalid rtcp.roundtrip_min_ms: %d (must be >= 0)", cfg.RTCP.RoundtripMinMS)
	}

	for _, port := range cfg.SIP.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid sip.ports entry: %d (must be 1-65535)", port)
		}
	}
	for name, port := range map[string]int{
		"tpncp.udp_port": cfg.TPNCP.UDPPort,
		"tpncp.tcp_port": cfg.TPNCP.TCPPort,
		"tpncp.ha_port":  cfg.TPNCP.HAPort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid %s: %d (must be 1-65535)", name, port)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics.enabled=true")
	}

	return nil
}
