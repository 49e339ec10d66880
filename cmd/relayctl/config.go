package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/relayctl/internal/protocol/ctmp"
	"github.com/danmuck/relayctl/internal/relay"
)

// relayctl config.toml key mapping to relay runtime settings.
type fileConfig struct {
	SourceAddr      string `toml:"source_addr"`
	DestAddr        string `toml:"dest_addr"`
	AdminAddr       string `toml:"admin_addr"`
	DestQueueDepth  int    `toml:"dest_queue_depth"`
	ReadBufferBytes int    `toml:"read_buffer_bytes"`
	WriteTimeoutMS  int    `toml:"write_timeout_ms"`
	MaxPayloadBytes int    `toml:"max_payload_bytes"`
}

// relayctl loader for TOML config with default overlay.
func loadServiceConfig(path string) (relay.ServiceConfig, error) {
	cfg := relay.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return relay.ServiceConfig{}, fmt.Errorf("load relay config: %w", err)
	}

	if meta.IsDefined("source_addr") {
		cfg.SourceListenAddr = strings.TrimSpace(raw.SourceAddr)
	}
	if meta.IsDefined("dest_addr") {
		cfg.DestListenAddr = strings.TrimSpace(raw.DestAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("dest_queue_depth") {
		if raw.DestQueueDepth <= 0 {
			return relay.ServiceConfig{}, fmt.Errorf("load relay config: dest_queue_depth must be positive")
		}
		cfg.DestQueueDepth = raw.DestQueueDepth
	}
	if meta.IsDefined("read_buffer_bytes") {
		if raw.ReadBufferBytes <= 0 {
			return relay.ServiceConfig{}, fmt.Errorf("load relay config: read_buffer_bytes must be positive")
		}
		cfg.ReadBufferBytes = raw.ReadBufferBytes
	}
	if meta.IsDefined("write_timeout_ms") {
		if raw.WriteTimeoutMS <= 0 {
			return relay.ServiceConfig{}, fmt.Errorf("load relay config: write_timeout_ms must be positive")
		}
		cfg.WriteTimeout = time.Duration(raw.WriteTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > ctmp.MaxPayloadLen {
			return relay.ServiceConfig{}, fmt.Errorf(
				"load relay config: max_payload_bytes must be in 1..%d", ctmp.MaxPayloadLen)
		}
		cfg.Limits.MaxPayloadBytes = raw.MaxPayloadBytes
	}

	return cfg, nil
}
