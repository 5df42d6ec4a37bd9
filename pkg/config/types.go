package config

import (
	"fmt"
	"time"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Bus       BusConfig       `yaml:"bus"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Logging   LoggingConfig   `yaml:"logging"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds listen and storage settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	// Secret is the HS256 signing secret shared with the token issuer.
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	// DialRPS/DialBurst rate-limit connection attempts per client IP.
	DialRPS   float64 `yaml:"dial_rps"`
	DialBurst int     `yaml:"dial_burst"`
}

// BusConfig holds the cross-instance event bus settings. An empty Addr
// disables the bridge and the server runs single-instance.
type BusConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix namespaces bus topics so several deployments can share one
	// redis instance.
	Prefix string `yaml:"prefix"`
}

// RealtimeConfig tunes the connection registry and liveness cycle.
type RealtimeConfig struct {
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	// SendBuffer is the per-connection outbound frame buffer; frames
	// beyond it are dropped rather than stalling fanout.
	SendBuffer int `yaml:"send_buffer"`
	// BacklogLimit caps unread notifications delivered on subscribe.
	BacklogLimit int `yaml:"backlog_limit"`
}

// HeartbeatIntervalDuration parses the heartbeat interval, defaulting to
// 30s when unset or invalid.
func (rc RealtimeConfig) HeartbeatIntervalDuration() time.Duration {
	if rc.HeartbeatInterval == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(rc.HeartbeatInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// RetentionConfig holds configuration for the notification purge runner.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// Period is how long read notifications are kept, e.g. "720h".
	Period    string `yaml:"period"`
	BatchSize int    `yaml:"batch_size"`
}

// PeriodDuration parses the retention period.
func (rc RetentionConfig) PeriodDuration() (time.Duration, error) {
	if rc.Period == "" {
		return 0, fmt.Errorf("retention period not set")
	}
	return time.ParseDuration(rc.Period)
}
