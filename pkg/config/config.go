package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Addr returns the host:port string for the HTTP listener.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ParseCommandFlags parses command-line flags and reports which were
// explicitly set. Flag parsing is centralized here so main stays thin.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.realtime-db", "notification store path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	setFlags = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// then FONANA_CONFIG, then the flag default.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if v := os.Getenv("FONANA_CONFIG"); v != "" {
		return v
	}
	return flagPath
}

// LoadEnvOverrides applies FONANA_* environment variables on top of cfg
// and reports whether any were present.
func LoadEnvOverrides(cfg *Config) bool {
	used := false
	setStr := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			used = true
			*dst = v
		}
	}
	if v := os.Getenv("FONANA_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	setStr("FONANA_DB_PATH", &cfg.Server.DBPath)
	setStr("FONANA_JWT_SECRET", &cfg.Auth.Secret)
	setStr("FONANA_JWT_ISSUER", &cfg.Auth.Issuer)
	setStr("FONANA_JWT_AUDIENCE", &cfg.Auth.Audience)
	setStr("FONANA_REDIS_ADDR", &cfg.Bus.Addr)
	setStr("FONANA_REDIS_PASSWORD", &cfg.Bus.Password)
	setStr("FONANA_BUS_PREFIX", &cfg.Bus.Prefix)
	setStr("FONANA_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("FONANA_REDIS_DB"); v != "" {
		used = true
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.DB = n
		}
	}
	if v := os.Getenv("FONANA_HEARTBEAT"); v != "" {
		used = true
		cfg.Realtime.HeartbeatInterval = v
	}
	return used
}

// LoadEffective loads the config file (if present), applies env
// overrides, and fills defaults. Missing file is not an error: env-only
// deployments are supported.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, false, err
		}
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, envUsed, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = "./.realtime-db"
	}
	if cfg.Auth.DialRPS <= 0 {
		cfg.Auth.DialRPS = 5
	}
	if cfg.Auth.DialBurst <= 0 {
		cfg.Auth.DialBurst = 10
	}
	if cfg.Bus.Prefix == "" {
		cfg.Bus.Prefix = "rt"
	}
	if cfg.Realtime.SendBuffer <= 0 {
		cfg.Realtime.SendBuffer = 64
	}
	if cfg.Realtime.BacklogLimit <= 0 {
		cfg.Realtime.BacklogLimit = 50
	}
	if cfg.Retention.Cron == "" {
		cfg.Retention.Cron = "0 * * * *"
	}
	if cfg.Retention.BatchSize <= 0 {
		cfg.Retention.BatchSize = 500
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = strings.ToLower(os.Getenv("FONANA_LOG_LEVEL"))
	}
}

// Validate reports fatal misconfiguration. The JWT secret is the only
// hard requirement: without it every connection attempt would be refused.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("auth.secret (or FONANA_JWT_SECRET) is required")
	}
	return nil
}
