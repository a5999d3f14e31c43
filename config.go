package cisco

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of the environment overrides, e.g. CISCO_PASSWORD.
const EnvPrefix = "CISCO"

// Config is the proxy configuration handed to Manager.Init.
type Config struct {
	Proxy ProxyConfig
}

// ProxyConfig holds the switch address and credentials.
type ProxyConfig struct {
	IP             string
	Port           int
	Username       string
	Password       string
	Secret         string
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	KnownHosts     string
}

// Target builds the target descriptor. The dialect is always Cisco IOS.
func (p ProxyConfig) Target() Target {
	return Target{
		Address:        strings.TrimSpace(p.IP),
		Port:           p.Port,
		Username:       p.Username,
		Password:       p.Password,
		Secret:         p.Secret,
		Dialect:        DialectCiscoIOS,
		ConnectTimeout: p.ConnectTimeout,
		CommandTimeout: p.CommandTimeout,
		KnownHostsFile: p.KnownHosts,
	}
}

type fileConfig struct {
	Proxy struct {
		IP             string `toml:"ip"`
		Port           int    `toml:"port"`
		Username       string `toml:"username"`
		Password       string `toml:"password"`
		Secret         string `toml:"secret"`
		ConnectTimeout string `toml:"connect_timeout"`
		CommandTimeout string `toml:"command_timeout"`
		KnownHosts     string `toml:"known_hosts"`
	} `toml:"proxy"`
}

// Untagged so that only the prefixed names (CISCO_USERNAME, ...) are read;
// an envconfig tag would also fall back to the bare USERNAME.
type envOverrides struct {
	IP       string
	Username string
	Password string
	Secret   string
}

// LoadConfig reads a TOML file, applies CISCO_* environment overrides and
// validates the result.
func LoadConfig(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	p := raw.Proxy
	cfg := Config{Proxy: ProxyConfig{
		IP:         strings.TrimSpace(p.IP),
		Port:       p.Port,
		Username:   p.Username,
		Password:   p.Password,
		Secret:     p.Secret,
		KnownHosts: strings.TrimSpace(p.KnownHosts),
	}}

	if meta.IsDefined("proxy", "connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(p.ConnectTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.Proxy.ConnectTimeout = d
	}
	if meta.IsDefined("proxy", "command_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(p.CommandTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse command_timeout: %w", err)
		}
		cfg.Proxy.CommandTimeout = d
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the credentials and address from the environment.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("config env overrides: %w", err)
	}
	if env.IP != "" {
		cfg.Proxy.IP = strings.TrimSpace(env.IP)
	}
	if env.Username != "" {
		cfg.Proxy.Username = env.Username
	}
	if env.Password != "" {
		cfg.Proxy.Password = env.Password
	}
	if env.Secret != "" {
		cfg.Proxy.Secret = env.Secret
	}
	return nil
}

// Validate requires an ip and a username and checks the port range.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Proxy.IP) == "" {
		return fmt.Errorf("proxy config missing ip")
	}
	if strings.TrimSpace(c.Proxy.Username) == "" {
		return fmt.Errorf("proxy config missing username")
	}
	if c.Proxy.Port < 0 || c.Proxy.Port > 65535 {
		return fmt.Errorf("proxy config invalid port %d", c.Proxy.Port)
	}
	return nil
}
