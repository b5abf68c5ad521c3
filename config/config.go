package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caldog20/overlaymgr/types"
	"github.com/miekg/dns"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = "config.yaml"
	EnvPrefix      = "overlaymgr"

	DefaultListenAddr       = ":8080"
	DefaultDNSReloadProcess = "dnsmasq"
	DefaultDNSHostsFile     = "/etc/hosts.overlay"
	DefaultWebStaticDir     = "./web"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig is the private configuration of the local server. It is loaded once
// at startup and must not be mutated afterwards.
type ServerConfig struct {
	// Name of the local server, there must be a server with the same name in the database.
	Name       string  `mapstructure:"name"`
	PrivateKey string  `mapstructure:"private_key"`
	Keepalive  *uint32 `mapstructure:"keepalive"`
	DeviceName string  `mapstructure:"device_name"`
	ConfigPath string  `mapstructure:"config_path"`

	DatabaseURL string `mapstructure:"database_url"`

	BaseDomain   string `mapstructure:"base_domain"`
	DNSHostsFile string `mapstructure:"dns_hosts_file"`
	WebStaticDir string `mapstructure:"web_static_dir"`

	ListenAddr         string `mapstructure:"listen_addr"`
	MetricsAddr        string `mapstructure:"metrics_addr"`
	AutocertDomain     string `mapstructure:"autocert_domain"`
	AutocertCacheDir   string `mapstructure:"autocert_cache_dir"`
	DNSReloadProcess   string `mapstructure:"dns_reload_process"`
	DNSRefreshSchedule string `mapstructure:"dns_refresh_schedule"`
	LogLevel           string `mapstructure:"log_level"`
}

var defaults = map[string]any{
	"listen_addr":          DefaultListenAddr,
	"dns_reload_process":   DefaultDNSReloadProcess,
	"dns_hosts_file":       DefaultDNSHostsFile,
	"web_static_dir":       DefaultWebStaticDir,
	"log_level":            "info",
	"metrics_addr":         "",
	"autocert_domain":      "",
	"autocert_cache_dir":   "",
	"dns_refresh_schedule": "",
}

// keys without a default still need binding so environment overrides reach Unmarshal
var envOnly = []string{
	"name",
	"private_key",
	"keepalive",
	"device_name",
	"config_path",
	"database_url",
	"base_domain",
}

// Load reads the configuration file at path, falling back to ./config.yaml when path
// is empty. OVERLAYMGR_* environment variables override file values.
func Load(path string) (*ServerConfig, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range envOnly {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if path == "" {
		path = ConfigFileName
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read configuration file %s: %w", path, err)
	}

	conf := &ServerConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("cannot decode configuration file %s: %w", path, err)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate reports the first problem that would prevent the server from running.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if _, err := c.Key(); err != nil {
		return fmt.Errorf("%w: private_key: %w", ErrInvalidConfig, err)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: database_url is required", ErrInvalidConfig)
	}
	if _, ok := dns.IsDomainName(c.BaseDomain); c.BaseDomain == "" || !ok {
		return fmt.Errorf("%w: base_domain %q is not a valid domain name", ErrInvalidConfig, c.BaseDomain)
	}
	return nil
}

// Key decodes the server private key.
func (c *ServerConfig) Key() (types.PrivateKey, error) {
	return types.ParsePrivateKey(c.PrivateKey)
}
