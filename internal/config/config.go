package config

import (
	"net"
	"time"
)

// ByteSize is a size in bytes. Configuration files may use plain numbers
// or units such as "512KiB" and "10MiB".
type ByteSize int64

// Config holds the complete client configuration.
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Bind       BindConfig       `mapstructure:"bind" yaml:"bind"`
	Kerberos   KerberosConfig   `mapstructure:"kerberos" yaml:"kerberos"`
	Logging    LogConfig        `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Profiling  ProfilingConfig  `mapstructure:"profiling" yaml:"profiling"`
}

// ConnectionConfig holds transport settings.
type ConnectionConfig struct {
	Address         string        `mapstructure:"address" validate:"required,hostname_port" yaml:"address"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" validate:"gte=0" yaml:"dial_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout" validate:"gte=0" yaml:"response_timeout"`
	MaxMessageSize  ByteSize      `mapstructure:"max_message_size" validate:"gte=0" yaml:"max_message_size"`
}

// BindConfig selects how the client authenticates. An empty Mechanism
// means no bind; "SIMPLE" is a simple bind with DN and Password; anything
// else names a SASL mechanism.
type BindConfig struct {
	Mechanism string `mapstructure:"mechanism" validate:"omitempty,mechanism" yaml:"mechanism"`
	DN        string `mapstructure:"dn" yaml:"dn,omitempty"`
	Username  string `mapstructure:"username" yaml:"username,omitempty"`
	Password  string `mapstructure:"password" yaml:"password,omitempty"`
	AuthzID   string `mapstructure:"authz_id" yaml:"authz_id,omitempty"`
	Realm     string `mapstructure:"realm" yaml:"realm,omitempty"`
	// Host is the server name used in the DIGEST-MD5 digest-uri and the
	// GSSAPI service principal. Defaults to the host part of the address.
	Host string `mapstructure:"host" yaml:"host,omitempty"`
}

// KerberosConfig configures the GSSAPI mechanism.
type KerberosConfig struct {
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf"`
	Keytab   string `mapstructure:"keytab" yaml:"keytab,omitempty"`
	Realm    string `mapstructure:"realm" yaml:"realm,omitempty"`
	// SPN overrides the default "ldap/<host>".
	SPN string `mapstructure:"spn" yaml:"spn,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error" yaml:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint of long-running commands.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true,omitempty,hostname_port" yaml:"address"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

// ProfilingConfig controls Pyroscope profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" validate:"required_if=Enabled true,omitempty,url" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// BindHost returns Bind.Host, or the host part of Connection.Address.
func (c *Config) BindHost() string {
	if c.Bind.Host != "" {
		return c.Bind.Host
	}
	host, _, err := net.SplitHostPort(c.Connection.Address)
	if err != nil {
		return c.Connection.Address
	}
	return host
}
