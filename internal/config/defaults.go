package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Address:         "localhost:389",
			DialTimeout:     10 * time.Second,
			ResponseTimeout: 30 * time.Second,
			MaxMessageSize:  10 << 20,
		},
		Kerberos: KerberosConfig{
			Krb5Conf: "/etc/krb5.conf",
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "localhost:9389",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Profiling: ProfilingConfig{
			Enabled:      false,
			Endpoint:     "http://localhost:4040",
			ProfileTypes: []string{"cpu", "alloc_space", "goroutines"},
		},
	}
}

// setDefaults registers every key with viper so that environment variables
// are honoured even for keys missing from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("connection.address", d.Connection.Address)
	v.SetDefault("connection.dial_timeout", d.Connection.DialTimeout)
	v.SetDefault("connection.response_timeout", d.Connection.ResponseTimeout)
	v.SetDefault("connection.max_message_size", d.Connection.MaxMessageSize)

	for _, key := range []string{"mechanism", "dn", "username", "password", "authz_id", "realm", "host"} {
		v.SetDefault("bind."+key, "")
	}

	v.SetDefault("kerberos.krb5_conf", d.Kerberos.Krb5Conf)
	v.SetDefault("kerberos.keytab", "")
	v.SetDefault("kerberos.realm", "")
	v.SetDefault("kerberos.spn", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	v.SetDefault("profiling.enabled", d.Profiling.Enabled)
	v.SetDefault("profiling.endpoint", d.Profiling.Endpoint)
	v.SetDefault("profiling.profile_types", d.Profiling.ProfileTypes)
}
