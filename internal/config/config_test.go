package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost:389", cfg.Connection.Address)
	assert.Equal(t, 30*time.Second, cfg.Connection.ResponseTimeout)
	assert.Equal(t, ByteSize(10<<20), cfg.Connection.MaxMessageSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Bind.Mechanism)
	assert.Empty(t, ValidateConfig(cfg))
}

func TestParseConfigEmptyYieldsDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
connection:
  address: "ldap.example.com:636"
  dial_timeout: 2s
  response_timeout: 1m
  max_message_size: 512KiB
bind:
  mechanism: SCRAM-SHA-256
  username: alice
  password: secret
  authz_id: "u:admin"
logging:
  level: debug
  format: json
profiling:
  profile_types: [cpu, heap]
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "ldap.example.com:636", cfg.Connection.Address)
	assert.Equal(t, 2*time.Second, cfg.Connection.DialTimeout)
	assert.Equal(t, time.Minute, cfg.Connection.ResponseTimeout)
	assert.Equal(t, ByteSize(512<<10), cfg.Connection.MaxMessageSize)
	assert.Equal(t, "SCRAM-SHA-256", cfg.Bind.Mechanism)
	assert.Equal(t, "alice", cfg.Bind.Username)
	assert.Equal(t, "u:admin", cfg.Bind.AuthzID)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"cpu", "heap"}, cfg.Profiling.ProfileTypes)

	// Untouched sections keep their defaults.
	assert.Equal(t, "/etc/krb5.conf", cfg.Kerberos.Krb5Conf)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Empty(t, ValidateConfig(cfg))
}

func TestParseConfigByteSizes(t *testing.T) {
	tests := []struct {
		value string
		want  ByteSize
	}{
		{"1048576", 1 << 20},
		{"10MiB", 10 << 20},
		{"64k", 64 << 10},
		{`"2g"`, 2 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := ParseConfig([]byte("connection:\n  max_message_size: " + tt.value + "\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Connection.MaxMessageSize)
		})
	}

	_, err := ParseConfig([]byte("connection:\n  max_message_size: lots\n"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LDAPC_CONNECTION_RESPONSE_TIMEOUT", "5s")
	t.Setenv("LDAPC_BIND_MECHANISM", "PLAIN")
	t.Setenv("LDAPC_CONNECTION_MAX_MESSAGE_SIZE", "1MiB")

	cfg, err := ParseConfig([]byte("connection:\n  response_timeout: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Connection.ResponseTimeout)
	assert.Equal(t, "PLAIN", cfg.Bind.Mechanism)
	assert.Equal(t, ByteSize(1<<20), cfg.Connection.MaxMessageSize)
}

func TestEnvironmentVariableSubstitution(t *testing.T) {
	t.Setenv("LDAPC_TEST_PASSWORD", "s3cret")

	cfg, err := ParseConfig([]byte(`
bind:
  mechanism: PLAIN
  username: "${LDAPC_TEST_USER:-bob}"
  password: "${LDAPC_TEST_PASSWORD}"
`))
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Bind.Username)
	assert.Equal(t, "s3cret", cfg.Bind.Password)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")

	assert.Equal(t, "key: value", string(substituteEnvVars([]byte("key: ${TEST_VAR}"))))
	assert.Equal(t, "key: default", string(substituteEnvVars([]byte("key: ${TEST_MISSING:-default}"))))
	assert.Equal(t, "key: ", string(substituteEnvVars([]byte("key: ${TEST_MISSING}"))))
	assert.Equal(t, "key: value", string(substituteEnvVars([]byte("key: value"))))
}

func TestInvalidYAML(t *testing.T) {
	_, err := ParseConfig([]byte("connection: [unterminated"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ldapc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapc.yaml")
	cfg := DefaultConfig()
	cfg.Bind.Mechanism = "DIGEST-MD5"
	cfg.Bind.Username = "chris"
	cfg.Bind.Password = "secret"

	require.NoError(t, SaveConfig(cfg, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestBindHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Connection.Address = "dc1.example.com:389"
	assert.Equal(t, "dc1.example.com", cfg.BindHost())

	cfg.Bind.Host = "ldap.example.com"
	assert.Equal(t, "ldap.example.com", cfg.BindHost())
}

func fields(errs []error) []string {
	var out []string
	for _, err := range errs {
		var ve ValidationError
		if errors.As(err, &ve) {
			out = append(out, ve.Field)
		}
	}
	return out
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   []string
	}{
		{
			name:   "valid defaults",
			modify: func(*Config) {},
		},
		{
			name:   "missing address",
			modify: func(c *Config) { c.Connection.Address = "" },
			want:   []string{"connection.address"},
		},
		{
			name:   "address without port",
			modify: func(c *Config) { c.Connection.Address = "ldap.example.com" },
			want:   []string{"connection.address"},
		},
		{
			name:   "negative timeout",
			modify: func(c *Config) { c.Connection.ResponseTimeout = -time.Second },
			want:   []string{"connection.response_timeout"},
		},
		{
			name:   "bad log level",
			modify: func(c *Config) { c.Logging.Level = "verbose" },
			want:   []string{"logging.level"},
		},
		{
			name:   "unknown mechanism",
			modify: func(c *Config) { c.Bind.Mechanism = "NTLM" },
			want:   []string{"bind.mechanism"},
		},
		{
			name:   "simple bind needs a DN",
			modify: func(c *Config) { c.Bind.Mechanism = "simple" },
			want:   []string{"bind.dn"},
		},
		{
			name: "scram needs credentials",
			modify: func(c *Config) {
				c.Bind.Mechanism = "SCRAM-SHA-512"
				c.Bind.Username = "alice"
			},
			want: []string{"bind.password"},
		},
		{
			name: "gssapi needs a keytab or password",
			modify: func(c *Config) {
				c.Bind.Mechanism = "GSSAPI"
				c.Bind.Username = "alice"
			},
			want: []string{"kerberos.keytab"},
		},
		{
			name: "gssapi with keytab",
			modify: func(c *Config) {
				c.Bind.Mechanism = "GSSAPI"
				c.Bind.Username = "alice"
				c.Kerberos.Keytab = "/etc/alice.keytab"
			},
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			want: []string{"metrics.address"},
		},
		{
			name:   "sample rate out of range",
			modify: func(c *Config) { c.Tracing.SampleRate = 1.5 },
			want:   []string{"tracing.sample_rate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			errs := ValidateConfig(cfg)
			assert.Equal(t, tt.want, fields(errs), "errors: %v", errs)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Format = "xml"
	errs := ValidateConfig(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, "logging.format: must be one of: text, json", errs[0].Error())
}

func TestNewConfigWatcherRequiresArguments(t *testing.T) {
	_, err := NewConfigWatcher(&WatcherConfig{OnChange: func(_, _ *Config) {}})
	assert.ErrorIs(t, err, ErrMissingConfigFile)

	_, err = NewConfigWatcher(&WatcherConfig{FilePath: "ldapc.yaml"})
	assert.ErrorIs(t, err, ErrMissingOnChange)
}

func TestConfigWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldapc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	var level atomic.Value
	var failures atomic.Int32
	w, err := NewConfigWatcher(&WatcherConfig{
		FilePath: path,
		Debounce: 20 * time.Millisecond,
		OnChange: func(_, newCfg *Config) { level.Store(newCfg.Logging.Level) },
		OnError:  func(error) { failures.Add(1) },
	})
	require.NoError(t, err)
	w.Start()
	defer w.Stop()
	assert.True(t, w.IsRunning())

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))
	assert.Eventually(t, func() bool { return level.Load() == "debug" }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "debug", w.GetCurrentConfig().Logging.Level)

	// An invalid file is reported and the previous config stays current.
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))
	assert.Eventually(t, func() bool { return failures.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "debug", w.GetCurrentConfig().Logging.Level)

	w.Stop()
	assert.False(t, w.IsRunning())
}
