// Package config loads the ldapc client configuration.
//
// Configuration comes from a YAML file, ${VAR} and ${VAR:-default}
// references inside it, and LDAPC_<SECTION>_<KEY> environment variables,
// in increasing order of precedence. Missing keys take the values of
// DefaultConfig.
//
//	connection:
//	  address: "ldap.example.com:389"
//	  response_timeout: 30s
//	  max_message_size: 10MiB
//
//	bind:
//	  mechanism: SCRAM-SHA-256
//	  username: "alice"
//	  password: "${LDAP_PASSWORD}"
//
//	logging:
//	  level: info
//	  format: json
//
// ConfigWatcher reloads the file when it changes so long-running commands
// can pick up a new log level without restarting.
package config
