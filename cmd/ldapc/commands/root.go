// Package commands implements the ldapc command line.
package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/ldapc/internal/config"
)

// Version information injected at build time:
//
//	go build -ldflags "-X github.com/KilimcininKorOglu/ldapc/cmd/ldapc/commands.Version=1.0.0"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalOptions are the persistent flags shared by every command. Set
// flags override the configuration file and the environment.
type globalOptions struct {
	configFile string
	address    string
	mechanism  string
	bindDN     string
	username   string
	password   string
	authzID    string
	logLevel   string
}

// Execute builds the command tree and runs it against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd returns a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ldapc",
		Short: "ldapc - asynchronous LDAP client",
		Long: `ldapc talks to LDAP directories over a single multiplexed connection.
It authenticates with a simple bind or one of the SASL mechanisms
(PLAIN, EXTERNAL, CRAM-MD5, DIGEST-MD5, GSSAPI, SCRAM-SHA-1/256/512).

Configuration is read from --config, then LDAPC_<SECTION>_<KEY>
environment variables, then the flags below.

Use "ldapc [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: built-in defaults)")
	pf.StringVarP(&opts.address, "address", "H", "", "server host:port")
	pf.StringVarP(&opts.mechanism, "mechanism", "Y", "", "bind mechanism: SIMPLE or a SASL mechanism name")
	pf.StringVarP(&opts.bindDN, "bind-dn", "D", "", "DN for simple binds")
	pf.StringVarP(&opts.username, "username", "U", "", "SASL authentication identity")
	pf.StringVarP(&opts.password, "password", "w", "", "bind password")
	pf.StringVarP(&opts.authzID, "authz-id", "X", "", "SASL authorization identity")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newWhoAmICmd(opts))
	root.AddCommand(newSearchCmd(opts))
	root.AddCommand(newCompareCmd(opts))
	root.AddCommand(newWatchCmd(opts))

	root.CompletionOptions.DisableDefaultCmd = true
	return root
}

// loadConfig loads the configuration and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	return cfg, nil
}

func (o *globalOptions) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Connection.Address, o.address)
	set(&cfg.Bind.Mechanism, strings.ToUpper(o.mechanism))
	set(&cfg.Bind.DN, o.bindDN)
	set(&cfg.Bind.Username, o.username)
	set(&cfg.Bind.Password, o.password)
	set(&cfg.Bind.AuthzID, o.authzID)
	set(&cfg.Logging.Level, o.logLevel)

	// A bare --bind-dn means a simple bind.
	if cfg.Bind.Mechanism == "" && o.bindDN != "" {
		cfg.Bind.Mechanism = "SIMPLE"
	}
}
