package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
	"github.com/KilimcininKorOglu/ldapc/internal/config"
	"github.com/KilimcininKorOglu/ldapc/internal/filter"
	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
	"github.com/KilimcininKorOglu/ldapc/internal/logging"
	"github.com/KilimcininKorOglu/ldapc/internal/metrics"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		scope   string
		initial bool
	)
	cmd := &cobra.Command{
		Use:   "watch BASE [FILTER [ATTRIBUTE...]]",
		Short: "Follow changes with a persistent search",
		Long: `Run a persistent search and print each changed entry as LDIF, preceded
by a comment naming the change type. Ctrl+C abandons the search.

While running, the configuration file is watched and a changed
logging.level takes effect immediately. With metrics.enabled the
Prometheus metrics are served on metrics.address.

Examples:
  ldapc watch --config ldapc.yaml ou=people,dc=example,dc=com`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := ldap.ParseScope(scope)
			if err != nil {
				return fmt.Errorf("%w: %q", err, scope)
			}
			req := &ldap.SearchRequest{BaseObject: args[0], Scope: sc}
			if len(args) > 1 {
				if req.Filter, err = filter.Parse(args[1]); err != nil {
					return fmt.Errorf("invalid filter %q: %w", args[1], err)
				}
				req.Attributes = args[2:]
			}
			ps, err := (&ldap.PersistentSearch{
				ChangeTypes: ldap.ChangeTypeAdd | ldap.ChangeTypeDelete | ldap.ChangeTypeModify | ldap.ChangeTypeModDN,
				ChangesOnly: !initial,
				ReturnECs:   true,
			}).Control()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			if s.cfg.Metrics.Enabled {
				stopMetrics := serveMetrics(s.cfg.Metrics.Address, s)
				defer stopMetrics()
			}
			if opts.configFile != "" {
				w, err := watchLogLevel(opts.configFile, s.log)
				if err != nil {
					return err
				}
				w.Start()
				defer w.Stop()
			}

			conn, err := s.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			h := conn.Search(req, ps)
			h.SetTimeout(0)
			h.OnEntry(func(e *client.Entry) {
				fmt.Fprintf(out, "# %s\n", changeOf(e))
				writeEntry(out, e)
			})

			res, err := h.Execute(ctx)
			switch {
			case err != nil && ctx.Err() != nil && errors.Is(err, client.ErrLocal):
				s.log.Info("persistent search abandoned")
				return nil
			case err != nil:
				return err
			case !res.IsSuccess():
				return fmt.Errorf("persistent search ended: %s", res)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "s", "sub", "search scope: base, one, sub")
	cmd.Flags().BoolVar(&initial, "initial", false, "print the matching entries before the first change")
	return cmd
}

// changeOf names the change carried by an entry's entry change
// notification control, or "present" for initial results.
func changeOf(e *client.Entry) string {
	c, ok := ldap.FindControl(e.Controls(), ldap.EntryChangeNotificationOID)
	if !ok {
		return "present"
	}
	ec, err := ldap.ParseEntryChange(c)
	if err != nil {
		return "unknown change"
	}
	switch ec.ChangeType {
	case ldap.ChangeTypeAdd:
		return "add"
	case ldap.ChangeTypeDelete:
		return "delete"
	case ldap.ChangeTypeModify:
		return "modify"
	case ldap.ChangeTypeModDN:
		if ec.PreviousDN != "" {
			return "moddn from " + ec.PreviousDN
		}
		return "moddn"
	}
	return fmt.Sprintf("change type %d", ec.ChangeType)
}

func serveMetrics(addr string, s *session) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(s.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", "address", addr, "error", err)
		}
	}()
	s.log.Info("metrics enabled", "address", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// watchLogLevel follows logging.level in the config file.
func watchLogLevel(path string, log logging.Logger) (*config.ConfigWatcher, error) {
	return config.NewConfigWatcher(&config.WatcherConfig{
		FilePath: path,
		OnChange: func(oldCfg, newCfg *config.Config) {
			if oldCfg.Logging.Level == newCfg.Logging.Level {
				return
			}
			log.SetLevel(logging.ParseLevel(newCfg.Logging.Level))
			log.Info("log level changed", "from", oldCfg.Logging.Level, "to", newCfg.Logging.Level)
		},
		OnError: func(err error) {
			log.Warn("config reload failed", "error", err)
		},
	})
}
