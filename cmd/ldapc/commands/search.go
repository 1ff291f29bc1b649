package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
	"github.com/KilimcininKorOglu/ldapc/internal/filter"
	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
)

type searchOptions struct {
	scope     string
	pageSize  int
	sizeLimit int
	timeLimit time.Duration
	typesOnly bool
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	so := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search BASE [FILTER [ATTRIBUTE...]]",
		Short: "Search the directory and print entries as LDIF",
		Long: `Search below BASE. FILTER defaults to (objectClass=*).

With --page-size the search is repeated with the simple paged results
control (RFC 2696) until the server returns an empty cookie.

Examples:
  ldapc search dc=example,dc=com "(uid=alice)" cn mail
  ldapc search --scope one --page-size 500 ou=people,dc=example,dc=com`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := so.request(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			conn, err := s.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := runPagedSearch(cmd, conn, req, so.pageSize)
			if err != nil {
				return err
			}
			s.log.Debug("search complete", "entries", n)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&so.scope, "scope", "s", "sub", "search scope: base, one, sub")
	f.IntVar(&so.pageSize, "page-size", 0, "request pages of this size (0 disables paging)")
	f.IntVarP(&so.sizeLimit, "size-limit", "z", 0, "server-side size limit (0 is unlimited)")
	f.DurationVarP(&so.timeLimit, "time-limit", "l", 0, "server-side time limit, whole seconds")
	f.BoolVar(&so.typesOnly, "types-only", false, "return attribute names without values")
	return cmd
}

func (so *searchOptions) request(args []string) (*ldap.SearchRequest, error) {
	scope, err := ldap.ParseScope(so.scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, so.scope)
	}
	req := &ldap.SearchRequest{
		BaseObject: args[0],
		Scope:      scope,
		SizeLimit:  so.sizeLimit,
		TimeLimit:  int(so.timeLimit / time.Second),
		TypesOnly:  so.typesOnly,
	}
	if len(args) > 1 {
		if req.Filter, err = filter.Parse(args[1]); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", args[1], err)
		}
		req.Attributes = args[2:]
	}
	return req, nil
}

// runPagedSearch runs req, following the paged results cookie when
// pageSize is positive, and returns the number of entries printed.
func runPagedSearch(cmd *cobra.Command, conn *client.Conn, req *ldap.SearchRequest, pageSize int) (int, error) {
	out := cmd.OutOrStdout()
	entries := 0
	var cookie []byte

	for {
		var controls []ldap.Control
		if pageSize > 0 {
			c, err := (&ldap.PagedResults{Size: pageSize, Cookie: cookie}).Control(false)
			if err != nil {
				return entries, err
			}
			controls = append(controls, c)
		}

		h := conn.Search(req, controls...)
		h.OnEntry(func(e *client.Entry) {
			entries++
			writeEntry(out, e)
		})
		h.OnReference(func(uris []string) {
			for _, u := range uris {
				fmt.Fprintf(out, "# search reference: %s\n", u)
			}
			fmt.Fprintln(out)
		})

		res, err := h.Execute(cmd.Context())
		if err != nil {
			return entries, err
		}
		if !res.IsSuccess() {
			return entries, fmt.Errorf("search failed: %s", res)
		}

		cookie = nil
		if c, ok := ldap.FindControl(res.Controls(), ldap.PagedResultsOID); ok {
			p, err := ldap.ParsePagedResults(c)
			if err != nil {
				return entries, fmt.Errorf("invalid paged results control: %w", err)
			}
			cookie = p.Cookie
		}
		if pageSize <= 0 || len(cookie) == 0 {
			return entries, nil
		}
	}
}
