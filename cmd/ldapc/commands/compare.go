package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
)

func newCompareCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare DN ATTRIBUTE VALUE",
		Short: "Compare an attribute value of an entry",
		Long: `Send a compare request and print TRUE or FALSE.

Examples:
  ldapc compare uid=alice,ou=people,dc=example,dc=com mail alice@example.com`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &ldap.CompareRequest{DN: args[0], Attribute: args[1], Value: []byte(args[2])}
			if err := req.Validate(); err != nil {
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

			var (
				answered bool
				matched  bool
			)
			h := conn.Compare(req)
			h.OnCompare(func(m bool) { answered, matched = true, m })
			res, err := h.Execute(ctx)
			if err != nil {
				return err
			}
			if !answered {
				return fmt.Errorf("compare failed: %s", res)
			}
			if matched {
				fmt.Fprintln(cmd.OutOrStdout(), "TRUE")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "FALSE")
			}
			return nil
		},
	}
}
