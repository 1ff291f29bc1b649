package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/ldapc/internal/ldap"
)

func newWhoAmICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authorization identity of the bound connection",
		Long: `Bind as configured and send the "Who am I?" extended operation (RFC 4532).

Examples:
  ldapc whoami -Y SCRAM-SHA-256 -U alice -w secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			res, err := conn.Extended(&ldap.ExtendedRequest{Name: ldap.WhoAmIOID}).Execute(ctx)
			if err != nil {
				return err
			}
			if !res.IsSuccess() {
				return fmt.Errorf("whoami failed: %s", res)
			}
			id := string(res.ResponseValue())
			if id == "" {
				id = "anonymous"
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
