package cli

import (
	"github.com/spf13/cobra"

	"github.com/baldanca/awsbulk/awsconf"
)

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account and principal the resolved credentials belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c, err := a.awsClients(ctx)
			if err != nil {
				return err
			}
			id, err := awsconf.WhoAmI(ctx, c.STS(), c.Region())
			if err != nil {
				return err
			}
			return writeRows(ctx, a, []awsconf.Identity{id})
		},
	}
}
