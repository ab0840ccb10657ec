package main

import (
	"errors"
	"fmt"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/backkem/camlink/pkg/token"
	"github.com/spf13/cobra"
)

var tokenRetry bool

var tokenCmd = &cobra.Command{
	Use:   "token [TOKEN]",
	Short: "Handle a relay token rotation",
	Long: `Push a new relay token to every paired camera. If any camera cannot
be reached the token is kept as pending and retried on the next connection.
With --retry, push the pending token again instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenRetry == (len(args) == 1) {
			return errors.New("give either a token or --retry")
		}
		ctx := cmd.Context()
		return withApp(ctx, nil, func(app *camlink.App) error {
			var err error
			if tokenRetry {
				err = app.RetryPendingToken(ctx)
			} else {
				err = app.OnNewToken(ctx, args[0])
			}
			switch {
			case errors.Is(err, token.ErrPending):
				fmt.Fprintf(cmd.OutOrStdout(), "pending: %v\n", err)
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "updated")
			return nil
		})
	},
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenRetry, "retry", false, "retry the pending token")
	rootCmd.AddCommand(tokenCmd)
}
