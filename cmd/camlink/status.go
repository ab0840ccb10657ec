package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show install state and paired cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, nil, func(app *camlink.App) error {
			state, err := app.State(ctx)
			if err != nil {
				return err
			}
			cams, err := app.Cameras(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", state)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CAMERA\tCHANNEL")
			for _, c := range cams {
				cs, err := app.Sessions().State(ctx, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", c, cs)
			}
			return w.Flush()
		})
	},
}

var videosCmd = &cobra.Command{
	Use:   "videos CAMERA",
	Short: "List clips recorded for a camera",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, nil, func(app *camlink.App) error {
			vids, err := app.Videos(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tRECEIVED\tPENDING\tCREATED")
			for _, v := range vids {
				fmt.Fprintf(w, "%s\t%t\t%t\t%s\n", v.FileName, v.Received, v.Pending, v.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(videosCmd)
}
