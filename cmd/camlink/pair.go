package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"text/tabwriter"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/backkem/camlink/pkg/discovery"
	"github.com/spf13/cobra"
)

var pairSecret string

var pairCmd = &cobra.Command{
	Use:   "pair CAMERA [IP]",
	Short: "Pair a camera by address or by discovery",
	Long: `Add a camera to the secure channel and record it as paired.
Without an IP the camera is looked up on the local network by name.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := base64.StdEncoding.DecodeString(pairSecret)
		if err != nil {
			return fmt.Errorf("decode secret: %w", err)
		}
		ctx := cmd.Context()
		return withApp(ctx, nil, func(app *camlink.App) error {
			if len(args) == 2 {
				err = app.Pair(ctx, args[0], args[1], secret)
			} else {
				err = pairDiscovered(ctx, app, args[0], secret)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paired %s\n", args[0])
			return nil
		})
	},
}

func pairDiscovered(ctx context.Context, app *camlink.App, name string, secret []byte) error {
	cams, err := app.Discover(ctx)
	if err != nil {
		return err
	}
	for _, c := range cams {
		if c.Name == name {
			return app.PairDiscovered(ctx, c, secret)
		}
	}
	return fmt.Errorf("camera %q not found on the local network", name)
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister CAMERA",
	Short: "Remove a camera",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), nil, func(app *camlink.App) error {
			if err := app.Deregister(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deregistered %s\n", args[0])
			return nil
		})
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Browse the local network for cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), nil, func(app *camlink.App) error {
			cams, err := app.Discover(cmd.Context())
			if err != nil {
				return err
			}
			if len(cams) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cameras found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tMODEL\tHOST")
			for _, c := range cams {
				addr, err := c.Address()
				if err != nil {
					addr = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, addr, c.Text[discovery.TXTKeyModel], c.HostName)
			}
			return w.Flush()
		})
	},
}

func init() {
	pairCmd.Flags().StringVar(&pairSecret, "secret", "", "base64 pairing secret")
	pairCmd.MarkFlagRequired("secret")

	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(deregisterCmd)
	rootCmd.AddCommand(discoverCmd)
}
