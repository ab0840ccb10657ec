package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/spf13/cobra"
)

var (
	configureServer      string
	configureCredentials string
	configureCredsFile   string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store the server address and user credentials",
	Long: `Store the install configuration every secure channel needs:
the server address and the opaque user credentials blob.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := readCredentials(configureCredentials, configureCredsFile)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), nil, func(app *camlink.App) error {
			if err := app.Configure(cmd.Context(), configureServer, creds); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configured")
			return nil
		})
	},
}

// readCredentials returns the credentials blob from a base64 flag value or
// from a file holding the raw bytes.
func readCredentials(b64, path string) ([]byte, error) {
	switch {
	case b64 != "" && path != "":
		return nil, fmt.Errorf("use either --credentials or --credentials-file")
	case path != "":
		return os.ReadFile(path)
	case b64 != "":
		b, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("credentials are required")
	}
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications on|off",
	Short: "Enable or disable motion alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), nil, func(app *camlink.App) error {
			return app.SetNotificationsEnabled(cmd.Context(), enabled)
		})
	},
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}

func init() {
	configureCmd.Flags().StringVar(&configureServer, "server", "", "server address")
	configureCmd.Flags().StringVar(&configureCredentials, "credentials", "", "base64 user credentials")
	configureCmd.Flags().StringVar(&configureCredsFile, "credentials-file", "", "file holding raw user credentials")
	configureCmd.MarkFlagRequired("server")

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(notificationsCmd)
}
