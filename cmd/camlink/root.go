package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix prefixes environment variables that override settings.
const envPrefix = "CAMLINK"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "camlink",
	Short: "Camera push notification client",
	Long: `camlink keeps per-camera secure channel sessions for one install,
handles motion pushes and relay token rotations, and pairs cameras.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		if err := initConfig(viper.GetViper(), cfgFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.camlink.yaml)")
	pf.Bool(keySimulate, false, "use the in-process channel simulator instead of a helper")
	pf.String(keyHelper, "", "secure channel helper executable")
	pf.StringSlice(keyHelperArgs, nil, "arguments passed to the helper")
	pf.String(keyStore, storeMemory, "store backend: memory, file or redis")
	pf.String(keyStorePath, "camlink.store", "sealed store file for --store=file")
	pf.String(keyStoreSecret, "", "install secret sealing the store file")
	pf.String(keyRedisURL, "redis://localhost:6379/0", "Redis URL for --store=redis")
	pf.String(keyRedisPrefix, "", "Redis key prefix (default camlink:)")
	pf.String(keyFilesDir, ".", "parent of per-camera storage directories")
	pf.String(keyPostgresDSN, "", "Postgres DSN for the video repository (default in-memory)")
	pf.String(keyWebhookURL, "", "deliver motion alerts to this URL instead of the log")
	pf.Int64(keyMaxConcurrent, 0, "maximum concurrent background tasks")
	pf.String(keyLogLevel, "info", "log level: disabled, error, warn, info, debug or trace")

	if err := viper.BindPFlags(pf); err != nil {
		panic(err)
	}
}

// initConfig loads .env, then the config file, then binds CAMLINK_*
// variables. Later sources win.
func initConfig(v *viper.Viper, file string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".camlink")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
