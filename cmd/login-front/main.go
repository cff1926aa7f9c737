package main

import (
	"fmt"
	"os"

	"github.com/dgellow/login-front/internal/config"
	"github.com/dgellow/login-front/internal/log"
	"github.com/spf13/cobra"
)

var BuildVersion = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "login-front",
	Short:         "Sign in to the game backend with your identity provider",
	Long:          `login-front runs the OAuth2 authorization code flow with PKCE in your browser and keeps the resulting session token.`,
	Version:       BuildVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			if err := log.SetLogLevel(logLevel); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate("login-front version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error, warn, info, debug, trace)")

	rootCmd.AddCommand(loginCmd, statusCmd, logoutCmd, validateCmd, configInitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
