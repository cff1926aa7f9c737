package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgellow/login-front/internal"
	"github.com/dgellow/login-front/internal/auth"
	"github.com/dgellow/login-front/internal/config"
	"github.com/dgellow/login-front/internal/log"
	"github.com/spf13/cobra"
)

var forceLogin bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	Long:  `Opens the identity provider in your browser and waits for the redirect on the configured loopback address.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLoginFront(cmd, func(ctx context.Context, lf *internal.LoginFront) error {
			if !forceLogin {
				ok, account, err := lf.Status(ctx)
				if err != nil && !errors.Is(err, auth.ErrSessionInvalid) {
					return err
				}
				if ok {
					fmt.Printf("Already logged in as %s\n", accountLabel(account))
					return nil
				}
			}

			fmt.Println("Opening your browser to sign in...")
			if err := lf.Login(ctx, forceLogin); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", accountLabel(lf.Auth().Session().AccountID(ctx)))
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the stored session against the backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLoginFront(cmd, func(ctx context.Context, lf *internal.LoginFront) error {
			ok, account, err := lf.Status(ctx)
			if errors.Is(err, auth.ErrSessionInvalid) {
				fmt.Println("Session expired. Run `login-front login` to sign in again.")
				return nil
			}
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Not logged in")
				return nil
			}
			fmt.Printf("Logged in as %s\n", accountLabel(account))
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLoginFront(cmd, func(ctx context.Context, lf *internal.LoginFront) error {
			if err := lf.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().BoolVar(&forceLogin, "force", false, "ask the provider for consent again even if already signed in")
}

// withLoginFront loads the config, builds a LoginFront and runs fn until it
// returns or the process is interrupted.
func withLoginFront(cmd *cobra.Command, fn func(ctx context.Context, lf *internal.LoginFront) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.LogDebugWithFields("main", "Starting login-front", map[string]any{
		"version": BuildVersion,
		"config":  configPath,
		"command": cmd.Name(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lf, err := internal.NewLoginFront(ctx, cfg, internal.Options{Notifier: cliNotifier()})
	if err != nil {
		return err
	}
	defer func() {
		if err := lf.Close(); err != nil {
			log.LogErrorWithFields("main", "Shutdown error", map[string]any{"error": err.Error()})
		}
	}()

	return fn(ctx, lf)
}

func cliNotifier() auth.Notifier {
	return auth.NotifierFuncs{
		OnError: func(reason string) {
			switch reason {
			case auth.ReasonGrantRevoked:
				fmt.Fprintln(os.Stderr, "Access was revoked at the provider. Asking for consent again...")
			case auth.ReasonLoginAbandoned:
				fmt.Fprintln(os.Stderr, "The sign-in window was closed before finishing.")
			}
		},
	}
}

func accountLabel(account string) string {
	if account == "" {
		return "unknown account"
	}
	return account
}
