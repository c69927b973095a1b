package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhousvawls/daily-coach/internal/auth"
	"github.com/jhousvawls/daily-coach/internal/config"
	"github.com/jhousvawls/daily-coach/internal/ui"
)

var (
	loginEmail string
	loginTTL   time.Duration
)

var authCmd = &cobra.Command{
	Use:     "auth",
	GroupID: "sync",
	Short:   "Sign in or out for sync",
	Long: `Sync and migration act on behalf of the signed-in user. Signing in writes
a token signed with auth.secret to auth.session_file; a running daemon
notices the change and starts syncing. Setting auth.user_id instead signs
in statically.`,
}

func loadAuthConfig() (config.AuthConfig, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.AuthConfig{}, err
	}
	return cfg.Auth, nil
}

var authLoginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Sign in as a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAuthConfig()
		if err != nil {
			return err
		}
		if cfg.Secret == "" {
			return fmt.Errorf("auth.secret is not set (COACH_AUTH_SECRET)")
		}
		token, err := auth.IssueToken([]byte(cfg.Secret), args[0], loginEmail, loginTTL)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SessionFile), 0700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
		if err := auth.WriteSession(cfg.SessionFile, token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s until %s\n", ui.RenderPass("✓"),
			args[0], time.Now().Add(loginTTL).Format(time.DateTime))
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAuthConfig()
		if err != nil {
			return err
		}
		if err := os.Remove(cfg.SessionFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Signed out\n", ui.RenderPass("✓"))
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			out := cmd.OutOrStdout()
			id, ok := a.auth.CurrentUser()
			if !ok {
				fmt.Fprintln(out, "Signed out")
				return nil
			}
			fmt.Fprintf(out, "Signed in as %s", id.UserID)
			if id.Email != "" {
				fmt.Fprintf(out, " <%s>", id.Email)
			}
			if !id.ExpiresAt.IsZero() {
				fmt.Fprintf(out, " until %s", id.ExpiresAt.Local().Format(time.DateTime))
			}
			fmt.Fprintln(out)
			return nil
		})
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&loginEmail, "email", "", "Email recorded in the session")
	authLoginCmd.Flags().DurationVar(&loginTTL, "ttl", 30*24*time.Hour, "Session lifetime")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
