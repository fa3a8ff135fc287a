package cli

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/cloudkeeper/internal/client/api"
	"github.com/spf13/cobra"
)

func newRegisterCmd(a *App) *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username == "" {
				if username, err = a.prompt("Username"); err != nil {
					return err
				}
			}
			password, err := a.password("Password")
			if err != nil {
				return err
			}
			confirm, err := a.password("Confirm password")
			if err != nil {
				return err
			}

			err = a.client.SignUp(cmd.Context(), api.SignUpRequest{
				Username:        username,
				Password:        password,
				ConfirmPassword: confirm,
				Email:           email,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			a.printf("Registered %s. Run \"cloudkeeper-cli login %s\" to sign in.\n", username, username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Optional email address")
	return cmd
}

func newLoginCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username-or-email]",
		Short: "Sign in and store the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				login string
				err   error
			)
			if len(args) > 0 {
				login = args[0]
			} else if login, err = a.prompt("Username or email"); err != nil {
				return err
			}

			password, err := a.password("Password")
			if err != nil {
				return err
			}

			s, err := a.client.SignIn(cmd.Context(), login, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			a.cfg.Token = s.Token
			a.cfg.TokenExpiresAt = s.ExpiresAt
			if err := a.save(); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}
			a.printf("Logged in as %s (session valid until %s)\n", login, s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.HasToken() {
				if err := a.client.Logout(cmd.Context()); err != nil && !api.IsStatus(err, http.StatusUnauthorized) {
					return fmt.Errorf("logout failed: %w", err)
				}
			}
			a.cfg.ClearToken()
			if err := a.save(); err != nil {
				return err
			}
			a.printf("Logged out\n")
			return nil
		},
	}
}

func newWhoamiCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			acc, err := a.client.Account(cmd.Context())
			if err != nil {
				return a.forgetIfUnauthorized(err)
			}
			a.printf("Name:   %s\n", acc.Name)
			if acc.Email != nil {
				a.printf("Email:  %s\n", *acc.Email)
			}
			a.printf("ID:     %s\n", acc.ID)
			a.printf("Server: %s\n", a.cfg.ServerURL)
			return nil
		},
	}
}

func newDeleteAccountCmd(a *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the account and every stored file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAuth(); err != nil {
				return err
			}
			if !yes {
				answer, err := a.prompt("This removes all your files. Type 'yes' to continue")
				if err != nil {
					return err
				}
				if answer != "yes" {
					a.printf("Aborted\n")
					return nil
				}
			}

			password, err := a.password("Current password")
			if err != nil {
				return err
			}
			if err := a.client.DeleteAccount(cmd.Context(), password); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			a.cfg.ClearToken()
			if err := a.save(); err != nil {
				return err
			}
			a.printf("Account deleted\n")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
