package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tsheet/internal/auth"
	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/timecalc"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			if password == "" {
				if password, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}
			token, err := e.client.Login(a.ctx, email, password)
			if err != nil {
				return fmt.Errorf("login failed: %s", gateway.Message(err))
			}
			if err := e.session.SetToken(token); err != nil {
				return err
			}
			e.log.Debug().Str("email", email).Msg("Signed in")
			u := e.session.User()
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", displayName(u), u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var in gateway.Registration
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			if role != "" {
				if in.Role, err = model.ParseRole(role); err != nil {
					return err
				}
			}
			if in.Password == "" {
				if in.Password, err = readLine(cmd, "Password: "); err != nil {
					return err
				}
			}
			_, msg, err := e.client.Register(a.ctx, in)
			if err != nil {
				return fmt.Errorf("registration failed: %s", gateway.Message(err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), notice(msg, "Account created. Run `tsheet login` to sign in."))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Account password (prompted when empty)")
	cmd.Flags().StringVar(&role, "role", "", "Role: user, user_manager, admin (server default when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			if err := e.session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			u, err := signedIn(e)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s%s\n", "Name", displayName(u))
			fmt.Fprintf(out, "%-16s%s\n", "Email", u.Email)
			fmt.Fprintf(out, "%-16s%s\n", "Role", u.Role)
			fmt.Fprintf(out, "%-16s%s\n", "Daily target", timecalc.FormatHours(preferredHours(e, u)))
			return nil
		},
	}
}

// signedIn returns the session identity or ErrUnauthenticated.
func signedIn(e *env) (*auth.UserInfo, error) {
	if !e.session.Authenticated() {
		return nil, auth.ErrUnauthenticated
	}
	u := e.session.User()
	if u == nil {
		return nil, errors.New("stored session token is unreadable; run `tsheet login` again")
	}
	return u, nil
}

// preferredHours is the user's target, falling back to the configured one
// when the token carries none.
func preferredHours(e *env, u *auth.UserInfo) float64 {
	if u != nil && u.PreferredHours != nil {
		return *u.PreferredHours
	}
	return e.cfg.Records.PreferredHours
}

func displayName(u *auth.UserInfo) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func notice(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}

func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
