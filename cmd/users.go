package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/tsheet/internal/gateway"
	"github.com/Tiliavir/tsheet/internal/model"
	"github.com/Tiliavir/tsheet/internal/sheet"
	"github.com/Tiliavir/tsheet/internal/table"
)

func newUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin, user_manager)",
	}
	cmd.AddCommand(
		newUsersListCommand(a),
		newUsersAddCommand(a),
		newUsersEditCommand(a),
		newUsersDeleteCommand(a),
	)
	return cmd
}

// usersSheet builds the user table after checking the session may manage
// users.
func usersSheet(e *env) (*sheet.Sheet[model.User], error) {
	u, err := signedIn(e)
	if err != nil {
		return nil, err
	}
	if !u.Role.CanManageUsers() {
		return nil, fmt.Errorf("role %q may not manage users", u.Role)
	}
	return sheet.New(table.UserColumns(), &sheet.UsersBackend{API: e.client}, e.log,
		sheet.WithCreateColumns(table.UserCreateColumns()), sheet.AppendCreated[model.User]()), nil
}

func newUsersListCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			s, err := usersSheet(e)
			if err != nil {
				return err
			}
			if err := s.Reload(a.ctx); err != nil {
				return fmt.Errorf("loading users: %s", gateway.Message(err))
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, s.Rows())
			case "csv":
				fmt.Fprintln(out, "id,name,email,role,preferedHours")
				for _, u := range s.Rows() {
					fmt.Fprintf(out, "%s,%s,%s,%s,%s\n", csvEscape(u.ID), csvEscape(u.Name), csvEscape(u.Email), u.Role, table.FormatTarget(u))
				}
			case "table":
				printUsers(out, s.Rows())
			default:
				return fmt.Errorf("unknown format %q (want table, csv or json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, csv, json")
	return cmd
}

func printUsers(w io.Writer, users []model.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users found.")
		return
	}
	fmt.Fprintf(w, "%-26s%-20s%-30s%-14s%s\n", "ID", "Name", "Email", "Role", "Preferred")
	for _, u := range users {
		fmt.Fprintf(w, "%-26s%-20s%-30s%-14s%s\n", u.ID, u.Name, u.Email, u.Role, table.FormatTarget(u))
	}
}

func newUsersAddCommand(a *app) *cobra.Command {
	var name, email, password, role, hours string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			s, err := usersSheet(e)
			if err != nil {
				return err
			}
			draft := s.Blank()
			draft[table.FieldName] = name
			draft[table.FieldEmail] = email
			draft[table.FieldPassword] = password
			draft[table.FieldRole] = role
			if hours != "" {
				draft[table.FieldPreferredHours] = hours
			}
			u, msg, err := s.Create(a.ctx, draft)
			if err != nil {
				return describe("add failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s  %s  %s\n", notice(msg, "User created."), u.ID, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", "", "Role: user, user_manager, admin")
	cmd.Flags().StringVar(&hours, "hours", "", "Preferred daily hours")
	return cmd
}

func newUsersEditCommand(a *app) *cobra.Command {
	var name, email, role, hours string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			s, err := usersSheet(e)
			if err != nil {
				return err
			}
			if err := s.Reload(a.ctx); err != nil {
				return fmt.Errorf("loading users: %s", gateway.Message(err))
			}
			if !s.Begin(args[0]) {
				return fmt.Errorf("user %s not found", args[0])
			}
			changed := false
			for flag, field := range map[string]string{
				"name":  table.FieldName,
				"email": table.FieldEmail,
				"role":  table.FieldRole,
				"hours": table.FieldPreferredHours,
			} {
				if !cmd.Flags().Changed(flag) {
					continue
				}
				value, _ := cmd.Flags().GetString(flag)
				if err := s.UpdateField(field, value); err != nil {
					return err
				}
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to change: pass --name, --email, --role or --hours")
			}
			u, msg, err := s.Commit(a.ctx)
			if err != nil {
				return describe("edit failed", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s  %s  %s  %s\n", notice(msg, "User updated."),
				u.Name, u.Email, u.Role, table.FormatTarget(u))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&role, "role", "", "New role: user, user_manager, admin")
	cmd.Flags().StringVar(&hours, "hours", "", "New preferred daily hours")
	return cmd
}

func newUsersDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd)
			if err != nil {
				return err
			}
			s, err := usersSheet(e)
			if err != nil {
				return err
			}
			msg, err := s.Delete(a.ctx, args[0])
			if err != nil {
				return describe("delete failed", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), notice(msg, "User deleted."))
			return nil
		},
	}
}
