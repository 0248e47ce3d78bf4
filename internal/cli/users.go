package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/users"
)

func (c *CLI) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts",
	}

	var role string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user; the password is read from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := users.ParseRole(role)
			if err != nil {
				return err
			}
			gate, err := c.app.Gate(cmd.Context())
			if err != nil {
				return err
			}
			pw, err := GetNewPassword(c.errOut)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			id, err := gate.CreateUser(cmd.Context(), args[0], string(pw), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "user %s created (id %s, role %s)\n", id.UserName, id.ID, id.Role)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", string(users.RoleEmployee), "admin, finance, hr or employee")

	passwd := &cobra.Command{
		Use:   "passwd <user-id>",
		Short: "Set a new password for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := c.app.Gate(cmd.Context())
			if err != nil {
				return err
			}
			pw, err := GetNewPassword(c.errOut)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			if err := gate.ChangePassword(cmd.Context(), args[0], string(pw)); err != nil {
				return userError(args[0], err)
			}
			fmt.Fprintln(c.out, "password changed")
			return nil
		},
	}

	setActive := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <user-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				gate, err := c.app.Gate(cmd.Context())
				if err != nil {
					return err
				}
				if err := gate.SetActive(cmd.Context(), args[0], active); err != nil {
					return userError(args[0], err)
				}
				fmt.Fprintf(c.out, "user %s %sd\n", args[0], use)
				return nil
			},
		}
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gate, err := c.app.Gate(cmd.Context())
			if err != nil {
				return err
			}
			accounts, err := gate.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tROLE\tACTIVE")
			for _, a := range accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", a.ID, a.UserName, a.Role, a.IsActive)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(
		add,
		passwd,
		setActive("disable", "Disable a user; login then fails like a wrong password", false),
		setActive("enable", "Re-enable a disabled user", true),
		list,
	)
	return cmd
}

func userError(id string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("user %s: %w", id, err)
	}
	return err
}
