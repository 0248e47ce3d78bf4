package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/payguard/internal/common"
)

func (c *CLI) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Check a username and password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				u, err := GetSimpleText(c.in, "Username:", c.errOut)
				if err != nil {
					return err
				}
				username = u
			}

			gate, err := c.app.Gate(cmd.Context())
			if err != nil {
				return err
			}
			pw, err := GetPassword(c.errOut, "Password: ")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			res, err := gate.Login(cmd.Context(), username, string(pw))
			fmt.Fprintln(c.out, res.Message)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "id: %s\nrole: %s\n", res.Identity.ID, res.Identity.Role)
			return nil
		},
	}
}
