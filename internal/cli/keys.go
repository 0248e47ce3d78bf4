package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/payguard/internal/filex"
)

func (c *CLI) keysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the encrypted key store",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the key store, or check that the master secret unlocks it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				existed, err := filex.Exists(c.app.KeyStorePath())
				if err != nil {
					return err
				}
				m, err := c.app.Encryption(cmd.Context())
				if err != nil {
					return err
				}
				if existed {
					fmt.Fprintf(c.out, "key store unlocked: %s (%d keys)\n", c.app.KeyStorePath(), m.KeyCount())
				} else {
					fmt.Fprintf(c.out, "key store created: %s\n", c.app.KeyStorePath())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rotate",
			Short: "Make a new primary key; older keys stay available for decryption",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := c.app.Encryption(cmd.Context())
				if err != nil {
					return err
				}
				if err := m.RotateKey(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "key rotated, %d keys retained\n", m.KeyCount())
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show key store metadata",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := c.app.Encryption(cmd.Context())
				if err != nil {
					return err
				}
				st, err := m.Status()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "location:       %s\n", st.Location)
				fmt.Fprintf(c.out, "keys:           %d\n", st.Keys)
				fmt.Fprintf(c.out, "kdf iterations: %d\n", st.KDFIterations)
				fmt.Fprintf(c.out, "created:        %s\n", formatTime(st.CreatedAt))
				fmt.Fprintf(c.out, "last rotated:   %s\n", formatTime(st.RotatedAt))
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore",
			Short: "Copy the key store back from the S3 mirror",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := c.app.RestoreKeys(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "key store restored: %s\n", c.app.KeyStorePath())
				return nil
			},
		},
	)
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
