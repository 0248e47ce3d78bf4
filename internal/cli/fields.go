package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/encryption"
	"github.com/dmitrijs2005/payguard/internal/sanitize"
)

func (c *CLI) encryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <text>",
		Short: "Encrypt a field value with the primary key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.app.Encryption(cmd.Context())
			if err != nil {
				return err
			}
			ct, err := m.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, ct)
			return nil
		},
	}
}

func (c *CLI) decryptCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <ciphertext>",
		Short: "Decrypt a value produced by encrypt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.app.Encryption(cmd.Context())
			if err != nil {
				return err
			}
			pt, err := m.Decrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, pt)
			return nil
		},
	}
}

func (c *CLI) redactCommand() *cobra.Command {
	var showLast int
	cmd := &cobra.Command{
		Use:   "redact <text>",
		Short: "Mask all but the last characters of a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(c.out, encryption.Redact(args[0], showLast))
			return nil
		},
	}
	cmd.Flags().IntVar(&showLast, "show-last", 4, "number of trailing characters left visible")
	return cmd
}

func (c *CLI) hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print an Argon2id hash of a password read from the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := GetPassword(c.errOut, "Password: ")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			h, err := c.app.Passwords().Hash(string(pw))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, h)
			return nil
		},
	}
}

func (c *CLI) sanitizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize <text>",
		Short: "Make a value safe to place in a spreadsheet cell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(c.out, sanitize.ForSpreadsheet(sanitize.RemoveControlChars(args[0])))
			return nil
		},
	}
}
