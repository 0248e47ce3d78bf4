// Package cli implements the payguard command-line interface.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/payguard/internal/app"
	"github.com/dmitrijs2005/payguard/internal/common"
	"github.com/dmitrijs2005/payguard/internal/config"
	"github.com/dmitrijs2005/payguard/internal/logging"
)

// loadConfig is a test seam for config.Load.
var loadConfig = config.Load

// CLI carries the I/O streams and the lazily built App shared by commands.
type CLI struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	flags      *config.Flags
	app        *app.App
}

// New returns a CLI reading from in and writing to out and errOut.
func New(in io.Reader, out, errOut io.Writer) *CLI {
	return &CLI{in: bufio.NewReader(in), out: out, errOut: errOut}
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "payguard",
		Short:         "Key management, password hashing and login gating for payroll data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a JSON config file (or "+config.EnvConfigFile+")")
	c.flags = config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		c.keysCommand(),
		c.encryptCommand(),
		c.decryptCommand(),
		c.redactCommand(),
		c.hashPasswordCommand(),
		c.usersCommand(),
		c.loginCommand(),
		c.sanitizeCommand(),
	)
	return root
}

func (c *CLI) setup(ctx context.Context) error {
	path := c.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}

	cfg, err := loadConfig(path, c.flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(c.errOut, cfg.LogLevel)
	if err != nil {
		return err
	}

	c.app, err = app.NewApp(ctx, cfg, logger, c.masterSecret)
	return err
}

// masterSecret reads PAYGUARD_MASTER_SECRET or prompts for it.
func (c *CLI) masterSecret(ctx context.Context) ([]byte, error) {
	if v := os.Getenv(config.EnvMasterSecret); v != "" {
		return []byte(v), nil
	}
	s, err := GetPassword(c.errOut, "Master secret: ")
	if err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, common.ErrConfiguration
	}
	return s, nil
}

// Close releases the App built for the last command, if any.
func (c *CLI) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// Execute runs the CLI against os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	c := New(os.Stdin, os.Stdout, os.Stderr)
	defer c.Close()

	root := c.RootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
