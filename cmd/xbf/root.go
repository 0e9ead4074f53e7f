package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"goXBF/internal/bridge"
	"goXBF/internal/config"
	"goXBF/internal/engine"
	"goXBF/internal/storage"
	"goXBF/internal/storage/filestore"
	"goXBF/internal/storage/memstore"
)

type runFunction func(cmd *Command, args []string) error

func mkRunE(c *Command, f runFunction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c.Command = cmd
		return f(c, args)
	}
}

type Command struct {
	// The currently active command.
	*cobra.Command

	root *cobra.Command

	cfg *config.Config
	log *slog.Logger
}

// newRootCmd creates the base command when called without any subcommands
func newRootCmd() *Command {
	cmd := &cobra.Command{
		Use:   "xbf",
		Short: "xbf encodes XBF schemas and stores XBF records in tables.",
		Long: `xbf works with XBF, a self-describing binary encoding.

Schemas are written in YAML:

	name: point
	fields:
	  - {name: x, type: i32}
	  - {name: tags, type: {vec: string}}

and turned into XBF metadata with 'xbf schema encode'. Tables store records
of one schema each; rows are read from and written as YAML, JSON or CBOR.`,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &Command{Command: cmd, root: cmd}
	cmd.PersistentPreRunE = mkRunE(c, func(cmd *Command, args []string) error {
		return cmd.setup()
	})

	addGlobalFlags(cmd.PersistentFlags())

	subCommands := []*cobra.Command{
		newSchemaCmd(c),
		newTableCmd(c),
	}
	for _, sub := range subCommands {
		cmd.AddCommand(sub)
	}

	return c
}

// setup loads the config file and applies flag overrides.
func (c *Command) setup() error {
	cfg, err := config.Load(flagConfig.String(c))
	if err != nil {
		return err
	}
	if flagDataDir.Changed(c) {
		cfg.DataDir = flagDataDir.String(c)
	}
	if flagLogLevel.Changed(c) {
		cfg.Log.Level = flagLogLevel.String(c)
	}
	if flagStore.Changed(c) {
		cfg.Store = flagStore.String(c)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	c.cfg = cfg
	c.log = slog.New(slog.NewTextHandler(c.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	}))
	return nil
}

// outFormat is the --out flag, falling back to the configured default.
func (c *Command) outFormat() (bridge.Format, error) {
	s := c.cfg.Output.Format
	if flagOut.Changed(c) {
		s = flagOut.String(c)
	}
	return bridge.ParseFormat(s)
}

// openEngine starts a DBEngine over the configured store. The returned
// function releases it.
func (c *Command) openEngine() (*engine.DBEngine, func(), error) {
	var store storage.Engine
	release := func() {}

	switch c.cfg.Store {
	case "memory":
		store = memstore.New()
	default:
		fs, err := filestore.New(c.cfg.DataDir,
			filestore.WithLogger(c.log),
			filestore.WithMaxDepth(c.cfg.MaxDepth),
		)
		if err != nil {
			return nil, nil, err
		}
		store = fs
		release = func() {
			if err := fs.Close(); err != nil {
				c.log.Warn("closing store", "err", err)
			}
		}
	}

	eng := engine.New(store)
	if err := eng.Start(); err != nil {
		release()
		return nil, nil, err
	}
	c.log.Debug("engine started", "store", c.cfg.Store, "data_dir", c.cfg.DataDir)
	return eng, release, nil
}

// run executes the tool with args, writing to stdout and stderr.
func run(args []string, stdout, stderr io.Writer) error {
	c := newRootCmd()
	c.root.SetArgs(args)
	c.root.SetOut(stdout)
	c.root.SetErr(stderr)
	return c.root.Execute()
}

// Main runs the xbf tool and returns the code for passing to os.Exit.
func Main(args []string) int {
	if err := run(args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
