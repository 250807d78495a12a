package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/logging"
	"github.com/funvibe/symtab/internal/session"
)

// app carries the persistent flags and the session shared by the
// subcommands of one invocation.
type app struct {
	configPath string
	extraPath  []string
	verbose    bool

	// settingsFile is the file the settings came from, "" for defaults.
	settingsFile string
	logger       *logging.Logger
	session      *session.Session
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "symtab",
		Short: "Resolve function names against a search path",
		Long: `symtab loads a search path the way an interpreter would and answers
questions about it: which definition a name resolves to, what the symbol
table holds after resolving some names, and when cached functions are
reloaded from disk.

Settings are read from symtab.yaml in the current directory or one of its
parents, unless --config names a file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Settings file (default: search for symtab.yaml)")
	root.PersistentFlags().StringArrayVarP(&a.extraPath, "path", "p", nil, "Directory to put in front of the search path (repeatable)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(a.whichCmd())
	root.AddCommand(a.dumpCmd())
	root.AddCommand(a.timestampCmd())
	root.AddCommand(a.autoloadCmd())
	root.AddCommand(a.watchCmd())
	return root
}

// loadSettings reads the settings named by --config, or the nearest
// symtab.yaml, or falls back to defaults.
func (a *app) loadSettings() (*config.Settings, error) {
	path := a.configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.FindSettings(cwd); err != nil {
			return nil, err
		}
	}

	settings := config.Default()
	if path != "" {
		var err error
		if settings, err = config.LoadSettings(path); err != nil {
			return nil, err
		}
	}
	a.settingsFile = path

	// --path entries go first, in the order given.
	if len(a.extraPath) > 0 {
		settings.Path = append(append([]string(nil), a.extraPath...), settings.Path...)
	}
	return settings, nil
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	settings, err := a.loadSettings()
	if err != nil {
		return err
	}

	a.logger, err = logging.New(settings.Log)
	if err != nil {
		return err
	}
	if a.verbose {
		a.logger.SetVerbose()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.session, err = session.Open(ctx, settings, a.logger.Logger)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	return nil
}

// run wraps a subcommand so that the session is closed however it ends.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.teardown()
		return fn(cmd, args)
	}
}

func (a *app) teardown() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("closing session", zap.Error(err))
		}
		a.session = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
