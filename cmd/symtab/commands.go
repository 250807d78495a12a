package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/funvibe/symtab/internal/config"
	"github.com/funvibe/symtab/internal/symbols"
)

var (
	errNoDatabase     = errors.New("no autoload database configured (set autoload.database in symtab.yaml)")
	errNoSettingsFile = errors.New("no settings file to record the mode in (create symtab.yaml or pass --config)")
)

func (a *app) whichCmd() *cobra.Command {
	var (
		builtin bool
		classes []string
	)
	cmd := &cobra.Command{
		Use:   "which NAME...",
		Short: "Show what each name resolves to",
		Long: `Resolves each NAME the way a call would and prints the kind of
definition found and the file it comes from.

NAME may also be @class/method or parent>sub.

Examples:
  symtab which sin
  symtab which area --class polygon
  symtab which 'solver>residual'`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().BoolVar(&builtin, "builtin", false, "Only consider built-in functions")
	cmd.Flags().StringSliceVar(&classes, "class", nil, "Classes of the call's arguments, for dispatch")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		var missing []string
		for _, name := range args {
			fn, err := a.session.Which(name, classes, builtin)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if fn == nil {
				missing = append(missing, name)
				fmt.Fprintf(out, "'%s' is undefined\n", name)
				continue
			}
			fmt.Fprintln(out, describe(name, fn))
		}
		if len(missing) > 0 {
			return fmt.Errorf("undefined: %s", strings.Join(missing, ", "))
		}
		return nil
	})
	return cmd
}

func describe(name string, fn *symbols.Function) string {
	switch {
	case fn.IsBuiltin():
		return fmt.Sprintf("'%s' is a built-in function", name)
	case fn.Script:
		return fmt.Sprintf("'%s' is a script from the file %s", name, fn.File)
	case fn.File == "":
		return fmt.Sprintf("'%s' is a %s", name, fn.Category)
	default:
		return fmt.Sprintf("'%s' is a %s from the file %s", name, fn.Category, fn.File)
	}
}

func (a *app) dumpCmd() *cobra.Command {
	var load []string
	cmd := &cobra.Command{
		Use:   "dump [all|global|scopes|functions|SCOPE]",
		Short: "Print the symbol table",
		Long: `Prints the symbol table. Without an argument everything is dumped.
Use --load to resolve some names first so that their functions, scopes and
subfunctions show up.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "global", "scopes", "functions"},
	}
	cmd.Flags().StringSliceVar(&load, "load", nil, "Names to resolve before dumping")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		for _, name := range load {
			fn, err := a.session.Which(name, nil, false)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if fn == nil {
				return fmt.Errorf("undefined: %s", name)
			}
		}

		r := a.session.Registry
		out := highlight(cmd.OutOrStdout())
		what := "all"
		if len(args) == 1 {
			what = args[0]
		}
		switch what {
		case "all":
			return r.DumpAll(out)
		case "global":
			return r.DumpGlobal(out)
		case "functions":
			return r.DumpFunctions(out)
		case "scopes":
			for _, id := range r.Scopes() {
				if err := r.Dump(out, id); err != nil {
					return err
				}
			}
			return nil
		}

		id, err := strconv.Atoi(what)
		if err != nil {
			return fmt.Errorf("dump: %q is not a scope number", what)
		}
		if r.Scope(symbols.ScopeID(id)) == nil {
			return fmt.Errorf("dump: %w: %d", symbols.ErrInvalidScope, id)
		}
		return r.Dump(out, symbols.ScopeID(id))
	})
	return cmd
}

func (a *app) timestampCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timestamp [all|system|none]",
		Short: "Query or set which function files are checked for changes",
		Long: `With no argument prints the current ignore_function_time_stamp mode.
With an argument sets it, records it in the settings file for later
commands, and prints the previous mode.

  all     never check time stamps
  system  skip files under the system root
  none    check every function file`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"all", "system", "none"},
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		r := a.session.Registry
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), r.TimestampMode())
			return nil
		}
		prev, err := r.SetTimestampMode(args[0])
		if err != nil {
			return err
		}
		if a.settingsFile == "" {
			return errNoSettingsFile
		}
		if err := config.SaveTimeStampMode(a.settingsFile, r.TimestampMode()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prev)
		return nil
	})
	return cmd
}

func (a *app) autoloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoload",
		Short: "Manage the persistent autoload table",
	}

	add := &cobra.Command{
		Use:   "add NAME FILE",
		Short: "Map NAME to FILE",
		Args:  cobra.ExactArgs(2),
	}
	add.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		if a.session.Index == nil {
			return errNoDatabase
		}
		return a.session.Index.Add(cmd.Context(), args[0], args[1])
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List autoload entries",
		Args:  cobra.NoArgs,
	}
	list.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, e := range a.session.Autoloads.Entries() {
			fmt.Fprintf(tw, "%s\t%s\t(settings)\n", e.Name, e.File)
		}
		if a.session.Index != nil {
			for _, e := range a.session.Index.List() {
				fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.File)
			}
		}
		return tw.Flush()
	})

	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Delete the entry for NAME",
		Args:  cobra.ExactArgs(1),
	}
	remove.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		if a.session.Index == nil {
			return errNoDatabase
		}
		ok, err := a.session.Index.Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no autoload entry for %s", args[0])
		}
		return nil
	})

	cmd.AddCommand(add, list, remove)
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Resolve names read from stdin while watching the search path",
		Long: `Watches the search path for changes and reads names from standard
input, one per line. Each line starts a new prompt: changed files are
reloaded before the name is resolved. Runs until input ends or the command
is interrupted.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var mu sync.Mutex
		out := cmd.OutOrStdout()
		printf := func(format string, args ...any) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, format, args...)
		}

		if err := a.session.Watch(ctx, func(path string) { printf("changed: %s\n", path) }); err != nil {
			return err
		}

		lines := make(chan string)
		go readLines(ctx, cmd.InOrStdin(), lines)
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				name := strings.TrimSpace(line)
				if name == "" {
					continue
				}
				a.session.Prompt()
				fn, err := a.session.Which(name, nil, false)
				switch {
				case err != nil:
					printf("'%s': %v\n", name, err)
				case fn != nil:
					printf("%s\n", describe(name, fn))
				default:
					printf("'%s' is undefined\n", name)
				}
			}
		}
	})
	return cmd
}

// readLines sends each line of r on ch and closes it at end of input.
func readLines(ctx context.Context, r io.Reader, ch chan<- string) {
	defer close(ch)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case ch <- sc.Text():
		case <-ctx.Done():
			return
		}
	}
}
