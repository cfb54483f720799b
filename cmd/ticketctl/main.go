// ticketctl is the operator tool for inspecting and repairing workspace
// documents directly against the configured storage backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/config"
	"github.com/spec-kit/guild-tickets/internal/observability"
	"github.com/spec-kit/guild-tickets/internal/persistence"
	"github.com/spec-kit/guild-tickets/internal/service"
)

const usage = `usage: ticketctl [flags] <command> [args]

commands:
  workspaces                      list stored workspaces
  stats <workspace>               print ticket counts
  dump <workspace>                print the workspace document as JSON
  set <workspace> <key> [value]   configure a setting (empty value restores the default)
  reindex [workspace...]          rebuild ticket mirrors (all workspaces when none given)
  hash-secret <secret>            print a bcrypt hash for AUTH_GATEWAY_SECRET_HASH
  token <operator-id>             mint a read-only dashboard token

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	var (
		cost    int
		verbose bool
	)
	flagSet := pflag.NewFlagSet("ticketctl", pflag.ContinueOnError)
	flagSet.IntVar(&cost, "cost", 12, "bcrypt cost for hash-secret")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log storage activity to stderr")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			printHelp(out, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(out, flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(out, flagSet)
		return fmt.Errorf("missing command")
	}
	command, args := args[0], args[1:]

	// Commands that never touch storage.
	switch command {
	case "hash-secret":
		if len(args) != 1 {
			return fmt.Errorf("hash-secret takes exactly one argument")
		}
		hash, err := auth.HashSecret(args[0], cost)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hash)
		return nil
	case "token":
		if len(args) != 1 {
			return fmt.Errorf("token takes exactly one argument")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		issued, err := service.NewAuthService(cfg.Auth, nil).IssueOperatorToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, issued.AccessToken)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if verbose {
		cfg.Logger.Level = "debug"
		if logger, err = observability.NewLogger(cfg.App, cfg.Logger); err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
	}
	defaults, err := config.LoadSettingsDefaults(cfg.Lifecycle.SettingsDefaultsFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	tk, err := newToolkit(store, defaults, cfg.Storage, logger, out)
	if err != nil {
		return err
	}
	return tk.dispatch(ctx, command, args)
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(out, usage)
	fmt.Fprint(out, strings.TrimRight(flagSet.FlagUsages(), "\n")+"\n")
}
