// Command loanbook inspects and maintains a loan book store: legacy import,
// dashboard figures, reports, balances and integrity checks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andreyvit/loanstore"
	"github.com/andreyvit/loanstore/loanbook"
	"github.com/andreyvit/loanstore/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "loanbook: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	dataPath   string
	company    string

	cfg      *Config
	logger   *slog.Logger
	closeLog func() error
	handle   *loanstore.Handle
	fmt      *formatter
	out      io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "loanbook",
		Short:         "Loan collection book keeping",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "loanbook.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.dataPath, "data", "", "store file, overrides store.path")
	root.PersistentFlags().StringVar(&a.company, "company", "", "company id, defaults to the configured or signed-in one")

	root.AddCommand(
		a.importLegacyCmd(),
		a.statsCmd(),
		a.reportCmd(),
		a.balanceCmd(),
		a.checkCmd(),
		a.dumpCmd(),
		a.metricsCmd(),
		a.loginCmd(),
		a.logoutCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("config %s: %w", a.configPath, err)
	}
	if a.dataPath != "" {
		cfg.Store.Path = a.dataPath
	}
	a.cfg = cfg
	a.logger, a.closeLog = newLogger(cfg.Logger)
	slog.SetDefault(a.logger)
	a.handle = loanstore.NewHandle(cfg.Store.Path, loanbook.Schema(), loanstore.Options{
		Logger:  a.logger,
		Verbose: cfg.Store.Verbose,
		Timeout: cfg.Store.Timeout,
	})
	a.fmt = newFormatter(cfg.Locale)
	a.out = cmd.OutOrStdout()
	return nil
}

func (a *app) teardown() error {
	err := a.handle.Close()
	if cerr := a.closeLog(); err == nil {
		err = cerr
	}
	return err
}

// store opens the store, or returns nil when it is unavailable. Commands then
// print empty results instead of failing.
func (a *app) store(ctx context.Context) *loanbook.Store {
	db, err := a.handle.DB(ctx)
	if err != nil {
		a.logger.Error("loanbook: store unavailable, showing empty results", "path", a.cfg.Store.Path, "err", err)
		return nil
	}
	return loanbook.New(db, loanbook.Options{Logger: a.logger})
}

func (a *app) sessions(s *loanbook.Store) *session.Manager {
	return session.NewManager(s, s, nil)
}

// companyID picks the tenant: the flag, then the config, then the signed-in user.
func (a *app) companyID(ctx context.Context, s *loanbook.Store) string {
	if a.company != "" {
		return a.company
	}
	if a.cfg.Company != "" {
		return a.cfg.Company
	}
	if s == nil {
		return ""
	}
	id, err := a.sessions(s).CompanyID(ctx)
	if err != nil {
		a.logger.Warn("loanbook: cannot read session", "err", err)
	}
	return id
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
