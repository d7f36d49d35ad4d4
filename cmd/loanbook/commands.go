package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/andreyvit/loanstore"
	"github.com/andreyvit/loanstore/legacy"
	"github.com/andreyvit/loanstore/loanbook"
)

var errIntegrity = errors.New("integrity check found orphaned records")

func (a *app) importLegacyCmd() *cobra.Command {
	var dir, defaultCompany string
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import the legacy JSON buckets once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			if s == nil {
				return nil
			}
			if dir == "" {
				dir = a.cfg.Legacy.Dir
			}
			if defaultCompany == "" {
				defaultCompany = a.cfg.Legacy.DefaultCompanyID
			}
			im := legacy.New(legacy.DirSource(dir), s, legacy.Options{
				DefaultCompanyID: defaultCompany,
				Logger:           a.logger,
			})
			res, err := im.Run(ctx)
			if err != nil {
				return err
			}
			if res.Skipped {
				a.printf("legacy data already imported\n")
				return nil
			}
			a.printf("imported %d customers, %d loans, %d mappings, %d collections\n", res.Customers, res.Loans, res.Mappings, res.Collections)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory with <bucket>.json files, overrides legacy.dir")
	cmd.Flags().StringVar(&defaultCompany, "default-company", "", "company adopting records without one")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			var st loanbook.Stats
			var best []loanbook.CustomerTotal
			var recent []*loanbook.Collection
			if s != nil {
				companyID := a.companyID(ctx, s)
				var err error
				if st, err = s.Stats(ctx, companyID); err != nil {
					return err
				}
				if best, err = s.TopCustomers(ctx, companyID, top); err != nil {
					return err
				}
				if recent, err = s.RecentCollections(ctx, companyID, top); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Customers\t%s\n", a.fmt.Count(st.TotalCustomers))
			fmt.Fprintf(w, "Loans\t%s\n", a.fmt.Count(st.TotalLoans))
			fmt.Fprintf(w, "Active mappings\t%s\n", a.fmt.Count(st.ActiveMappings))
			fmt.Fprintf(w, "Collections\t%s\n", a.fmt.Count(st.TotalCollections))
			fmt.Fprintf(w, "Collected today\t%s\n", a.fmt.Amount(st.TodayCollected))
			fmt.Fprintf(w, "Collected this month\t%s\n", a.fmt.Amount(st.MonthCollected))
			fmt.Fprintf(w, "Pending\t%s\n", a.fmt.Amount(st.PendingAmount))
			if len(best) > 0 {
				fmt.Fprintf(w, "\nTop customers\t\n")
				for _, ct := range best {
					fmt.Fprintf(w, "%s\t%s\n", ct.Name, a.fmt.Amount(ct.Total))
				}
			}
			if len(recent) > 0 {
				fmt.Fprintf(w, "\nRecent collections\t\n")
				for _, c := range recent {
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.CollectionDate, c.CustomerID, a.fmt.Amount(c.Amount))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "how many top customers and recent collections to list")
	return cmd
}

func (a *app) reportCmd() *cobra.Command {
	var day, month string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize collections for a day or a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			report := &loanbook.Report{}
			if s != nil {
				companyID := a.companyID(ctx, s)
				var err error
				switch {
				case day != "":
					report, err = s.DailyReport(ctx, companyID, loanbook.Date(day))
				case month != "":
					report, err = s.MonthlyReport(ctx, companyID, month)
				default:
					report, err = s.MonthlyReport(ctx, companyID, s.Today().Month())
				}
				if err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			for _, c := range report.Collections {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.CollectionDate, c.CustomerID, c.LoanID, a.fmt.Amount(c.Amount), c.Notes)
			}
			fmt.Fprintf(w, "\nCount\t%s\n", a.fmt.Count(report.Count))
			fmt.Fprintf(w, "Total\t%s\n", a.fmt.Amount(report.Total))
			fmt.Fprintf(w, "Average\t%s\n", a.fmt.Amount(report.Average))
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "YYYY-MM-DD")
	cmd.Flags().StringVar(&month, "month", "", "YYYY-MM, defaults to the current month")
	cmd.MarkFlagsMutuallyExclusive("day", "month")
	return cmd
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [customer-id loan-id]",
		Short: "Show remaining balances",
		Args:  cobra.MatchAll(cobra.MaximumNArgs(2), func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("need both a customer id and a loan id")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			if s == nil {
				return nil
			}
			if len(args) == 2 {
				remaining, err := s.RemainingBalance(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				a.printf("%s\n", a.fmt.Amount(remaining))
				return nil
			}

			balances, err := s.MappingBalances(ctx, a.companyID(ctx, s))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Customer\tLoan\tAmount\tCollected\tRemaining\n")
			for _, mb := range balances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mb.CustomerName, mb.Mapping.LoanID, a.fmt.Amount(mb.LoanAmount), a.fmt.Amount(mb.Collected), a.fmt.Amount(mb.Remaining))
			}
			return w.Flush()
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Look for records orphaned by interrupted deletes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			if s == nil {
				return nil
			}
			var companyID string
			if !all {
				companyID = a.companyID(ctx, s)
			}
			report, err := s.CheckIntegrity(ctx, companyID)
			if err != nil {
				return err
			}
			for _, m := range report.OrphanMappings {
				a.printf("orphaned mapping %s (customer %s, loan %s)\n", m.ID, m.CustomerID, m.LoanID)
			}
			for _, c := range report.OrphanCollections {
				a.printf("orphaned collection %s (customer %s, loan %s)\n", c.ID, c.CustomerID, c.LoanID)
			}
			if !report.OK() {
				return errIntegrity
			}
			a.printf("ok\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "check every company")
	return cmd
}

func (a *app) dumpCmd() *cobra.Command {
	var rows bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print collections, indices and their contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.handle.DB(ctx)
			if err != nil {
				a.logger.Error("loanbook: store unavailable", "path", a.cfg.Store.Path, "err", err)
				return nil
			}
			flags := loanstore.DumpCollectionHeaders | loanstore.DumpStats | loanstore.DumpIndices
			if rows {
				flags = loanstore.DumpAll
			}
			return db.Read(ctx, func(tx *loanstore.Tx) error {
				a.printf("%s", tx.Dump(flags))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&rows, "rows", false, "include rows and index entries")
	return cmd
}

func (a *app) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print store metrics in the Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.handle.DB(cmd.Context())
			if err != nil {
				a.logger.Error("loanbook: store unavailable", "path", a.cfg.Store.Path, "err", err)
				return nil
			}
			reg := prometheus.NewRegistry()
			if err := reg.Register(loanstore.NewCollector(db, "loanbook")); err != nil {
				return err
			}
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(a.out, mf); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login email password",
		Short: "Sign in, making the user's company the default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			if s == nil {
				return nil
			}
			sess, err := a.sessions(s).Login(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			a.printf("signed in as %s (%s) at %s\n", sess.User.Name, sess.User.Role, sess.Company.Name)
			return nil
		},
	}
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := a.store(ctx)
			if s == nil {
				return nil
			}
			return a.sessions(s).Logout(ctx)
		},
	}
}
