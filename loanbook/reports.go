package loanbook

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/andreyvit/loanstore"
	"github.com/shopspring/decimal"
)

func sumAmounts(rows []*Collection) decimal.Decimal {
	total := decimal.Zero
	for _, c := range rows {
		total = total.Add(c.Amount)
	}
	return total
}

// RemainingBalance is the loan amount less everything collected for the pair.
// It goes negative on overpayment.
func (s *Store) RemainingBalance(ctx context.Context, customerID, loanID string) (decimal.Decimal, error) {
	var remaining decimal.Decimal
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		loan, err := loanstore.Get[Loan](tx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return fmt.Errorf("%w: loan %q", ErrNotFound, loanID)
		}
		paid, err := loanstore.QueryByCompoundKey[Collection](tx, naturalKey, []string{customerID, loanID})
		if err != nil {
			return err
		}
		remaining = loan.LoanAmount.Sub(sumAmounts(paid))
		return nil
	})
	return remaining, err
}

type MappingBalance struct {
	Mapping      *Mapping
	CustomerName string
	LoanAmount   decimal.Decimal
	Collected    decimal.Decimal
	Remaining    decimal.Decimal
}

// MappingBalances lists every mapping of the company with its collected and
// remaining amounts.
func (s *Store) MappingBalances(ctx context.Context, companyID string) ([]MappingBalance, error) {
	var result []MappingBalance
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		mappings, err := loanstore.QueryByTenant[Mapping](tx, companyID)
		if err != nil {
			return err
		}
		for _, m := range mappings {
			mb := MappingBalance{Mapping: m}
			if cust, err := loanstore.Get[Customer](tx, m.CustomerID); err != nil {
				return err
			} else if cust != nil {
				mb.CustomerName = cust.Name
			}
			if loan, err := loanstore.Get[Loan](tx, m.LoanID); err != nil {
				return err
			} else if loan != nil {
				mb.LoanAmount = loan.LoanAmount
			}
			paid, err := loanstore.QueryByCompoundKey[Collection](tx, naturalKey, []string{m.CustomerID, m.LoanID})
			if err != nil {
				return err
			}
			mb.Collected = sumAmounts(paid)
			mb.Remaining = mb.LoanAmount.Sub(mb.Collected)
			result = append(result, mb)
		}
		return nil
	})
	return result, err
}

type Stats struct {
	TotalCustomers   int
	TotalLoans       int
	ActiveMappings   int
	TotalCollections int
	TodayCollected   decimal.Decimal
	MonthCollected   decimal.Decimal
	TotalCollected   decimal.Decimal
	// PendingAmount is the mapped loan total less everything collected, never below zero.
	PendingAmount decimal.Decimal
}

// Stats computes the dashboard figures for a company as of today.
func (s *Store) Stats(ctx context.Context, companyID string) (Stats, error) {
	var st Stats
	today := s.Today()
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		customers, err := loanstore.QueryByTenant[Customer](tx, companyID)
		if err != nil {
			return err
		}
		loans, err := loanstore.QueryByTenant[Loan](tx, companyID)
		if err != nil {
			return err
		}
		mappings, err := loanstore.QueryByTenant[Mapping](tx, companyID)
		if err != nil {
			return err
		}
		collections, err := loanstore.QueryByTenant[Collection](tx, companyID)
		if err != nil {
			return err
		}

		st.TotalCustomers = len(customers)
		st.TotalLoans = len(loans)
		st.ActiveMappings = len(mappings)
		st.TotalCollections = len(collections)
		st.TodayCollected, st.MonthCollected = decimal.Zero, decimal.Zero
		for _, c := range collections {
			if c.CollectionDate == today {
				st.TodayCollected = st.TodayCollected.Add(c.Amount)
			}
			if c.CollectionDate.Month() == today.Month() {
				st.MonthCollected = st.MonthCollected.Add(c.Amount)
			}
		}
		st.TotalCollected = sumAmounts(collections)

		amounts := make(map[string]decimal.Decimal, len(loans))
		for _, l := range loans {
			amounts[l.ID] = l.LoanAmount
		}
		lent := decimal.Zero
		for _, m := range mappings {
			lent = lent.Add(amounts[m.LoanID])
		}
		st.PendingAmount = decimal.Max(decimal.Zero, lent.Sub(st.TotalCollected))
		return nil
	})
	return st, err
}

type CustomerTotal struct {
	CustomerID string
	Name       string
	Total      decimal.Decimal
}

// TopCustomers returns the n customers with the largest collected totals.
func (s *Store) TopCustomers(ctx context.Context, companyID string, n int) ([]CustomerTotal, error) {
	var result []CustomerTotal
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		collections, err := loanstore.QueryByTenant[Collection](tx, companyID)
		if err != nil {
			return err
		}
		totals := make(map[string]decimal.Decimal)
		for _, c := range collections {
			totals[c.CustomerID] = totals[c.CustomerID].Add(c.Amount)
		}
		for id, total := range totals {
			ct := CustomerTotal{CustomerID: id, Total: total}
			if cust, err := loanstore.Get[Customer](tx, id); err != nil {
				return err
			} else if cust != nil {
				ct.Name = cust.Name
			}
			result = append(result, ct)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(result, func(a, b CustomerTotal) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	if n >= 0 && len(result) > n {
		result = result[:n]
	}
	return result, nil
}

func newestFirst(a, b *Collection) int {
	if c := cmp.Compare(b.CollectionDate, a.CollectionDate); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

// RecentCollections returns the company's n latest collections by collection date.
func (s *Store) RecentCollections(ctx context.Context, companyID string, n int) ([]*Collection, error) {
	collections, err := s.Collections(ctx, companyID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(collections, newestFirst)
	if n >= 0 && len(collections) > n {
		collections = collections[:n]
	}
	return collections, nil
}

type Report struct {
	Period      string
	Collections []*Collection
	Count       int
	Total       decimal.Decimal
	Average     decimal.Decimal
}

func makeReport(period, companyID string, rows []*Collection) *Report {
	r := &Report{Period: period, Total: decimal.Zero, Average: decimal.Zero}
	for _, c := range rows {
		if c.CompanyID == companyID {
			r.Collections = append(r.Collections, c)
		}
	}
	slices.SortFunc(r.Collections, newestFirst)
	r.Count = len(r.Collections)
	r.Total = sumAmounts(r.Collections)
	if r.Count > 0 {
		r.Average = r.Total.Div(decimal.NewFromInt(int64(r.Count)))
	}
	return r
}

// DailyReport summarizes the company's collections on one day.
func (s *Store) DailyReport(ctx context.Context, companyID string, day Date) (*Report, error) {
	if !day.Valid() {
		return nil, invalidf("report date %q is not YYYY-MM-DD", day)
	}
	var rows []*Collection
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		var err error
		rows, err = loanstore.QueryByField[Collection](tx, "collectionDate", string(day))
		return err
	})
	if err != nil {
		return nil, err
	}
	return makeReport(string(day), companyID, rows), nil
}

// MonthlyReport summarizes the company's collections in a YYYY-MM month.
func (s *Store) MonthlyReport(ctx context.Context, companyID string, month string) (*Report, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, invalidf("report month %q is not YYYY-MM", month)
	}
	var rows []*Collection
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		var err error
		rows, err = loanstore.QueryByPrefix[Collection](tx, "collectionDate", month+"-")
		return err
	})
	if err != nil {
		return nil, err
	}
	return makeReport(month, companyID, rows), nil
}
