package loanbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancesAndStats(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	bob, err := s.SaveCustomer(ctx, &Customer{CompanyID: b.company.ID, Name: "Bob", Phone: "2"})
	require.NoError(t, err)
	_, err = s.SaveMapping(ctx, &Mapping{CompanyID: b.company.ID, CustomerID: bob.ID, LoanID: b.loan.ID, StartDate: "2024-03-01"})
	require.NoError(t, err)

	b.collect(t, s, b.customer.ID, b.loan.ID, "100.50", "2024-03-15")
	b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-01")
	b.collect(t, s, bob.ID, b.loan.ID, "300", "2024-02-28")

	remaining, err := s.RemainingBalance(ctx, b.customer.ID, b.loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "849.5", remaining.String())

	_, err = s.RemainingBalance(ctx, b.customer.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	balances, err := s.MappingBalances(ctx, b.company.ID)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	byCustomer := map[string]MappingBalance{}
	for _, mb := range balances {
		byCustomer[mb.CustomerName] = mb
	}
	assert.Equal(t, "150.5", byCustomer["Acme Customer"].Collected.String())
	assert.Equal(t, "700", byCustomer["Bob"].Remaining.String())

	st, err := s.Stats(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalCustomers)
	assert.Equal(t, 1, st.TotalLoans)
	assert.Equal(t, 2, st.ActiveMappings)
	assert.Equal(t, 3, st.TotalCollections)
	assert.Equal(t, "100.5", st.TodayCollected.String())
	assert.Equal(t, "150.5", st.MonthCollected.String())
	assert.Equal(t, "1549.5", st.PendingAmount.String())

	top, err := s.TopCustomers(ctx, b.company.ID, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Bob", top[0].Name)
	assert.Equal(t, "300", top[0].Total.String())

	top, err = s.TopCustomers(ctx, b.company.ID, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	recent, err := s.RecentCollections(ctx, b.company.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, Date("2024-03-15"), recent[0].CollectionDate)
	assert.Equal(t, Date("2024-03-01"), recent[1].CollectionDate)
}

func TestPendingAmountNeverNegative(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	b.collect(t, s, b.customer.ID, b.loan.ID, "1200", "2024-03-15")

	st, err := s.Stats(ctx, b.company.ID)
	require.NoError(t, err)
	assert.True(t, st.PendingAmount.IsZero())

	remaining, err := s.RemainingBalance(ctx, b.customer.ID, b.loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "-200", remaining.String())
}

func TestReports(t *testing.T) {
	s := setup(t)
	acme := seed(t, s, "Acme", "a@acme.com")
	globex := seed(t, s, "Globex", "g@globex.com")

	acme.collect(t, s, acme.customer.ID, acme.loan.ID, "10", "2024-03-01")
	acme.collect(t, s, acme.customer.ID, acme.loan.ID, "20", "2024-03-01")
	acme.collect(t, s, acme.customer.ID, acme.loan.ID, "30", "2024-03-31")
	acme.collect(t, s, acme.customer.ID, acme.loan.ID, "40", "2024-04-01")
	acme.collect(t, s, acme.customer.ID, acme.loan.ID, "50", "2024-02-29")
	globex.collect(t, s, globex.customer.ID, globex.loan.ID, "99", "2024-03-01")

	day, err := s.DailyReport(ctx, acme.company.ID, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, day.Count)
	assert.Equal(t, "30", day.Total.String())
	assert.Equal(t, "15", day.Average.String())

	month, err := s.MonthlyReport(ctx, acme.company.ID, "2024-03")
	require.NoError(t, err)
	assert.Equal(t, 3, month.Count)
	assert.Equal(t, "60", month.Total.String())
	assert.Equal(t, "20", month.Average.String())
	assert.Equal(t, Date("2024-03-31"), month.Collections[0].CollectionDate)

	empty, err := s.MonthlyReport(ctx, acme.company.ID, "2023-12")
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Average.IsZero())

	_, err = s.MonthlyReport(ctx, acme.company.ID, "2024-3")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = s.DailyReport(ctx, acme.company.ID, "yesterday")
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
