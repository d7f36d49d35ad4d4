package loanbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteCustomerCascades(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	other, err := s.SaveCustomer(ctx, &Customer{CompanyID: b.company.ID, Name: "Other", Phone: "2"})
	require.NoError(t, err)
	_, err = s.SaveMapping(ctx, &Mapping{CompanyID: b.company.ID, CustomerID: other.ID, LoanID: b.loan.ID, StartDate: "2024-03-01"})
	require.NoError(t, err)

	b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-01")
	b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-02")
	kept := b.collect(t, s, other.ID, b.loan.ID, "50", "2024-03-02")

	require.NoError(t, s.DeleteCustomer(ctx, b.customer.ID))

	_, err = s.Customer(ctx, b.company.ID, b.customer.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	maps, err := s.Mappings(ctx, b.company.ID)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, other.ID, maps[0].CustomerID)

	colls, err := s.Collections(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, ids[Collection](colls))

	report, err := s.CheckIntegrity(ctx, b.company.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())

	// deleting again is harmless
	require.NoError(t, s.DeleteCustomer(ctx, b.customer.ID))
}

func TestDeleteLoanKeepsCollections(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	c := b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-01")

	require.NoError(t, s.DeleteLoan(ctx, b.loan.ID))

	maps, err := s.Mappings(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Empty(t, maps)

	colls, err := s.Collections(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids[Collection](colls))

	report, err := s.CheckIntegrity(ctx, "")
	require.NoError(t, err)
	assert.True(t, report.OK(), "collections of a deleted loan are history, not orphans")
}

func TestDeleteMappingCascades(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	loan2, err := s.SaveLoan(ctx, &Loan{CompanyID: b.company.ID, LoanAmount: dec("500"), DailyCollection: dec("25")})
	require.NoError(t, err)
	_, err = s.SaveMapping(ctx, &Mapping{CompanyID: b.company.ID, CustomerID: b.customer.ID, LoanID: loan2.ID, StartDate: "2024-03-01"})
	require.NoError(t, err)

	for _, day := range []Date{"2024-03-01", "2024-03-02", "2024-03-03"} {
		b.collect(t, s, b.customer.ID, b.loan.ID, "50", day)
	}
	kept := b.collect(t, s, b.customer.ID, loan2.ID, "25", "2024-03-03")

	require.NoError(t, s.DeleteMapping(ctx, b.customer.ID, b.loan.ID))

	colls, err := s.Collections(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, ids[Collection](colls))

	maps, err := s.Mappings(ctx, b.company.ID)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, loan2.ID, maps[0].LoanID)

	// customer and loan themselves stay
	_, err = s.Customer(ctx, b.company.ID, b.customer.ID)
	assert.NoError(t, err)
	_, err = s.Loan(ctx, b.company.ID, b.loan.ID)
	assert.NoError(t, err)
}

func TestDeleteUserAndCollection(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	c := b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-01")

	require.NoError(t, s.DeleteCollection(ctx, c.ID))
	colls, err := s.Collections(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Empty(t, colls)

	require.NoError(t, s.DeleteUser(ctx, b.admin.ID))
	_, err = s.User(ctx, b.company.ID, b.admin.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckIntegrityReportsOrphans(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	c := b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-01")

	// a cascade that stopped after the first step
	require.NoError(t, s.DB().Delete(ctx, CustomersCollection, b.customer.ID))

	report, err := s.CheckIntegrity(ctx, b.company.ID)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{b.mapping.ID}, ids[Mapping](report.OrphanMappings))
	assert.Equal(t, []string{c.ID}, ids[Collection](report.OrphanCollections))
}
