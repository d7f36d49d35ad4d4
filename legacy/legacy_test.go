package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/loanstore"
	"github.com/andreyvit/loanstore/loanbook"
)

var ctx = context.Background()

const (
	customersJSON = `[
		{"id": "c1", "name": "Ravi", "phone": 5550101, "address": "Main St", "createdAt": "2023-05-01T10:00:00.000Z"},
		{"name": "Meena", "phone": "555-0102"}
	]`
	loansJSON = `[
		{"id": "l1", "loanAmount": "10000", "dailyCollection": 100, "description": "100 days"},
		{"id": "l2", "loanAmount": 5000.5, "dailyCollection": "50"}
	]`
	mappingsJSON = `[
		{"id": "m1", "customerId": "c1", "loanId": "l1", "agentId": null, "startDate": "2023-05-02"},
		{"id": "m1-dup", "customerId": "c1", "loanId": "l1", "startDate": "2023-05-03T00:00:00.000Z"}
	]`
	recordsJSON = `[
		{"id": "r1", "customerId": "c1", "loanId": "l1", "customerName": "Ravi", "amount": "100", "collectionDate": "2023-05-03"},
		{"id": "r2", "customerId": "c1", "loanId": "l1", "amount": 150.25, "collectionDate": "2023-05-04T09:12:00.000Z", "notes": "late"}
	]`
)

func legacySource() MapSource {
	return MapSource{
		CustomersBucket: customersJSON,
		LoansBucket:     loansJSON,
		MappingsBucket:  mappingsJSON,
		RecordsBucket:   recordsJSON,
	}
}

func setup(t *testing.T) (*loanbook.Store, *loanbook.Company) {
	t.Helper()
	db, err := loanstore.Open(filepath.Join(t.TempDir(), "loanbook.db"), loanbook.Schema(), loanstore.Options{IsTesting: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := loanbook.New(db, loanbook.Options{})
	company, err := s.SaveCompany(ctx, &loanbook.Company{Name: "Legacy Co", Email: "legacy@example.com"})
	require.NoError(t, err)
	return s, company
}

// forgetful never remembers that the import is done.
type forgetful struct {
	*loanbook.Store
}

func (forgetful) LegacyImported(ctx context.Context) (bool, error) {
	return false, nil
}

func counts(t *testing.T, s *loanbook.Store, companyID string) [4]int {
	t.Helper()
	custs, err := s.Customers(ctx, companyID)
	require.NoError(t, err)
	loans, err := s.Loans(ctx, companyID)
	require.NoError(t, err)
	maps, err := s.Mappings(ctx, companyID)
	require.NoError(t, err)
	colls, err := s.Collections(ctx, companyID)
	require.NoError(t, err)
	return [4]int{len(custs), len(loans), len(maps), len(colls)}
}

func TestImport(t *testing.T) {
	s, company := setup(t)
	im := New(legacySource(), s, Options{DefaultCompanyID: company.ID})

	res, err := im.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Customers: 2, Loans: 2, Mappings: 2, Collections: 2}, res)
	assert.Equal(t, [4]int{2, 2, 1, 2}, counts(t, s, company.ID))

	done, err := s.LegacyImported(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	c1, err := s.Customer(ctx, company.ID, "c1")
	require.NoError(t, err)
	assert.Equal(t, "5550101", c1.Phone)
	assert.Equal(t, 2023, c1.CreatedAt.Year())

	l2, err := s.Loan(ctx, company.ID, "l2")
	require.NoError(t, err)
	assert.Equal(t, "5000.5", l2.LoanAmount.String())

	maps, err := s.Mappings(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "m1", maps[0].ID)
	assert.Equal(t, loanbook.Date("2023-05-03"), maps[0].StartDate)

	remaining, err := s.RemainingBalance(ctx, "c1", "l1")
	require.NoError(t, err)
	assert.Equal(t, "9749.75", remaining.String())

	res, err = im.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestImportTwiceWithoutFlag(t *testing.T) {
	s, company := setup(t)
	opt := Options{DefaultCompanyID: company.ID}

	_, err := New(legacySource(), forgetful{s}, opt).Run(ctx)
	require.NoError(t, err)
	first := counts(t, s, company.ID)

	_, err = New(legacySource(), forgetful{s}, opt).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, counts(t, s, company.ID))
}

func TestImportWithoutTenant(t *testing.T) {
	s, company := setup(t)

	_, err := New(legacySource(), s, Options{}).Run(ctx)
	assert.ErrorIs(t, err, ErrNoTenant)
	done, err := s.LegacyImported(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = New(legacySource(), s, Options{DefaultCompanyID: company.ID}).Run(ctx)
	require.NoError(t, err)
	done, err = s.LegacyImported(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestImportFailureLeavesFlagUnset(t *testing.T) {
	s, company := setup(t)
	src := legacySource()
	src[RecordsBucket] = `[{"id": "bad", "customerId": "c1", "loanId": "l1", "amount": "lots", "collectionDate": "2023-05-03"}]`

	_, err := New(src, s, Options{DefaultCompanyID: company.ID}).Run(ctx)
	assert.ErrorContains(t, err, "collection_records[0]")
	done, err := s.LegacyImported(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	src[RecordsBucket] = `{"not": "an array"}`
	_, err = New(src, s, Options{DefaultCompanyID: company.ID}).Run(ctx)
	assert.Error(t, err)

	_, err = New(src, s, Options{DefaultCompanyID: "unknown"}).Run(ctx)
	assert.ErrorIs(t, err, loanbook.ErrUnknownCompany)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CustomersBucket+".json"), []byte(customersJSON), 0o644))

	src := DirSource(dir)
	raw, err := src.ReadBucket(CustomersBucket)
	require.NoError(t, err)
	assert.JSONEq(t, customersJSON, string(raw))

	raw, err = src.ReadBucket(LoansBucket)
	require.NoError(t, err)
	assert.Nil(t, raw)

	s, company := setup(t)
	res, err := New(src, s, Options{DefaultCompanyID: company.ID}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Customers: 2}, res)
}
