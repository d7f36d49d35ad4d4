package loanbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/loanstore"
)

func TestUpgradeFromVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loanbook.db")

	s := openStore(t, path, defineSchema(1).scm)
	b := seed(t, s, "Acme", "a@acme.com")
	b.collect(t, s, b.customer.ID, b.loan.ID, "50", "2024-03-01")
	// tenant lookups need the version 2 indices
	_, err := s.Customers(ctx, b.company.ID)
	assert.ErrorIs(t, err, loanstore.ErrInvalidIndex)
	require.NoError(t, s.DB().Close())

	s = openStore(t, path, Schema())
	assert.Equal(t, uint64(1), s.DB().StoredVersion())

	custs, err := s.Customers(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.customer.ID}, ids[Customer](custs))

	colls, err := s.Collections(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Len(t, colls, 1)

	var byAgent []*Mapping
	require.NoError(t, s.DB().Read(ctx, func(tx *loanstore.Tx) error {
		byAgent, err = loanstore.QueryByField[Mapping](tx, "agentId", b.admin.ID)
		return err
	}))
	assert.Equal(t, []string{b.mapping.ID}, ids[Mapping](byAgent))
}

func TestUpgradeFromVersion2AndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loanbook.db")

	s := openStore(t, path, defineSchema(2).scm)
	b := seed(t, s, "Acme", "a@acme.com")
	require.NoError(t, s.DB().Close())

	for range 2 {
		s = openStore(t, path, Schema())
		maps, err := s.Mappings(ctx, b.company.ID)
		require.NoError(t, err)
		require.Len(t, maps, 1)
		assert.Equal(t, b.admin.ID, maps[0].AgentID)

		require.NoError(t, s.DB().Read(ctx, func(tx *loanstore.Tx) error {
			rows, err := loanstore.QueryByField[Mapping](tx, "agentId", b.admin.ID)
			assert.Len(t, rows, 1)
			return err
		}))
		require.NoError(t, s.DB().Close())
	}
	assert.Equal(t, uint64(SchemaVersion), s.DB().StoredVersion())
}

func TestSchemaTooNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loanbook.db")
	openStore(t, path, Schema()).DB().Close()

	_, err := loanstore.Open(path, defineSchema(2).scm, loanstore.Options{IsTesting: true})
	assert.ErrorIs(t, err, loanstore.ErrSchemaTooNew)
	assert.ErrorIs(t, err, loanstore.ErrStoreUnavailable)
}

func TestSchemaDeclaresIndices(t *testing.T) {
	want := map[string][]string{
		CompaniesCollection:   {"name", "email"},
		UsersCollection:       {"companyId", "email", "role", "companyEmail"},
		CustomersCollection:   {"name", "companyId"},
		LoansCollection:       {"companyId"},
		MappingsCollection:    {"customerId", "loanId", "customerLoan", "companyId", "agentId"},
		CollectionsCollection: {"customerId", "loanId", "collectionDate", "customerLoan", "companyId"},
	}
	for _, coll := range Schema().Collections() {
		var names []string
		for _, idx := range coll.Indices() {
			names = append(names, idx.Name())
		}
		assert.Equal(t, want[coll.Name()], names, coll.Name())
	}
	assert.Equal(t, uint64(SchemaVersion), Schema().Version())
}
