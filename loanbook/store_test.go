package loanbook

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvit/loanstore"
)

var (
	ctx      = context.Background()
	fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
)

func openStore(t *testing.T, path string, scm *loanstore.Schema) *Store {
	t.Helper()
	db, err := loanstore.Open(path, scm, loanstore.Options{IsTesting: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Options{Now: func() time.Time { return fixedNow }})
}

func setup(t *testing.T) *Store {
	return openStore(t, filepath.Join(t.TempDir(), "loanbook.db"), Schema())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// book is a small company with one customer on one loan.
type book struct {
	company  *Company
	admin    *User
	customer *Customer
	loan     *Loan
	mapping  *Mapping
}

func seed(t *testing.T, s *Store, name, email string) *book {
	t.Helper()
	b := &book{}
	var err error
	b.company, b.admin, err = s.RegisterCompany(ctx, Registration{
		CompanyName: name,
		Email:       email,
		Phone:       "555-0100",
		AdminName:   name + " Admin",
		Password:    "secret",
	})
	require.NoError(t, err)
	b.customer, err = s.SaveCustomer(ctx, &Customer{CompanyID: b.company.ID, Name: name + " Customer", Phone: "555-0101"})
	require.NoError(t, err)
	b.loan, err = s.SaveLoan(ctx, &Loan{CompanyID: b.company.ID, LoanAmount: dec("1000"), DailyCollection: dec("50")})
	require.NoError(t, err)
	b.mapping, err = s.SaveMapping(ctx, &Mapping{CompanyID: b.company.ID, CustomerID: b.customer.ID, LoanID: b.loan.ID, AgentID: b.admin.ID, StartDate: "2024-03-01"})
	require.NoError(t, err)
	return b
}

func (b *book) collect(t *testing.T, s *Store, customerID, loanID, amount string, day Date) *Collection {
	t.Helper()
	c, err := s.SaveCollection(ctx, &Collection{
		CompanyID:      b.company.ID,
		CustomerID:     customerID,
		LoanID:         loanID,
		Amount:         dec(amount),
		CollectionDate: day,
	})
	require.NoError(t, err)
	return c
}

func ids[Row any, P interface {
	*Row
	record
}](rows []*Row) []string {
	result := make([]string, len(rows))
	for i, row := range rows {
		result[i] = *P(row).key()
	}
	return result
}

func TestSaveAssignsIDAndCreatedAt(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")

	assert.NotEmpty(t, b.customer.ID)
	assert.True(t, b.customer.CreatedAt.Equal(fixedNow))

	in := &Customer{CompanyID: b.company.ID, Name: "Bob", Phone: "1"}
	out, err := s.SaveCustomer(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, in.ID, "input must not be modified")
	assert.NotEqual(t, b.customer.ID, out.ID)

	got, err := s.Customer(ctx, b.company.ID, out.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
	assert.True(t, got.CreatedAt.Equal(fixedNow))
}

func TestSaveIsIdempotent(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")

	meta := func() loanstore.ValueMeta {
		var vm loanstore.ValueMeta
		require.NoError(t, s.DB().Read(ctx, func(tx *loanstore.Tx) error {
			coll, err := tx.Schema().CollectionNamed(CustomersCollection)
			if err != nil {
				return err
			}
			vm, err = tx.GetMeta(coll, b.customer.ID)
			return err
		}))
		return vm
	}

	before := meta()
	again := *b.customer
	again.CreatedAt = time.Time{}
	_, err := s.SaveCustomer(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, before, meta())

	custs, err := s.Customers(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Len(t, custs, 1)

	again.Phone = "555-9999"
	_, err = s.SaveCustomer(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, before.ModCount+1, meta().ModCount)
}

func TestTenantIsolation(t *testing.T) {
	s := setup(t)
	acme := seed(t, s, "Acme", "a@acme.com")
	globex := seed(t, s, "Globex", "g@globex.com")
	acme.collect(t, s, acme.customer.ID, acme.loan.ID, "100", "2024-03-15")
	globex.collect(t, s, globex.customer.ID, globex.loan.ID, "70", "2024-03-15")

	custs, err := s.Customers(ctx, acme.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{acme.customer.ID}, ids[Customer](custs))

	loans, err := s.Loans(ctx, globex.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{globex.loan.ID}, ids[Loan](loans))

	maps, err := s.Mappings(ctx, acme.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{acme.mapping.ID}, ids[Mapping](maps))

	colls, err := s.Collections(ctx, globex.company.ID)
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, globex.customer.ID, colls[0].CustomerID)

	users, err := s.Users(ctx, acme.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{acme.admin.ID}, ids[User](users))

	_, err = s.Customer(ctx, acme.company.ID, globex.customer.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Loan(ctx, globex.company.ID, acme.loan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	none, err := s.Customers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	st, err := s.Stats(ctx, acme.company.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalCollections)
	assert.Equal(t, "100", st.TotalCollected.String())
}

func TestUnknownCompany(t *testing.T) {
	s := setup(t)
	_, err := s.SaveCustomer(ctx, &Customer{CompanyID: "nope", Name: "Bob", Phone: "1"})
	assert.ErrorIs(t, err, ErrUnknownCompany)
	assert.ErrorIs(t, err, loanstore.ErrConstraintViolation)
}

func TestValidation(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")
	cid := b.company.ID

	tests := []struct {
		name string
		save func() error
	}{
		{"company without email", func() error {
			_, err := s.SaveCompany(ctx, &Company{Name: "X"})
			return err
		}},
		{"user with bad role", func() error {
			_, err := s.SaveUser(ctx, &User{CompanyID: cid, Name: "U", Email: "u@x", Password: "p", Role: "boss"})
			return err
		}},
		{"customer without phone", func() error {
			_, err := s.SaveCustomer(ctx, &Customer{CompanyID: cid, Name: "C"})
			return err
		}},
		{"negative loan", func() error {
			_, err := s.SaveLoan(ctx, &Loan{CompanyID: cid, LoanAmount: dec("-1")})
			return err
		}},
		{"mapping without start date", func() error {
			_, err := s.SaveMapping(ctx, &Mapping{CompanyID: cid, CustomerID: "c", LoanID: "l"})
			return err
		}},
		{"zero collection", func() error {
			_, err := s.SaveCollection(ctx, &Collection{CompanyID: cid, CustomerID: "c", LoanID: "l", Amount: decimal.Zero, CollectionDate: "2024-03-01"})
			return err
		}},
		{"collection with bad date", func() error {
			_, err := s.SaveCollection(ctx, &Collection{CompanyID: cid, CustomerID: "c", LoanID: "l", Amount: dec("1"), CollectionDate: "03/01/2024"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.save(), ErrInvalidRecord)
		})
	}
}

func TestSaveMappingNaturalKey(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")

	agent, err := s.RegisterAgent(ctx, b.company.ID, Agent{Name: "Agent", Email: "agent@acme.com", Password: "pw"})
	require.NoError(t, err)

	m, err := s.SaveMapping(ctx, &Mapping{
		ID:         "someone-else",
		CompanyID:  b.company.ID,
		CustomerID: b.customer.ID,
		LoanID:     b.loan.ID,
		AgentID:    agent.ID,
		StartDate:  "2024-03-02",
	})
	require.NoError(t, err)
	assert.Equal(t, b.mapping.ID, m.ID)
	assert.True(t, m.CreatedAt.Equal(b.mapping.CreatedAt))

	maps, err := s.Mappings(ctx, b.company.ID)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, agent.ID, maps[0].AgentID)
	assert.Equal(t, Date("2024-03-02"), maps[0].StartDate)

	agents, err := s.Agents(ctx, b.company.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{agent.ID}, ids[User](agents))
}

func TestAcmeScenario(t *testing.T) {
	s := setup(t)
	acme := seed(t, s, "Acme", "a@acme.com")
	globex := seed(t, s, "Globex", "g@globex.com")

	_, err := s.SaveUser(ctx, &User{CompanyID: acme.company.ID, Name: "Dup", Email: "a@acme.com", Password: "x", Role: RoleAgent, IsActive: true})
	assert.ErrorIs(t, err, loanstore.ErrConstraintViolation)

	_, err = s.SaveUser(ctx, &User{CompanyID: globex.company.ID, Name: "Other", Email: "a@acme.com", Password: "x", Role: RoleAgent, IsActive: true})
	assert.NoError(t, err)

	_, _, err = s.RegisterCompany(ctx, Registration{CompanyName: "Acme 2", Email: "a@acme.com", AdminName: "A", Password: "p"})
	assert.ErrorIs(t, err, loanstore.ErrConstraintViolation)
}

func TestAuthenticate(t *testing.T) {
	s := setup(t)
	b := seed(t, s, "Acme", "a@acme.com")

	user, company, err := s.Authenticate(ctx, "a@acme.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, b.admin.ID, user.ID)
	assert.Equal(t, b.company.ID, company.ID)

	_, _, err = s.Authenticate(ctx, "a@acme.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Authenticate(ctx, "nobody@acme.com", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, s.SetUserActive(ctx, b.company.ID, b.admin.ID, false))
	_, _, err = s.Authenticate(ctx, "a@acme.com", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, s.SetUserActive(ctx, "other", b.admin.ID, true), ErrNotFound)
}

func TestLegacyFlagAndSessionBlob(t *testing.T) {
	s := setup(t)

	done, err := s.LegacyImported(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	require.NoError(t, s.MarkLegacyImported(ctx))
	done, err = s.LegacyImported(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	raw, err := s.SessionBlob(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)
	require.NoError(t, s.SetSessionBlob(ctx, []byte(`{"user":{"id":"u1"}}`)))
	raw, err = s.SessionBlob(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{"id":"u1"}}`, string(raw))
	require.NoError(t, s.ClearSessionBlob(ctx))
	raw, err = s.SessionBlob(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02", d.Month())
	assert.Equal(t, Date("2024-03-15"), DateOf(fixedNow))

	_, err = ParseDate("2023-02-29")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.False(t, Date("").Valid())
}
