package loanbook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/andreyvit/loanstore"
)

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Store is the loan book on top of a loanstore.DB. It validates records on the
// way in, keeps tenant references valid and runs cascades, each operation in a
// single transaction.
type Store struct {
	db     *loanstore.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *loanstore.DB, opt Options) *Store {
	if opt.Logger == nil {
		opt.Logger = db.Logger()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Store{
		db:     db,
		logger: opt.Logger,
		now:    opt.Now,
	}
}

func (s *Store) DB() *loanstore.DB {
	return s.db
}

func (s *Store) Today() Date {
	return DateOf(s.now())
}

// record is implemented by pointers to every row type.
type record interface {
	Validate() error
	key() *string
	created() *time.Time
	tenant() string
}

func (c *Company) key() *string       { return &c.ID }
func (c *Company) created() *time.Time { return &c.CreatedAt }
func (c *Company) tenant() string      { return c.ID }

func (u *User) key() *string       { return &u.ID }
func (u *User) created() *time.Time { return &u.CreatedAt }
func (u *User) tenant() string      { return u.CompanyID }

func (c *Customer) key() *string       { return &c.ID }
func (c *Customer) created() *time.Time { return &c.CreatedAt }
func (c *Customer) tenant() string      { return c.CompanyID }

func (l *Loan) key() *string       { return &l.ID }
func (l *Loan) created() *time.Time { return &l.CreatedAt }
func (l *Loan) tenant() string      { return l.CompanyID }

func (m *Mapping) key() *string       { return &m.ID }
func (m *Mapping) created() *time.Time { return &m.CreatedAt }
func (m *Mapping) tenant() string      { return m.CompanyID }

func (c *Collection) key() *string       { return &c.ID }
func (c *Collection) created() *time.Time { return &c.CreatedAt }
func (c *Collection) tenant() string      { return c.CompanyID }

// put assigns a missing id and creation time, checks the company reference
// and upserts the row.
func put[Row any, P interface {
	*Row
	record
}](tx *loanstore.Tx, now time.Time, row P) error {
	if _, isCompany := any(row).(*Company); !isCompany {
		if err := requireCompany(tx, row.tenant()); err != nil {
			return err
		}
	}
	id := row.key()
	if *id == "" {
		*id = NewID()
	}
	if t := row.created(); t.IsZero() {
		old, err := loanstore.Get[Row](tx, *id)
		if err != nil {
			return err
		}
		if old != nil {
			*t = *P(old).created()
		} else {
			*t = now.UTC()
		}
	}
	return loanstore.Put(tx, row)
}

func requireCompany(tx *loanstore.Tx, companyID string) error {
	if !loanstore.Exists[Company](tx, companyID) {
		return fmt.Errorf("%w %q", ErrUnknownCompany, companyID)
	}
	return nil
}

// save validates a copy of in, then stores it. The stored row is returned, with
// its id and creation time filled in.
func save[Row any, P interface {
	*Row
	record
}](ctx context.Context, s *Store, in *Row, prepare func(tx *loanstore.Tx, row P) error) (*Row, error) {
	row := *in
	p := P(&row)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	err := s.db.Write(ctx, func(tx *loanstore.Tx) error {
		if prepare != nil {
			if err := prepare(tx, p); err != nil {
				return err
			}
		}
		return put[Row, P](tx, s.now(), p)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) SaveCompany(ctx context.Context, company *Company) (*Company, error) {
	return save[Company](ctx, s, company, nil)
}

func (s *Store) SaveUser(ctx context.Context, user *User) (*User, error) {
	return save[User](ctx, s, user, nil)
}

func (s *Store) SaveCustomer(ctx context.Context, customer *Customer) (*Customer, error) {
	return save[Customer](ctx, s, customer, nil)
}

func (s *Store) SaveLoan(ctx context.Context, loan *Loan) (*Loan, error) {
	return save[Loan](ctx, s, loan, nil)
}

// SaveMapping upserts by the (customerId, loanId) natural key: when a mapping
// for the pair already exists, the incoming one takes over its id.
func (s *Store) SaveMapping(ctx context.Context, mapping *Mapping) (*Mapping, error) {
	return save[Mapping](ctx, s, mapping, func(tx *loanstore.Tx, row *Mapping) error {
		existing, err := loanstore.QueryByCompoundKey[Mapping](tx, naturalKey, []string{row.CustomerID, row.LoanID})
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return nil
		}
		if row.ID != "" && row.ID != existing[0].ID {
			s.logger.Debug("loanbook: mapping id rewritten to natural key owner", "id", row.ID, "existing", existing[0].ID, "customer", row.CustomerID, "loan", row.LoanID)
		}
		row.ID = existing[0].ID
		return nil
	})
}

func (s *Store) SaveCollection(ctx context.Context, collection *Collection) (*Collection, error) {
	return save[Collection](ctx, s, collection, nil)
}

// Registration is what a new company signs up with. The company email doubles
// as the admin login.
type Registration struct {
	CompanyName string
	Email       string
	Phone       string
	Address     string
	AdminName   string
	Password    string
}

// RegisterCompany creates a company and its first admin user together.
func (s *Store) RegisterCompany(ctx context.Context, reg Registration) (*Company, *User, error) {
	now := s.now().UTC()
	company := &Company{
		ID:        NewID(),
		Name:      reg.CompanyName,
		Email:     reg.Email,
		Phone:     reg.Phone,
		Address:   reg.Address,
		CreatedAt: now,
	}
	admin := &User{
		ID:        NewID(),
		CompanyID: company.ID,
		Name:      reg.AdminName,
		Email:     reg.Email,
		Password:  reg.Password,
		Role:      RoleAdmin,
		IsActive:  true,
		CreatedAt: now,
	}
	if err := company.Validate(); err != nil {
		return nil, nil, err
	}
	if err := admin.Validate(); err != nil {
		return nil, nil, err
	}
	err := s.db.Write(ctx, func(tx *loanstore.Tx) error {
		if err := put[Company](tx, now, company); err != nil {
			return err
		}
		return put[User](tx, now, admin)
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("loanbook: company registered", "company", company.ID, "name", company.Name, "admin", admin.ID)
	return company, admin, nil
}

type Agent struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// RegisterAgent adds an active agent user to the company.
func (s *Store) RegisterAgent(ctx context.Context, companyID string, agent Agent) (*User, error) {
	user, err := s.SaveUser(ctx, &User{
		CompanyID: companyID,
		Name:      agent.Name,
		Email:     agent.Email,
		Phone:     agent.Phone,
		Password:  agent.Password,
		Role:      RoleAgent,
		IsActive:  true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("loanbook: agent registered", "company", companyID, "user", user.ID)
	return user, nil
}

func (s *Store) SetUserActive(ctx context.Context, companyID, userID string, active bool) error {
	return s.db.Write(ctx, func(tx *loanstore.Tx) error {
		user, err := loanstore.Get[User](tx, userID)
		if err != nil {
			return err
		}
		if user == nil || user.CompanyID != companyID {
			return fmt.Errorf("%w: user %q", ErrNotFound, userID)
		}
		user.IsActive = active
		return loanstore.Put(tx, user)
	})
}

// Authenticate finds the active user with this email and password, and the
// company it belongs to.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, *Company, error) {
	var user *User
	var company *Company
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		users, err := loanstore.QueryByField[User](tx, "email", email)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.IsActive && subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1 {
				user = u
				break
			}
		}
		if user == nil {
			return ErrInvalidCredentials
		}
		company, err = loanstore.Get[Company](tx, user.CompanyID)
		if err != nil {
			return err
		}
		if company == nil {
			return fmt.Errorf("%w: company %q of user %q", ErrNotFound, user.CompanyID, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, company, nil
}

func (s *Store) Company(ctx context.Context, id string) (*Company, error) {
	return scopedGet[Company](ctx, s, id, id)
}

func (s *Store) User(ctx context.Context, companyID, id string) (*User, error) {
	return scopedGet[User](ctx, s, companyID, id)
}

func (s *Store) Customer(ctx context.Context, companyID, id string) (*Customer, error) {
	return scopedGet[Customer](ctx, s, companyID, id)
}

func (s *Store) Loan(ctx context.Context, companyID, id string) (*Loan, error) {
	return scopedGet[Loan](ctx, s, companyID, id)
}

func (s *Store) Users(ctx context.Context, companyID string) ([]*User, error) {
	return scopedList[User](ctx, s, companyID)
}

// Agents returns the company's active agents.
func (s *Store) Agents(ctx context.Context, companyID string) ([]*User, error) {
	users, err := s.Users(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var agents []*User
	for _, u := range users {
		if u.Role == RoleAgent && u.IsActive {
			agents = append(agents, u)
		}
	}
	return agents, nil
}

func (s *Store) Customers(ctx context.Context, companyID string) ([]*Customer, error) {
	return scopedList[Customer](ctx, s, companyID)
}

func (s *Store) Loans(ctx context.Context, companyID string) ([]*Loan, error) {
	return scopedList[Loan](ctx, s, companyID)
}

func (s *Store) Mappings(ctx context.Context, companyID string) ([]*Mapping, error) {
	return scopedList[Mapping](ctx, s, companyID)
}

func (s *Store) Collections(ctx context.Context, companyID string) ([]*Collection, error) {
	return scopedList[Collection](ctx, s, companyID)
}

// CollectionsByMapping returns the payments recorded against a customer and loan pair.
func (s *Store) CollectionsByMapping(ctx context.Context, customerID, loanID string) ([]*Collection, error) {
	var rows []*Collection
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		var err error
		rows, err = loanstore.QueryByCompoundKey[Collection](tx, naturalKey, []string{customerID, loanID})
		return err
	})
	return rows, err
}

func scopedGet[Row any, P interface {
	*Row
	record
}](ctx context.Context, s *Store, companyID, id string) (*Row, error) {
	var row *Row
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		var err error
		row, err = loanstore.Get[Row](tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if row == nil || companyID == "" || P(row).tenant() != companyID {
		return nil, fmt.Errorf("%w: %T %q", ErrNotFound, row, id)
	}
	return row, nil
}

func scopedList[Row any](ctx context.Context, s *Store, companyID string) ([]*Row, error) {
	var rows []*Row
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		var err error
		rows, err = loanstore.QueryByTenant[Row](tx, companyID)
		return err
	})
	return rows, err
}

// LegacyImported reports whether the legacy import has completed.
func (s *Store) LegacyImported(ctx context.Context) (bool, error) {
	var done bool
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		done = loanstore.SGetRaw(tx, current.legacyImported) != nil
		return nil
	})
	return done, err
}

func (s *Store) MarkLegacyImported(ctx context.Context) error {
	return s.db.Write(ctx, func(tx *loanstore.Tx) error {
		return loanstore.SPutRaw(tx, current.legacyImported, []byte("true"))
	})
}

// SessionBlob returns the stored session JSON, or nil.
func (s *Store) SessionBlob(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		raw = loanstore.SGetRaw(tx, current.session)
		return nil
	})
	return raw, err
}

func (s *Store) SetSessionBlob(ctx context.Context, raw []byte) error {
	return s.db.Write(ctx, func(tx *loanstore.Tx) error {
		return loanstore.SPutRaw(tx, current.session, raw)
	})
}

func (s *Store) ClearSessionBlob(ctx context.Context) error {
	return s.db.Write(ctx, func(tx *loanstore.Tx) error {
		return loanstore.SDelete(tx, current.session)
	})
}
