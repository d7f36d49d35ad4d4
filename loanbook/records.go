package loanbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent
}

// Date is a calendar day in YYYY-MM-DD form. It sorts lexicographically, which
// lets month reports run as prefix lookups.
type Date string

const dateLayout = "2006-01-02"

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRecord, s)
	}
	return DateOf(t), nil
}

func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

// Month returns the YYYY-MM part.
func (d Date) Month() string {
	if len(d) < 7 {
		return ""
	}
	return string(d[:7])
}

type (
	Company struct {
		ID        string    `msgpack:"-" json:"id"`
		Name      string    `msgpack:"name" json:"name"`
		Email     string    `msgpack:"email" json:"email"`
		Phone     string    `msgpack:"phone" json:"phone"`
		Address   string    `msgpack:"address,omitempty" json:"address,omitempty"`
		CreatedAt time.Time `msgpack:"createdAt" json:"createdAt"`
	}

	User struct {
		ID        string    `msgpack:"-" json:"id"`
		CompanyID string    `msgpack:"companyId" json:"companyId"`
		Name      string    `msgpack:"name" json:"name"`
		Email     string    `msgpack:"email" json:"email"`
		Phone     string    `msgpack:"phone,omitempty" json:"phone,omitempty"`
		Password  string    `msgpack:"password" json:"-"`
		Role      Role      `msgpack:"role" json:"role"`
		IsActive  bool      `msgpack:"isActive" json:"isActive"`
		CreatedAt time.Time `msgpack:"createdAt" json:"createdAt"`
	}

	Customer struct {
		ID        string    `msgpack:"-" json:"id"`
		CompanyID string    `msgpack:"companyId" json:"companyId"`
		Name      string    `msgpack:"name" json:"name"`
		Phone     string    `msgpack:"phone" json:"phone"`
		Address   string    `msgpack:"address,omitempty" json:"address,omitempty"`
		Email     string    `msgpack:"email,omitempty" json:"email,omitempty"`
		CreatedAt time.Time `msgpack:"createdAt" json:"createdAt"`
	}

	Loan struct {
		ID              string          `msgpack:"-" json:"id"`
		CompanyID       string          `msgpack:"companyId" json:"companyId"`
		LoanAmount      decimal.Decimal `msgpack:"loanAmount" json:"loanAmount"`
		DailyCollection decimal.Decimal `msgpack:"dailyCollection" json:"dailyCollection"`
		Description     string          `msgpack:"description,omitempty" json:"description,omitempty"`
		CreatedAt       time.Time       `msgpack:"createdAt" json:"createdAt"`
	}

	// Mapping assigns a loan to a customer. At most one mapping exists per
	// customer and loan pair.
	Mapping struct {
		ID         string    `msgpack:"-" json:"id"`
		CompanyID  string    `msgpack:"companyId" json:"companyId"`
		CustomerID string    `msgpack:"customerId" json:"customerId"`
		LoanID     string    `msgpack:"loanId" json:"loanId"`
		AgentID    string    `msgpack:"agentId,omitempty" json:"agentId,omitempty"`
		StartDate  Date      `msgpack:"startDate" json:"startDate"`
		CreatedAt  time.Time `msgpack:"createdAt" json:"createdAt"`
	}

	// Collection is one payment received against a mapping.
	Collection struct {
		ID             string          `msgpack:"-" json:"id"`
		CompanyID      string          `msgpack:"companyId" json:"companyId"`
		CustomerID     string          `msgpack:"customerId" json:"customerId"`
		LoanID         string          `msgpack:"loanId" json:"loanId"`
		AgentID        string          `msgpack:"agentId,omitempty" json:"agentId,omitempty"`
		Amount         decimal.Decimal `msgpack:"amount" json:"amount"`
		CollectionDate Date            `msgpack:"collectionDate" json:"collectionDate"`
		Notes          string          `msgpack:"notes,omitempty" json:"notes,omitempty"`
		CreatedAt      time.Time       `msgpack:"createdAt" json:"createdAt"`
	}
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

func required(kind string, fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return invalidf("%s %s is required", kind, fields[i])
		}
	}
	return nil
}

func (c *Company) Validate() error {
	return required("company", "name", c.Name, "email", c.Email)
}

func (u *User) Validate() error {
	if err := required("user", "companyId", u.CompanyID, "name", u.Name, "email", u.Email, "password", u.Password); err != nil {
		return err
	}
	if !u.Role.Valid() {
		return invalidf("user role %q is not admin or agent", u.Role)
	}
	return nil
}

func (c *Customer) Validate() error {
	return required("customer", "companyId", c.CompanyID, "name", c.Name, "phone", c.Phone)
}

func (l *Loan) Validate() error {
	if err := required("loan", "companyId", l.CompanyID); err != nil {
		return err
	}
	if l.LoanAmount.IsNegative() {
		return invalidf("loan amount %s is negative", l.LoanAmount)
	}
	if l.DailyCollection.IsNegative() {
		return invalidf("daily collection %s is negative", l.DailyCollection)
	}
	return nil
}

func (m *Mapping) Validate() error {
	if err := required("mapping", "companyId", m.CompanyID, "customerId", m.CustomerID, "loanId", m.LoanID); err != nil {
		return err
	}
	if !m.StartDate.Valid() {
		return invalidf("mapping start date %q is not YYYY-MM-DD", m.StartDate)
	}
	return nil
}

func (c *Collection) Validate() error {
	if err := required("collection", "companyId", c.CompanyID, "customerId", c.CustomerID, "loanId", c.LoanID); err != nil {
		return err
	}
	if !c.Amount.IsPositive() {
		return invalidf("collection amount %s must be positive", c.Amount)
	}
	if !c.CollectionDate.Valid() {
		return invalidf("collection date %q is not YYYY-MM-DD", c.CollectionDate)
	}
	return nil
}
