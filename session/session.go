// Package session keeps the signed-in user as a JSON blob in the store's
// settings map, in the same shape the web client has always used.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyvit/loanstore/loanbook"
)

type User struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Role      loanbook.Role `json:"role"`
	CompanyID string        `json:"companyId"`
}

type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Session struct {
	User      User      `json:"user"`
	Company   Company   `json:"company"`
	LoginTime time.Time `json:"loginTime"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.User.Role == loanbook.RoleAdmin
}

// Blobs stores the raw session; *loanbook.Store implements it.
type Blobs interface {
	SessionBlob(ctx context.Context) ([]byte, error)
	SetSessionBlob(ctx context.Context, raw []byte) error
	ClearSessionBlob(ctx context.Context) error
}

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*loanbook.User, *loanbook.Company, error)
}

type Manager struct {
	blobs Blobs
	auth  Authenticator
	now   func() time.Time
}

func NewManager(blobs Blobs, auth Authenticator, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{blobs: blobs, auth: auth, now: now}
}

// Login checks the credentials and replaces the stored session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	user, company, err := m.auth.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		User: User{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      user.Role,
			CompanyID: user.CompanyID,
		},
		Company: Company{
			ID:   company.ID,
			Name: company.Name,
		},
		LoginTime: m.now().UTC(),
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := m.blobs.SetSessionBlob(ctx, raw); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) Logout(ctx context.Context) error {
	return m.blobs.ClearSessionBlob(ctx)
}

// Current returns the stored session, or nil when nobody is signed in.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	raw, err := m.blobs.SessionBlob(ctx)
	if err != nil || raw == nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session: decoding: %w", err)
	}
	return &sess, nil
}

// CompanyID is the tenant of the signed-in user, or "" when nobody is.
func (m *Manager) CompanyID(ctx context.Context) (string, error) {
	sess, err := m.Current(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.User.CompanyID, nil
}
