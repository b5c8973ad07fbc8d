package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory CredentialStore mirroring the Mongo adapter's semantics
// ---------------------------------------------------------------------------

type stubStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	seq      int
	findErr  error // if set, every Find* returns this error
}

func newStubStore() *stubStore {
	return &stubStore{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account, withSecret bool) *domain.Account {
	clone := *a
	if !withSecret {
		clone.PasswordHash = ""
	}
	return &clone
}

func (s *stubStore) findActive(match func(*domain.Account) bool, withSecret bool) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, a := range s.accounts {
		if a.Active && match(a) {
			return cloneAccount(a, withSecret), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *stubStore) FindActiveByID(_ context.Context, id string) (*domain.Account, error) {
	return s.findActive(func(a *domain.Account) bool { return a.ID == id }, false)
}

func (s *stubStore) FindActiveByIDWithSecret(_ context.Context, id string) (*domain.Account, error) {
	return s.findActive(func(a *domain.Account) bool { return a.ID == id }, true)
}

func (s *stubStore) FindActiveByEmail(_ context.Context, email string) (*domain.Account, error) {
	return s.findActive(func(a *domain.Account) bool { return a.Email == email }, false)
}

func (s *stubStore) FindActiveByEmailWithSecret(_ context.Context, email string) (*domain.Account, error) {
	return s.findActive(func(a *domain.Account) bool { return a.Email == email }, true)
}

func (s *stubStore) FindActiveByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.Account, error) {
	return s.findActive(func(a *domain.Account) bool {
		return tokenHash != "" && a.ResetTokenHash == tokenHash && a.ResetExpiresAt.After(now)
	}, false)
}

func (s *stubStore) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == account.Email || a.Username == account.Username {
			return nil, domain.ErrAccountExists
		}
	}
	s.seq++
	stored := cloneAccount(account, true)
	stored.ID = fmt.Sprintf("acc-%d", s.seq)
	s.accounts[stored.ID] = stored
	return cloneAccount(stored, false), nil
}

func (s *stubStore) UpdateByID(_ context.Context, id string, update domain.AccountUpdate) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || !a.Active {
		return nil, domain.ErrAccountNotFound
	}
	apply(a, update)
	return cloneAccount(a, false), nil
}

func (s *stubStore) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, update domain.AccountUpdate) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Active && a.ResetTokenHash == tokenHash && a.ResetExpiresAt.After(now) {
			apply(a, update)
			return cloneAccount(a, false), nil
		}
	}
	return nil, domain.ErrResetTokenInvalid
}

func (s *stubStore) ClearResetToken(_ context.Context, id, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok && a.Active && tokenHash != "" && a.ResetTokenHash == tokenHash {
		apply(a, domain.AccountUpdate{ClearReset: true})
	}
	return nil
}

func (s *stubStore) List(_ context.Context, f ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*domain.Account
	for _, a := range s.accounts {
		if !a.Active || (f.Role != "" && a.Role != f.Role) {
			continue
		}
		matched = append(matched, cloneAccount(a, false))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	skip := (f.Page - 1) * f.Limit
	if skip > len(matched) {
		return []*domain.Account{}, total, nil
	}
	end := skip + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

// raw returns the stored record including secrets, for assertions.
func (s *stubStore) raw(id string) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAccount(s.accounts[id], true)
}

func (s *stubStore) all() []*domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a, true))
	}
	return out
}

func apply(a *domain.Account, u domain.AccountUpdate) {
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.PasswordChangedAt != nil {
		a.PasswordChangedAt = *u.PasswordChangedAt
	}
	if u.Active != nil {
		a.Active = *u.Active
	}
	if u.SetReset != nil {
		a.ResetTokenHash = u.SetReset.Hash
		a.ResetExpiresAt = u.SetReset.ExpiresAt
	}
	if u.ClearReset {
		a.ResetTokenHash = ""
		a.ResetExpiresAt = time.Time{}
	}
}

// ---------------------------------------------------------------------------
// Notifier stub
// ---------------------------------------------------------------------------

type sentMessage struct {
	To, Subject, Body string
}

type stubNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	err    error
	onSend func() // runs before the outcome is decided, without the lock
}

func (n *stubNotifier) Send(_ context.Context, to, subject, body string) error {
	if n.onSend != nil {
		n.onSend()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (n *stubNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}
