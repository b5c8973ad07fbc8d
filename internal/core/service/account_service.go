package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
	"github.com/natours/tours-api/internal/metrics"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	resetSubject = "Your password reset token (valid for 10 min)"
)

// AccountService implements ports.AccountService on top of the credential
// primitives and the CredentialStore.
type AccountService struct {
	store    ports.CredentialStore
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	resets   ports.ResetTokens
	notifier ports.Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewAccountService(
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	tokens ports.TokenIssuer,
	resets ports.ResetTokens,
	notifier ports.Notifier,
	log zerolog.Logger,
) *AccountService {
	return &AccountService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		resets:   resets,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Signup creates a user-role account and logs it in.
func (s *AccountService) Signup(ctx context.Context, in ports.SignupInput) (sess *ports.Session, err error) {
	defer func() { observe("signup", err) }()

	created, now, err := s.create(ctx, in, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.newSession(created, now)
}

// Provision creates an account with an explicit role, for operators seeding
// guides and admins. No session is issued.
func (s *AccountService) Provision(ctx context.Context, in ports.SignupInput, role domain.Role) (*domain.Account, error) {
	if !role.Valid() {
		return nil, domain.Validation(fmt.Sprintf("unknown role %q", role))
	}
	created, _, err := s.create(ctx, in, role)
	return created, err
}

func (s *AccountService) create(ctx context.Context, in ports.SignupInput, role domain.Role) (*domain.Account, time.Time, error) {
	if in.Password != in.PasswordConfirm {
		return nil, time.Time{}, domain.ErrPasswordMismatch
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, time.Time{}, err
	}

	now := s.clock()
	created, err := s.store.Create(ctx, &domain.Account{
		Username:     strings.TrimSpace(in.Username),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, time.Time{}, storeErr("Create", err)
	}

	s.log.Info().Str("account_id", created.ID).Str("role", string(role)).Msg("account created")
	return created, now, nil
}

// Login exchanges an email and password for a session. Unknown emails and
// wrong passwords fail identically.
func (s *AccountService) Login(ctx context.Context, email, password string) (sess *ports.Session, err error) {
	defer func() { observe("login", err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingLogin
	}

	acc, err := s.store.FindActiveByEmailWithSecret(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.hasher.VerifyDummy(ctx, password)
			return nil, domain.ErrIncorrectLogin
		}
		return nil, storeErr("FindActiveByEmailWithSecret", err)
	}

	ok, err := s.hasher.Verify(ctx, password, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrIncorrectLogin
	}

	return s.newSession(acc, s.clock())
}

// ChangePassword replaces the password of an authenticated account and
// returns a fresh session; every earlier session of the account goes stale.
func (s *AccountService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) (sess *ports.Session, err error) {
	defer func() { observe("change_password", err) }()

	acc, err := s.store.FindActiveByIDWithSecret(ctx, in.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrSessionAccountGone
		}
		return nil, storeErr("FindActiveByIDWithSecret", err)
	}

	ok, err := s.hasher.Verify(ctx, in.CurrentPassword, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrWrongPassword
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return nil, domain.ErrPasswordMismatch
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	changedAt := passwordChangeTime(now, acc.PasswordChangedAt)
	updated, err := s.store.UpdateByID(ctx, acc.ID, domain.AccountUpdate{
		PasswordHash:      &hash,
		PasswordChangedAt: &changedAt,
	})
	if err != nil {
		return nil, storeErr("UpdateByID", err)
	}

	s.log.Info().Str("account_id", acc.ID).Msg("password changed")
	return s.newSession(updated, now)
}

// ForgotPassword stores a pending reset and mails its link. If delivery
// fails the pending reset is cleared again.
func (s *AccountService) ForgotPassword(ctx context.Context, email, resetURLBase string) (err error) {
	defer func() { observe("forgot_password", err) }()

	acc, err := s.store.FindActiveByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrEmailNotFound
		}
		return storeErr("FindActiveByEmail", err)
	}

	token, err := s.resets.Issue()
	if err != nil {
		return err
	}

	now := s.clock()
	tokenHash := s.resets.HashOf(token)
	if _, err := s.store.UpdateByID(ctx, acc.ID, domain.AccountUpdate{
		SetReset: &domain.ResetToken{
			Hash:      tokenHash,
			ExpiresAt: s.resets.ExpiresAt(now).Truncate(time.Millisecond),
		},
	}); err != nil {
		return storeErr("UpdateByID", err)
	}

	body := fmt.Sprintf(
		"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s%s\n"+
			"If you didn't forget your password, please ignore this email!",
		resetURLBase, token,
	)
	if sendErr := s.notifier.Send(ctx, acc.Email, resetSubject, body); sendErr != nil {
		metrics.ResetEmailsTotal.WithLabelValues("failed").Inc()

		// The client may be gone already; the rollback must still land. Only
		// this call's reset is cleared, a newer request keeps its token.
		if rbErr := s.store.ClearResetToken(context.WithoutCancel(ctx), acc.ID, tokenHash); rbErr != nil {
			s.log.Error().Err(rbErr).Str("account_id", acc.ID).Msg("failed to clear reset token after delivery failure")
		}
		return domain.Delivery(domain.ErrResetDeliveryFailed.Message, sendErr)
	}

	metrics.ResetEmailsTotal.WithLabelValues("sent").Inc()
	s.log.Info().Str("account_id", acc.ID).Msg("password reset requested")
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AccountService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) (sess *ports.Session, err error) {
	defer func() { observe("reset_password", err) }()

	if in.Token == "" {
		return nil, domain.ErrResetTokenInvalid
	}

	tokenHash := s.resets.HashOf(in.Token)
	now := s.clock()

	pending, err := s.store.FindActiveByResetToken(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrResetTokenInvalid
		}
		return nil, storeErr("FindActiveByResetToken", err)
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return nil, domain.ErrPasswordMismatch
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return nil, err
	}

	// Hashing takes a while; re-read the clock so the expiry check and the
	// change timestamp reflect the moment of the write.
	now = s.clock()
	changedAt := passwordChangeTime(now, pending.PasswordChangedAt)
	acc, err := s.store.ConsumeResetToken(ctx, tokenHash, now, domain.AccountUpdate{
		PasswordHash:      &hash,
		PasswordChangedAt: &changedAt,
		ClearReset:        true,
	})
	if err != nil {
		return nil, storeErr("ConsumeResetToken", err)
	}

	s.log.Info().Str("account_id", acc.ID).Msg("password reset completed")
	return s.newSession(acc, now)
}

// ResolveSession verifies token and loads its account. Failures are
// operational authentication errors naming the failed check.
func (s *AccountService) ResolveSession(ctx context.Context, token string) (acc *domain.Account, err error) {
	defer func() { observe("authenticate", err) }()

	if token == "" {
		return nil, domain.ErrNotLoggedIn
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrSessionInvalid
	}

	acc, err = s.store.FindActiveByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrSessionAccountGone
		}
		return nil, storeErr("FindActiveByID", err)
	}

	if acc.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, domain.ErrSessionStale
	}
	return withoutSecret(acc), nil
}

// UpdateProfile changes username and/or email. Password fields are refused.
func (s *AccountService) UpdateProfile(ctx context.Context, in ports.UpdateProfileInput) (*domain.Account, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return nil, domain.ErrPasswordFieldsInMe
	}

	var update domain.AccountUpdate
	if u := strings.TrimSpace(in.Username); u != "" {
		update.Username = &u
	}
	if e := normalizeEmail(in.Email); e != "" {
		update.Email = &e
	}
	if update.IsEmpty() {
		return s.GetAccount(ctx, in.AccountID)
	}

	acc, err := s.store.UpdateByID(ctx, in.AccountID, update)
	if err != nil {
		return nil, storeErr("UpdateByID", err)
	}
	return withoutSecret(acc), nil
}

// Deactivate soft-deletes the account; it disappears from every lookup.
func (s *AccountService) Deactivate(ctx context.Context, accountID string) error {
	inactive := false
	if _, err := s.store.UpdateByID(ctx, accountID, domain.AccountUpdate{Active: &inactive}); err != nil {
		return storeErr("UpdateByID", err)
	}
	s.log.Info().Str("account_id", accountID).Msg("account deactivated")
	return nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acc, err := s.store.FindActiveByID(ctx, accountID)
	if err != nil {
		return nil, storeErr("FindActiveByID", err)
	}
	return withoutSecret(acc), nil
}

// ListAccounts returns one page of active accounts. Limit is capped at 100.
func (s *AccountService) ListAccounts(ctx context.Context, filter ports.ListAccountsFilter) (*ports.ListAccountsResult, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, domain.Validation(fmt.Sprintf("unknown role %q", filter.Role))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, storeErr("List", err)
	}
	for i := range items {
		items[i] = withoutSecret(items[i])
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ports.ListAccountsResult{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

func (s *AccountService) newSession(acc *domain.Account, now time.Time) (*ports.Session, error) {
	token, err := s.tokens.Issue(acc.ID, sessionIssueTime(now, acc.PasswordChangedAt))
	if err != nil {
		return nil, err
	}
	return &ports.Session{Token: token, Account: withoutSecret(acc)}, nil
}

func (s *AccountService) clock() time.Time {
	return s.now().UTC()
}

// sessionIssueTime picks the issue time of a new session, in milliseconds.
// A session is only valid when issued strictly after the last password
// change, so a session minted in the change's millisecond gets the next one.
func sessionIssueTime(now, passwordChangedAt time.Time) time.Time {
	t := now.Truncate(time.Millisecond)
	if !passwordChangedAt.IsZero() && !t.After(passwordChangedAt) {
		t = passwordChangedAt.Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return t
}

// passwordChangeTime stamps a password change. It always lands at or after
// the issue time of any session minted since the previous change, so every
// such session goes stale.
func passwordChangeTime(now, previous time.Time) time.Time {
	t := now.Truncate(time.Millisecond)
	if !previous.IsZero() {
		if floor := previous.Truncate(time.Millisecond).Add(time.Millisecond); t.Before(floor) {
			t = floor
		}
	}
	return t
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func withoutSecret(acc *domain.Account) *domain.Account {
	if acc == nil {
		return nil
	}
	clone := *acc
	clone.PasswordHash = ""
	return &clone
}

// storeErr passes operational errors through and tags everything else.
func storeErr(operation string, err error) error {
	if domain.KindOf(err) != domain.KindInternal {
		return err
	}
	return oops.Code("STORE_FAILED").With("operation", operation).Wrap(err)
}

func observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	metrics.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
}
