package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

type stubAccountService struct {
	signupFn         func(ctx context.Context, in ports.SignupInput) (*ports.Session, error)
	loginFn          func(ctx context.Context, email, password string) (*ports.Session, error)
	changePasswordFn func(ctx context.Context, in ports.ChangePasswordInput) (*ports.Session, error)
	forgotPasswordFn func(ctx context.Context, email, resetURLBase string) error
	resetPasswordFn  func(ctx context.Context, in ports.ResetPasswordInput) (*ports.Session, error)
	resolveFn        func(ctx context.Context, token string) (*domain.Account, error)
	updateProfileFn  func(ctx context.Context, in ports.UpdateProfileInput) (*domain.Account, error)
	deactivateFn     func(ctx context.Context, accountID string) error
	getAccountFn     func(ctx context.Context, accountID string) (*domain.Account, error)
	listAccountsFn   func(ctx context.Context, filter ports.ListAccountsFilter) (*ports.ListAccountsResult, error)
}

var _ ports.AccountService = (*stubAccountService)(nil)

func (s *stubAccountService) Signup(ctx context.Context, in ports.SignupInput) (*ports.Session, error) {
	return s.signupFn(ctx, in)
}

func (s *stubAccountService) Login(ctx context.Context, email, password string) (*ports.Session, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAccountService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) (*ports.Session, error) {
	return s.changePasswordFn(ctx, in)
}

func (s *stubAccountService) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	return s.forgotPasswordFn(ctx, email, resetURLBase)
}

func (s *stubAccountService) ResetPassword(ctx context.Context, in ports.ResetPasswordInput) (*ports.Session, error) {
	return s.resetPasswordFn(ctx, in)
}

func (s *stubAccountService) ResolveSession(ctx context.Context, token string) (*domain.Account, error) {
	return s.resolveFn(ctx, token)
}

func (s *stubAccountService) UpdateProfile(ctx context.Context, in ports.UpdateProfileInput) (*domain.Account, error) {
	return s.updateProfileFn(ctx, in)
}

func (s *stubAccountService) Deactivate(ctx context.Context, accountID string) error {
	return s.deactivateFn(ctx, accountID)
}

func (s *stubAccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.getAccountFn(ctx, accountID)
}

func (s *stubAccountService) ListAccounts(ctx context.Context, filter ports.ListAccountsFilter) (*ports.ListAccountsResult, error) {
	return s.listAccountsFn(ctx, filter)
}

func jonas() *domain.Account {
	return &domain.Account{ID: "acc-1", Username: "jonas", Email: "jonas@example.com", Role: domain.RoleUser, Active: true}
}

// newContext builds an echo context for a JSON request.
func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
