package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

// AuthHandler serves the credential lifecycle routes under /api/v1/users.
type AuthHandler struct {
	service   ports.AccountService
	cookieTTL time.Duration
	now       func() time.Time
}

func NewAuthHandler(service ports.AccountService, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{service: service, cookieTTL: cookieTTL, now: time.Now}
}

type signupRequest struct {
	Username        string `json:"username"        validate:"required,max=40"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"        validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password"        validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// Signup creates a user account and logs it in.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "New account"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  statusResponse
// @Failure      409   {object}  statusResponse
// @Router       /api/v1/users/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sess, err := h.service.Signup(c.Request().Context(), ports.SignupInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusCreated, sess)
}

// Login exchanges email and password for a session.
//
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  statusResponse
// @Failure      401   {object}  statusResponse
// @Router       /api/v1/users/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}

	sess, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, sess)
}

// Logout replaces the session cookie with an already expired empty one.
// Bearer tokens stay valid until they expire.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  statusResponse
// @Router       /api/v1/users/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(sessionCookie(c, "", h.now().Add(-time.Second)))
	return c.JSON(http.StatusOK, statusResponse{Status: "success"})
}

// ForgotPassword mails a reset link to the account's address.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  statusResponse
// @Failure      404   {object}  statusResponse
// @Failure      500   {object}  statusResponse
// @Router       /api/v1/users/forgotPassword [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}

	base := c.Scheme() + "://" + c.Request().Host + "/api/v1/users/resetPassword/"
	if err := h.service.ForgotPassword(c.Request().Context(), req.Email, base); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "success", Message: "Token sent to email!"})
}

// ResetPassword sets a new password using a mailed reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                true  "Reset token"
// @Param        body   body      resetPasswordRequest  true  "New password"
// @Success      200    {object}  sessionResponse
// @Failure      400    {object}  statusResponse
// @Router       /api/v1/users/resetPassword/{token} [patch]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sess, err := h.service.ResetPassword(c.Request().Context(), ports.ResetPasswordInput{
		Token:              c.Param("token"),
		NewPassword:        req.Password,
		NewPasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, sess)
}

// UpdatePassword changes the password of the logged-in account.
//
// @Summary      Change password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updatePasswordRequest  true  "Current and new password"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  statusResponse
// @Failure      401   {object}  statusResponse
// @Router       /api/v1/users/updatePassword [patch]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	acc, err := mustAccount(c)
	if err != nil {
		return err
	}

	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return invalidBody()
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sess, err := h.service.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		AccountID:          acc.ID,
		CurrentPassword:    req.PasswordCurrent,
		NewPassword:        req.Password,
		NewPasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, sess)
}

// Session reports who is logged in, if anyone. It never fails on a bad
// session; the caller simply gets a null user.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  userResponse
// @Router       /api/v1/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	acc, _ := AccountFrom(c)
	return c.JSON(http.StatusOK, userResponse{Status: "success", Data: userData{User: publicOf(acc)}})
}

func (h *AuthHandler) sendSession(c echo.Context, status int, sess *ports.Session) error {
	c.SetCookie(sessionCookie(c, sess.Token, h.now().Add(h.cookieTTL)))
	return c.JSON(status, sessionResponse{
		Status: "success",
		Token:  sess.Token,
		Data:   userData{User: publicOf(sess.Account)},
	})
}

// mustAccount returns the authenticated account or an internal error when
// the route was mounted without the Authenticate guard.
func mustAccount(c echo.Context) (*domain.Account, error) {
	acc, ok := AccountFrom(c)
	if !ok {
		return nil, errNoAccount(c)
	}
	return acc, nil
}
