package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natours/tours-api/internal/core/domain"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "jwt"

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type userData struct {
	User *domain.PublicAccount `json:"user"`
}

type userResponse struct {
	Status string   `json:"status"`
	Data   userData `json:"data"`
}

type sessionResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   userData `json:"data"`
}

type listData struct {
	Users []domain.PublicAccount `json:"users"`
}

type listResponse struct {
	Status     string   `json:"status"`
	Results    int      `json:"results"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"total_pages"`
	Data       listData `json:"data"`
}

func publicOf(acc *domain.Account) *domain.PublicAccount {
	if acc == nil {
		return nil
	}
	p := acc.Public()
	return &p
}

func invalidBody() error {
	return domain.Validation("Invalid request body")
}

// sessionCookie builds the session cookie. Secure follows the request
// scheme, which Echo also reads from X-Forwarded-Proto.
func sessionCookie(c echo.Context, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	}
}
