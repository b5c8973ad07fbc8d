package domain

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindDelivery
)

// HTTPStatus maps a kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDelivery:
		return "delivery"
	default:
		return "internal"
	}
}

// Error is an operational error: its Message is safe to show to the caller.
// Anything that is not an *Error is treated as internal by the boundary.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind and message, so sentinel
// values below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func Validation(msg string) *Error     { return &Error{Kind: KindValidation, Message: msg} }
func Authentication(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }
func Authorization(msg string) *Error  { return &Error{Kind: KindAuthorization, Message: msg} }
func NotFound(msg string) *Error       { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error       { return &Error{Kind: KindConflict, Message: msg} }

// Delivery wraps a notification failure.
func Delivery(msg string, err error) *Error {
	return &Error{Kind: KindDelivery, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for non-operational errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrAccountNotFound     = NotFound("No account found with that ID")
	ErrEmailNotFound       = NotFound("There is no user with that email address")
	ErrIncorrectLogin      = Authentication("Incorrect email or password")
	ErrMissingLogin        = Validation("Please provide email and password")
	ErrPasswordMismatch    = Validation("Passwords do not match")
	ErrPasswordTooLong     = Validation("Password must be at most 72 bytes long")
	ErrWrongPassword       = Authentication("Your current password is wrong")
	ErrResetTokenInvalid   = Validation("Token is invalid or has expired")
	ErrPasswordFieldsInMe  = Validation("This route is not for password updates. Please use /updatePassword.")
	ErrAccountExists       = Conflict("An account with that email or username already exists")
	ErrNotLoggedIn         = Authentication("You are not logged in! Please log in to get access.")
	ErrSessionInvalid      = Authentication("Invalid or expired session. Please log in again.")
	ErrSessionAccountGone  = Authentication("The account belonging to this token no longer exists.")
	ErrSessionStale        = Authentication("Password was changed recently. Please log in again.")
	ErrForbidden           = Authorization("You do not have permission to perform this action")
	ErrResetDeliveryFailed = Delivery("There was an error sending the email. Try again later!", nil)
)
