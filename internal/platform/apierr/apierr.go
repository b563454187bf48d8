package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps err onto an *Error, falling back to the sentinel classes and finally to 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
