// Package apperr defines the error kinds surfaced by the clinic services
// and their mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error kinds. Services wrap one of these with a message; callers test with
// errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrExport     = errors.New("export failed")
)

type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.err }

func newKind(kind error, format string, args ...interface{}) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newKind(ErrNotFound, format, args...)
}

func Validation(format string, args ...interface{}) error {
	return newKind(ErrValidation, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newKind(ErrConflict, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newKind(ErrForbidden, format, args...)
}

// Export wraps the underlying cause of a failed document export.
func Export(cause error, format string, args ...interface{}) error {
	return &kindError{kind: ErrExport, msg: fmt.Sprintf(format, args...), err: cause}
}

// HTTP converts err into an echo.HTTPError with a status matching its kind.
func HTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrExport):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
