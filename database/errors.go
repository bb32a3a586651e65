package database

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/runemaster/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"driver: bad connection",
	"database is closed",
	"unable to open database file",
}

var duplicatePatterns = []string{
	"unique constraint failed",
	"duplicate key",
}

var retryablePatterns = []string{
	"deadlock",
	"database is locked",
	"database table is locked",
	"too many connections",
}

func containsAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError reports whether err looks like a lost or refused connection.
func IsConnectionError(err error) bool {
	return containsAny(err, connectionPatterns)
}

// IsRetryableError reports whether a retry might succeed.
func IsRetryableError(err error) bool {
	return IsConnectionError(err) || containsAny(err, retryablePatterns)
}

// IsNotFoundError checks for GORM's record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError checks for a duplicate-key violation, translated or raw.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || containsAny(err, duplicatePatterns)
}

// FromDatabase converts a database error to an AppError. resource names the
// record kind and id the key involved, if any.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if ae, ok := apperrors.AsAppError(err); ok {
		return ae
	}

	switch {
	case IsNotFoundError(err):
		return apperrors.NotFound(resource, id).WithCause(err)
	case IsDuplicateError(err):
		return apperrors.AlreadyExists(resource).WithCause(err)
	case IsConnectionError(err):
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeDatabaseError,
			Message:    "Database is temporarily unavailable. Please try again.",
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
		}).WithCause(err)
	case IsRetryableError(err):
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeDatabaseError,
			Message:    fmt.Sprintf("Database operation on %s failed. Please try again.", resource),
			HTTPStatus: http.StatusServiceUnavailable,
			Retryable:  true,
		}).WithCause(err)
	}
	return apperrors.DatabaseError(err)
}
