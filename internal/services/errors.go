package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "pixelforge/pkg/errors"
)

func badRequest(message string) error {
	return apperrors.New(apperrors.ErrCodeBadRequest, message)
}

func validationError(message string) error {
	return apperrors.New(apperrors.ErrCodeValidation, message)
}

func unauthorized(message string) error {
	return apperrors.New(apperrors.ErrCodeUnauthorized, message)
}

func forbidden(message string) error {
	return apperrors.New(apperrors.ErrCodeForbidden, message)
}

func notFound(message string) error {
	return apperrors.New(apperrors.ErrCodeNotFound, message)
}

func conflict(message string) error {
	return apperrors.New(apperrors.ErrCodeConflict, message)
}

func locked(message string) error {
	return apperrors.New(apperrors.ErrCodeLocked, message)
}

func internalError(message string, err error) error {
	return apperrors.Wrap(apperrors.ErrCodeInternalError, message, err)
}

// lookupError turns a gorm lookup failure into a 404 or a wrapped internal error.
func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what + " not found")
	}
	return internalError("failed to load "+what, err)
}

// isDuplicateKey reports whether err is a unique-index violation. The SQLite
// driver does not translate errors, so the message is checked as well.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
