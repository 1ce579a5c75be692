package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(format string, args ...any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf(format, args...), nil)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// notFound turns a missing row into a 404 carrying the entity's message and
// passes every other error through.
func notFound(err error, message string) error {
	if isNoRows(err) {
		return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
	}
	return err
}
