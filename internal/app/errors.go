package app

import (
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

func errInvalidIdentifier(id string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_IDENTIFIER", "Invalid identifier", map[string]any{"id": id})
}

func errNotFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func errInvalidTransition(from, to string) *DomainError {
	return domainError(http.StatusConflict, "INVALID_TRANSITION",
		fmt.Sprintf("Cannot transition message from %s to %s", from, to),
		map[string]any{"from": from, "to": to})
}

func errDraftUnavailable(err error) *DomainError {
	return domainError(http.StatusBadGateway, "DRAFT_UNAVAILABLE", "Reply drafting is unavailable", map[string]any{"reason": err.Error()})
}

func errStorageUnavailable(err error) *DomainError {
	return domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Storage is unavailable", map[string]any{"reason": err.Error()})
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}
