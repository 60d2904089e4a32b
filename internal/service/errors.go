package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOrganizationNotFound is returned when an organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrGroupNotFound is returned when a group does not exist.
	ErrGroupNotFound = errors.New("group not found")
	// ErrEntryNotFound is returned when an entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrBackupNotFound is returned when an entry has no backup for the requested version.
	ErrBackupNotFound = errors.New("entry backup not found")
	// ErrFileNotFound is returned when an entry has no attached file.
	ErrFileNotFound = errors.New("entry has no attached file")
	// ErrForbidden is returned when the caller does not own the entry it tries to change.
	ErrForbidden = errors.New("only the owner of an entry can change it")
	// ErrVersionMismatch is returned when an update is not based on the current version.
	ErrVersionMismatch = errors.New("version mismatch, expected the current version + 1 or -1 to overwrite")
	// ErrEntryContentCorrupted is returned when a stored body cannot be decoded.
	ErrEntryContentCorrupted = errors.New("entry content is corrupted")
)

// ValidationError reports a request field that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return nil
}

// validateEntryName rejects names that could never appear inside a [[...]] token.
func validateEntryName(name string) error {
	if err := validateRequired("name", name); err != nil {
		return err
	}
	if strings.ContainsAny(name, "[]") {
		return &ValidationError{Field: "name", Message: "name cannot contain square brackets"}
	}
	if strings.ContainsAny(name, "\r\n") {
		return &ValidationError{Field: "name", Message: "name must be a single line"}
	}
	return nil
}
