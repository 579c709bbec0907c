package storage

import (
	"errors"
	"strings"

	"iochunt/core"
)

var (
	// ErrNotFound is the generic "not found" error; typed NotFoundErrors match it too
	ErrNotFound = core.ErrNotFound

	// ErrDuplicateIndicator is returned when an indicator with the same kind and value exists in the org
	ErrDuplicateIndicator = errors.New("indicator already exists")
)

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
