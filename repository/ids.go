package repository

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a short opaque unique string suitable as a row id: a v4 UUID
// with its hyphens stripped, giving 32 hex characters, exactly the width of
// the MySQL id column.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
