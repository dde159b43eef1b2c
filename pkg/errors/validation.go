package errors

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ValidatePath validates a file path given on the command line or in the
// configuration file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}

// ValidateSessionID checks that id is a canonical UUID as issued by the
// editor session manager.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid session id")
	}
	if parsed.String() != strings.ToLower(id) {
		return New(ErrCodeInvalidInput, "session id must be in canonical form")
	}
	return nil
}

// ValidatePerspectiveName rejects names that cannot have come from a
// document: control characters and absurd lengths.
func ValidatePerspectiveName(name string) error {
	const maxNameLength = 256
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidInput, "perspective name too long (max %d characters)", maxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "perspective name contains invalid control characters")
		}
	}
	return nil
}
