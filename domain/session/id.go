// Package session defines external session identifiers and the stream
// handshake used to announce them.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// IDLength is the number of hex characters in a session id.
const IDLength = 32

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ErrInvalidID indicates a caller-supplied session id is malformed.
var ErrInvalidID = fmt.Errorf("%w: session id must be 32 lowercase hex characters", agent.ErrInvalidInput)

// Generate returns a fresh 32-hex-character session id.
func Generate() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValid reports whether id already is a canonical session id.
func IsValid(id string) bool {
	return idPattern.MatchString(id)
}

// ValidateOrGenerate returns the canonical form of id, or a fresh id when id
// is blank. Ids are trimmed and lower-cased before validation.
func ValidateOrGenerate(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Generate(), nil
	}
	if !IsValid(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return id, nil
}

// IsInvalidID reports whether err was caused by a malformed id.
func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}
