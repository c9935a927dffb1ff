// Package domain contains entity and identifier types without logic beyond
// validation, shared by every other package.
package domain

import "errors"

const MaxUserIDLen = 36

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

type UserID string

// ValidateUserID checks the shape of an externally supplied identity.
// The relay never verifies that the identity exists; that is the
// authentication collaborator's job.
func ValidateUserID(id UserID) error {
	if len(id) == 0 {
		return ErrIdentityEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrIdentityTooLong
	}
	return nil
}
