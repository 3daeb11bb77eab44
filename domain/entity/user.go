package entity

import (
	"errors"
	"strings"
)

// TrustLevel is the clearance a registered client holds. Only TrustLevelHigh
// carries a per-user credential.
type TrustLevel int

const (
	TrustLevelBasic    TrustLevel = 1
	TrustLevelStandard TrustLevel = 2
	TrustLevelHigh     TrustLevel = 3
)

var (
	ErrEmptyUserID          = errors.New("user ID cannot be empty")
	ErrInvalidTrustLevel    = errors.New("trust level must be between 1 and 3")
	ErrMissingCredential    = errors.New("trust level 3 requires a credential")
	ErrUnexpectedCredential = errors.New("credential is only allowed for trust level 3")
)

// User is an entry of the static client registry.
type User struct {
	ID         string     `json:"id"`
	TrustLevel TrustLevel `json:"trust_level"`
	Credential string     `json:"-"`
}

func NewUser(id string, level TrustLevel, credential string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyUserID
	}
	if level < TrustLevelBasic || level > TrustLevelHigh {
		return nil, ErrInvalidTrustLevel
	}
	credential = strings.TrimSpace(credential)
	if level == TrustLevelHigh && credential == "" {
		return nil, ErrMissingCredential
	}
	if level != TrustLevelHigh && credential != "" {
		return nil, ErrUnexpectedCredential
	}
	return &User{
		ID:         id,
		TrustLevel: level,
		Credential: credential,
	}, nil
}

// RequiresCredential reports whether requests from u go through the credential check.
func (u *User) RequiresCredential() bool {
	return u.TrustLevel == TrustLevelHigh
}

// NormalizeCredential trims surrounding whitespace and lower-cases s so that
// memo and stored credential compare on equal terms.
func NormalizeCredential(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CredentialMatches reports whether memo carries exactly the user's credential.
func (u *User) CredentialMatches(memo string) bool {
	if !u.RequiresCredential() {
		return true
	}
	return NormalizeCredential(memo) == NormalizeCredential(u.Credential)
}
