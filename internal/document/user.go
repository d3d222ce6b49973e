package document

import (
	"fmt"

	"github.com/hseops/fieldsafe/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// User is the payload of a user document. Accounts propagate between devices
// like any other document; the password travels only as a bcrypt hash.
type User struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
}

// DocumentType implements Payload.
func (User) DocumentType() Type { return TypeUser }

// Validate checks required fields.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("%w: missing username", common.ErrInvalidPayload)
	}
	if u.Name == "" {
		return fmt.Errorf("%w: missing name", common.ErrInvalidPayload)
	}
	return nil
}

// SetPassword stores a bcrypt hash of the given password.
func (u *User) SetPassword(password string) error {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = string(h)
	return nil
}

// VerifyPassword compares the stored hash against a candidate password.
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
