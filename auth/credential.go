package auth

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// AdminCredential holds the configured admin password hash inside a
// memguard enclave so the hash is encrypted at rest in process memory
// and only decrypted for the duration of a comparison.
type AdminCredential struct {
	enclave *memguard.Enclave
}

// NewAdminCredential seals stored into an enclave. It refuses values
// that are not in hashed form; the service must never hold a plaintext
// admin password.
func NewAdminCredential(stored string) (*AdminCredential, error) {
	if !IsHashed(stored) {
		return nil, ErrCredentialNotHashed
	}
	return &AdminCredential{enclave: memguard.NewEnclave([]byte(stored))}, nil
}

// Verify opens the enclave and checks password against the sealed hash.
// An open failure is an operational error, distinct from a wrong
// password, so the caller can fail closed with a server error.
func (c *AdminCredential) Verify(password string) (bool, error) {
	buf, err := c.enclave.Open()
	if err != nil {
		return false, fmt.Errorf("opening credential enclave: %w", err)
	}
	defer buf.Destroy()
	return VerifyPassword(password, string(buf.Bytes())), nil
}
