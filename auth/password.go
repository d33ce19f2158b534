package auth

import (
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jmcleod/gatehouse/internal/util"
)

// PBKDF2-HMAC-SHA512 parameters. Changing these invalidates every
// stored hash, so they are fixed rather than configurable.
const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 64
	pbkdf2SaltLen    = 16
)

// MaxPasswordLen bounds password input before any derivation work.
const MaxPasswordLen = 256

// HashPassword derives a PBKDF2 hash of password under a fresh random
// salt and returns it in hex(salt):hex(key) form. The password is
// NFKD-normalized first so the same passphrase typed on different
// platforms produces the same derivation input.
func HashPassword(password string) (string, error) {
	salt, err := util.RandomBytes(pbkdf2SaltLen)
	if err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(util.Normalize(password)), salt, pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return util.HexEncode(salt) + ":" + util.HexEncode(key), nil
}

// VerifyPassword re-derives password under the salt embedded in stored
// and compares in constant time. Malformed stored values verify false
// rather than erroring; the caller cannot act on the distinction anyway.
func VerifyPassword(password, stored string) bool {
	saltHex, keyHex, ok := strings.Cut(stored, ":")
	if !ok || strings.Contains(keyHex, ":") {
		return false
	}
	salt, err := util.HexDecode(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := util.HexDecode(keyHex)
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(util.Normalize(password)), salt, pbkdf2Iterations, len(want), sha512.New)
	defer util.WipeBytes(got)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// IsHashed reports whether value is structurally a salt:key hash:
// exactly one colon with non-empty hex on both sides. It deliberately
// does not check lengths so hashes produced under older parameters
// still count as hashed.
func IsHashed(value string) bool {
	saltHex, keyHex, ok := strings.Cut(value, ":")
	if !ok || strings.Contains(keyHex, ":") {
		return false
	}
	if saltHex == "" || keyHex == "" {
		return false
	}
	if _, err := util.HexDecode(saltHex); err != nil {
		return false
	}
	if _, err := util.HexDecode(keyHex); err != nil {
		return false
	}
	return true
}
