package auth

import "github.com/jmcleod/gatehouse/internal/util"

const (
	tokenBytes  = 32
	tokenHexLen = tokenBytes * 2
)

// newToken mints a 256-bit random token as lowercase hex.
func newToken() (string, error) {
	b, err := util.RandomBytes(tokenBytes)
	if err != nil {
		return "", err
	}
	return util.HexEncode(b), nil
}

// validTokenFormat reports whether s looks like a token minted by
// newToken. Stores reject malformed input up front so lookups never
// touch the map with attacker-shaped keys.
func validTokenFormat(s string) bool {
	if len(s) != tokenHexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
