package util

import (
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKD normalization so that visually identical passwords
// typed on different platforms derive the same key.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
