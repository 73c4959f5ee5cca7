package tools

import (
	"crypto/sha512"
	"encoding/hex"
)

// EncryptTextSHA512 returns the hex SHA-512 digest of text.
func EncryptTextSHA512(text string) string {
	sum := sha512.Sum512([]byte(text))
	return hex.EncodeToString(sum[:])
}
