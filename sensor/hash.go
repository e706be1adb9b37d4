package sensor

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAddress returns the lowercase hex SHA-256 digest of a hardware address,
// exactly as the reporting tool printed it (separators included).
func HashAddress(address string) string {
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:])
}
