package sui

import "github.com/mr-tron/base58"

// digestLen is the byte length of a Sui transaction digest.
const digestLen = 32

// ValidDigest reports whether s is a base58-encoded 32-byte transaction digest.
func ValidDigest(s string) bool {
	if s == "" {
		return false
	}
	b, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(b) == digestLen
}
