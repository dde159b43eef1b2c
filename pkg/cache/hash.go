package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// hashKey builds "prefix:sha256(json(parts))".
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return prefix + ":" + Hash(data)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// KeyType returns the entry type of a key built by a [Keyer], e.g. "layout"
// for "layout:ab12...". Scoped prefixes are skipped.
func KeyType(key string) string {
	for _, t := range []string{KeyTypeLayout, KeyTypeRender} {
		if strings.Contains(key, t+":") {
			return t
		}
	}
	return "unknown"
}
