package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key builds a cache key from a namespace and a request identity. The
// identity is hashed so arbitrary query input never leaks into key
// space verbatim.
func Key(namespace, identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return namespace + ":" + hex.EncodeToString(sum[:])
}
