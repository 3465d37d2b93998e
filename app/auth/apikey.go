package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"

	"ugc-forge/app/utils"
)

// KeySet holds the api keys accepted on webhook endpoints. Several keys can be
// valid at the same time so a key can be rotated without downtime.
type KeySet struct {
	mu sync.RWMutex
	// plain keys are kept as SHA-256 digests so every comparison has the same length
	plain  [][sha256.Size]byte
	hashed []string
}

func NewKeySet(keys []string) *KeySet {
	k := &KeySet{}
	k.Replace(keys)
	return k
}

// Replace swaps the accepted keys atomically.
func (k *KeySet) Replace(keys []string) {
	var plain [][sha256.Size]byte
	var hashed []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if utils.IsBcryptHash(key) {
			hashed = append(hashed, key)
		} else {
			plain = append(plain, sha256.Sum256([]byte(key)))
		}
	}

	k.mu.Lock()
	k.plain = plain
	k.hashed = hashed
	k.mu.Unlock()
}

// Valid reports whether presented matches any configured key.
func (k *KeySet) Valid(presented string) bool {
	if presented == "" {
		return false
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	p := sha256.Sum256([]byte(presented))
	match := 0
	for _, key := range k.plain {
		match |= subtle.ConstantTimeCompare(p[:], key[:])
	}
	if match == 1 {
		return true
	}
	for _, hash := range k.hashed {
		if utils.VerifyAPIKey(presented, hash) {
			return true
		}
	}
	return false
}

func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.plain) + len(k.hashed)
}
