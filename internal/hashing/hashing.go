// Package hashing is the content hash primitive used for source, dependency
// and cache-key digests. Digests are hex-encoded sha256, stable across
// processes and platforms.
package hashing

import (
	_ "crypto/sha256" // registers the digest.Canonical algorithm
	"encoding/binary"

	"github.com/opencontainers/go-digest"
)

// Sum returns the digest of the concatenation of parts.
func Sum(parts ...[]byte) string {
	digester := digest.Canonical.Digester()
	h := digester.Hash()
	for _, p := range parts {
		h.Write(p)
	}
	return digester.Digest().Encoded()
}

// SumStrings returns the digest of a sequence of strings. Each element is
// length-prefixed so ["ab", "c"] and ["a", "bc"] hash differently.
func SumStrings(parts ...string) string {
	digester := digest.Canonical.Digester()
	h := digester.Hash()
	var prefix [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(p)))
		h.Write(prefix[:])
		h.Write([]byte(p))
	}
	return digester.Digest().Encoded()
}

// Verify reports whether data hashes to want.
func Verify(want string, data []byte) bool {
	d := digest.NewDigestFromEncoded(digest.Canonical, want)
	if err := d.Validate(); err != nil {
		return false
	}
	verifier := d.Verifier()
	verifier.Write(data)
	return verifier.Verified()
}
