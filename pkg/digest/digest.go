// Package digest implements content-addressed digests and the Merkle
// tree used to fingerprint a resolved input set (specification §4.1).
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest is an opaque content handle: a SHA-256 hash plus the size of
// the hashed byte sequence. Two digests are equal iff both fields
// match.
type Digest struct {
	Hash      string // 64 lowercase hex chars
	SizeBytes int64
}

// EmptyHash is the SHA-256 of the empty byte sequence, reused as the
// well-known empty-root directory digest.
var EmptyHash = hex.EncodeToString(sha256.New().Sum(nil))

// Bytes computes the digest of an in-memory byte sequence.
func Bytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest{Hash: hex.EncodeToString(sum[:]), SizeBytes: int64(len(b))}
}

// String renders the digest with the "sha256:" display prefix used
// externally (specification §3).
func (d Digest) String() string {
	return "sha256:" + d.Hash
}

// Equal reports whether two digests refer to the same content.
func (d Digest) Equal(o Digest) bool {
	return d.Hash == o.Hash && d.SizeBytes == o.SizeBytes
}

// IsZero reports whether d is the zero value (no content computed).
func (d Digest) IsZero() bool {
	return d.Hash == "" && d.SizeBytes == 0
}

// ShardPath returns the two-level shard path segments
// (<hash[0:2]>/<hash[2:4]>/<hash>) used for cache and blob storage
// layout (specification §3 "File blob").
func (d Digest) ShardPath() (string, string, string, error) {
	if len(d.Hash) < 4 {
		return "", "", "", fmt.Errorf("digest hash too short to shard: %q", d.Hash)
	}
	return d.Hash[0:2], d.Hash[2:4], d.Hash, nil
}
