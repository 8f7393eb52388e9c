package signature

import (
	"crypto/md5"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrUnknownAlgorithm is returned by ParseAlgorithm for unrecognized names.
var ErrUnknownAlgorithm = errors.New("unknown signature algorithm")

// Algorithm selects the digest used to derive signatures.
type Algorithm string

const (
	// SHA256 produces 64 hex characters. It is the default.
	SHA256 Algorithm = "sha256"
	// MD5 produces 32 hex characters and matches gateways still running the
	// original 128-bit scheme.
	MD5 Algorithm = "md5"
	// BLAKE3 produces 64 hex characters.
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm maps a configuration value to an Algorithm. Matching is
// case-insensitive; an empty string selects SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", SHA256:
		return SHA256, nil
	case MD5:
		return MD5, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// HexLen returns the length of a signature produced by a.
func (a Algorithm) HexLen() int {
	return a.newHash().Size() * 2
}

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	return string(a)
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}
