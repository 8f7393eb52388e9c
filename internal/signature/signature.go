package signature

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// BucketDigits is the number of leading decimal characters of a timestamp
// that take part in the signature.
const BucketDigits = 8

// separator joins the secret and the bucket before hashing.
const separator = "::"

// ErrInvalidTimestamp is returned by ParseTimestamp for values that are not
// base-10 integers.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Engine signs and verifies with a fixed Algorithm. The zero value uses SHA256.
// Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	Algorithm Algorithm
}

// New returns an Engine using alg.
func New(alg Algorithm) Engine {
	return Engine{Algorithm: alg}
}

// Sign returns the lowercase hex signature of secret for the bucket containing
// timestampMs. The secret is not validated; an empty secret still signs.
func (e Engine) Sign(secret string, timestampMs int64) string {
	h := e.algorithm().newHash()
	_, _ = io.WriteString(h, secret+separator+Bucket(timestampMs))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether sig is exactly the signature of secret for the bucket
// containing timestampMs. Comparison is case-sensitive and constant time; an
// empty sig never verifies.
func (e Engine) Verify(sig, secret string, timestampMs int64) bool {
	if sig == "" {
		return false
	}
	want := e.Sign(secret, timestampMs)
	return subtle.ConstantTimeCompare([]byte(sig), []byte(want)) == 1
}

func (e Engine) algorithm() Algorithm {
	if e.Algorithm == "" {
		return SHA256
	}
	return e.Algorithm
}

var defaultEngine Engine

// Sign signs with the default SHA256 engine.
func Sign(secret string, timestampMs int64) string {
	return defaultEngine.Sign(secret, timestampMs)
}

// Verify verifies with the default SHA256 engine.
func Verify(sig, secret string, timestampMs int64) bool {
	return defaultEngine.Verify(sig, secret, timestampMs)
}

// Bucket returns the first BucketDigits characters of the base-10 form of
// timestampMs. Shorter representations are used whole, and a leading minus
// sign counts as a character.
func Bucket(timestampMs int64) string {
	s := strconv.FormatInt(timestampMs, 10)
	if len(s) <= BucketDigits {
		return s
	}
	return s[:BucketDigits]
}

// Window returns the inclusive range of timestamps with the same decimal
// length as timestampMs that share its bucket. Buckets are compared as
// strings, so a shorter timestamp can carry the same bucket (Bucket(10000000)
// equals Bucket(100000000)) without falling inside the range. Timestamps with
// BucketDigits characters or fewer form a bucket of their own. The range is
// clamped to the int64 limits.
func Window(timestampMs int64) (start, end int64) {
	s := strconv.FormatInt(timestampMs, 10)
	dropped := len(s) - BucketDigits
	if dropped <= 0 {
		return timestampMs, timestampMs
	}

	width := pow10(dropped)
	if timestampMs >= 0 {
		start = timestampMs - timestampMs%width
		if math.MaxInt64-start < width-1 {
			return start, math.MaxInt64
		}
		return start, start + width - 1
	}
	// Negative values truncate toward zero, so the bucket extends downward.
	end = timestampMs - timestampMs%width
	if end-math.MinInt64 < width-1 {
		return math.MinInt64, end
	}
	return end - width + 1, end
}

// Width returns the duration covered by Window(timestampMs).
func Width(timestampMs int64) time.Duration {
	start, end := Window(timestampMs)
	return time.Duration(end-start+1) * time.Millisecond
}

// Now returns t as milliseconds since the Unix epoch, the timestamp unit every
// signature is computed over.
func Now(t time.Time) int64 {
	return t.UnixMilli()
}

// ParseTimestamp parses a decimal millisecond timestamp as sent on the wire.
func ParseTimestamp(s string) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return ts, nil
}

func pow10(n int) int64 {
	p := int64(1)
	for range n {
		p *= 10
	}
	return p
}
