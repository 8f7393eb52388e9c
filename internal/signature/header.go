package signature

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// HeaderTimestamp carries the signed millisecond timestamp. The signature
// itself travels as a bearer token in the Authorization header.
const HeaderTimestamp = "X-Timestamp"

const bearerPrefix = "Bearer "

// ErrMissingSignature is returned by FromHeader when no bearer token is present.
var ErrMissingSignature = errors.New("missing signature")

// SetHeader writes sig and timestampMs onto h in the form FromHeader reads.
func SetHeader(h http.Header, sig string, timestampMs int64) {
	h.Set("Authorization", bearerPrefix+sig)
	h.Set(HeaderTimestamp, strconv.FormatInt(timestampMs, 10))
}

// FromHeader extracts the signature and timestamp from h. hasTimestamp is
// false when the timestamp header is absent, which legacy clients that sign
// their own clock reading and send only the signature rely on.
func FromHeader(h http.Header) (sig string, timestampMs int64, hasTimestamp bool, err error) {
	auth := h.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", 0, false, ErrMissingSignature
	}
	sig = strings.TrimPrefix(auth, bearerPrefix)
	if sig == "" {
		return "", 0, false, ErrMissingSignature
	}

	raw := h.Get(HeaderTimestamp)
	if raw == "" {
		return sig, 0, false, nil
	}

	timestampMs, err = ParseTimestamp(raw)
	if err != nil {
		return "", 0, false, err
	}
	return sig, timestampMs, true, nil
}
