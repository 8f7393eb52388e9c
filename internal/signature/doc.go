// Package signature derives and checks time-bucketed request signatures.
//
// A signature is the hex digest of secret + "::" + bucket, where bucket is the
// first eight decimal characters of a millisecond timestamp. Every timestamp
// sharing those eight characters yields the same signature, so a signature
// stays valid for the rest of its bucket (100 seconds for 13-digit
// timestamps). Both the signing client and the verifying gateway must agree on
// the bucket rule and the Algorithm.
package signature
