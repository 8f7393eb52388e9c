package model

// Stamp is the (timestamp, signature) pair a client attaches to a proxy request.
type Stamp struct {
	Timestamp int64
	Signature string
}
