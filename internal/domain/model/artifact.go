package model

import "time"

// Artifact is a completed research result kept in the history store.
// ID is assigned on save when empty.
type Artifact struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Question  string    `json:"question"`
	Report    string    `json:"report"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}
