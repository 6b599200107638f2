package models

import "time"

// Account is a snapshot of an account's balance. Callers never hold a
// reference into store state, only copies like this one.
type Account struct {
	ID        string    `json:"id"`
	Balance   Amount    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}
