package model

import "time"

// Principal is the caller identity established from a verified bearer token.
type Principal struct {
	Subject   string
	Email     string
	Groups    []string
	ExpiresAt time.Time
}
