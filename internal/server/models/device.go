package models

import "time"

// Device ids are self-asserted by clients; PublicKey is stored opaque and
// never verified by the core.
type Device struct {
	ID          string
	Owner       string
	DisplayName string
	PublicKey   string
	LastSeenAt  time.Time
}
