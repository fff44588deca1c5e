package models

import "time"

// KeyEnvelope holds a vault key encrypted for one device. The core treats
// EncryptedVaultKey as an opaque string.
type KeyEnvelope struct {
	VaultID           string
	DeviceID          string
	Version           int64
	EncryptedVaultKey string
	CreatedAt         time.Time
}
