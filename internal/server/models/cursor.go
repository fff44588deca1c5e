package models

import "time"

type SyncCursor struct {
	DeviceID       string
	VaultID        string
	LastAppliedSeq int64
	UpdatedAt      time.Time
}
