// Package models defines server-side data models persisted in the database.
package models

import "time"

type Vault struct {
	ID         string
	Owner      string
	Name       string
	CurrentSeq int64
	CreatedAt  time.Time
}
