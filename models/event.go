package models

import "time"

// Event is a webhook delivery archived verbatim for diagnostics.
// Rows are append-only; nothing in the relay reads them back except the
// admin listing endpoints.
type Event struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	PayloadHash string     `gorm:"not null;index" json:"payload_hash"`
	ContentType string     `gorm:"default:''" json:"content_type"`
	Payload     string     `gorm:"type:text" json:"payload"`
	CreatedAt   *time.Time `gorm:"index" json:"created_at"`
}
