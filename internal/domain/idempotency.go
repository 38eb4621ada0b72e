// Package domain defines the data model of the profile screen backend.
// This file holds the only locally persisted type: idempotency records used
// to make the order-cancel endpoint safe to retry.
package domain

import "time"

// Idempotency records the outcome of a previously processed cancel request,
// keyed by (user_id, order_id, key). Replaying the same key within the TTL
// returns the recorded outcome without re-executing side effects, so a retry
// can never produce a second notification or chat broadcast for the same
// cancellation.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_order_key,priority:1"`
	OrderID   string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_order_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_order_key,priority:3"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
