package models

import "time"

// Model is the common base of all persisted entities.
// Entities are hard deleted; there is no soft delete column.
type Model struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
