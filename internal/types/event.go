package types

import (
	"time"

	"github.com/google/uuid"
)

// Event is a scheduled calendar entry (a live class, a group session).
type Event struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title           string    `gorm:"not null;column:title" json:"title"`
	Description     string    `gorm:"column:description" json:"description"`
	StartsAt        time.Time `gorm:"not null;index;column:starts_at" json:"starts_at"`
	DurationSeconds int       `gorm:"not null;default:0;column:duration_seconds" json:"duration_seconds"`
	LocationURL     string    `gorm:"column:location_url" json:"location_url,omitempty"`
	DisplayOrder    int       `gorm:"not null;default:0;column:display_order" json:"display_order"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Event) TableName() string {
	return "event"
}
