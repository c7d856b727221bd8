package types

import (
	"time"

	"github.com/google/uuid"
)

// MediaType mirrors the player's backend selection: video plays through the
// embed, audio through a native element, timer through the countdown.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
	MediaTimer MediaType = "timer"
)

// Practice is one playable unit of content. The locator that matters depends
// on MediaType: EmbedID for video, FileURL for audio; timer practices need
// neither.
type Practice struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CategoryID      *uuid.UUID `gorm:"type:uuid;index;column:category_id" json:"category_id,omitempty"`
	Title           string     `gorm:"not null;column:title" json:"title"`
	Description     string     `gorm:"column:description" json:"description"`
	PracticeType    string     `gorm:"not null;index;column:practice_type" json:"practice_type"`
	MediaType       MediaType  `gorm:"not null;column:media_type" json:"media_type"`
	EmbedID         string     `gorm:"column:embed_id" json:"embed_id,omitempty"`
	FileURL         string     `gorm:"column:file_url" json:"file_url,omitempty"`
	ThumbnailURL    string     `gorm:"column:thumbnail_url" json:"thumbnail_url,omitempty"`
	BackgroundURL   string     `gorm:"column:background_url" json:"background_url,omitempty"`
	DurationSeconds int        `gorm:"not null;default:0;column:duration_seconds" json:"duration_seconds"`
	DisplayOrder    int        `gorm:"not null;default:0;column:display_order" json:"display_order"`
	CreatedAt       time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Practice) TableName() string {
	return "practice"
}
