package types

import (
	"time"

	"github.com/google/uuid"
)

type Favorite struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_practice;column:user_id" json:"user_id"`
	PracticeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_practice;column:practice_id" json:"practice_id"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Favorite) TableName() string {
	return "favorite"
}
