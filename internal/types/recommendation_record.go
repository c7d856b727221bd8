package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RecommendationRecord is the append-only fact "this user was shown this
// practice for these criteria". Records are never updated or deleted; they
// accumulate over the user's lifetime and feed repeat avoidance.
type RecommendationRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	PracticeID uuid.UUID      `gorm:"type:uuid;not null;index;column:practice_id" json:"practice_id"`
	Criteria   datatypes.JSON `gorm:"column:criteria" json:"criteria"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (RecommendationRecord) TableName() string {
	return "recommendation_record"
}
