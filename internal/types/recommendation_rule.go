package types

import (
	"time"

	"github.com/google/uuid"
)

// RecommendationRule is one row of the matching table: criteria on the left,
// a candidate practice with a priority weight on the right. PracticeType is
// the only required criterion; nil columns match anything.
type RecommendationRule struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PracticeType       string    `gorm:"not null;index;column:practice_type" json:"practice_type"`
	Goal               *string   `gorm:"column:goal" json:"goal,omitempty"`
	Approach           *string   `gorm:"column:approach" json:"approach,omitempty"`
	MinDurationSeconds *int      `gorm:"column:min_duration_seconds" json:"min_duration_seconds,omitempty"`
	MaxDurationSeconds *int      `gorm:"column:max_duration_seconds" json:"max_duration_seconds,omitempty"`
	PracticeID         uuid.UUID `gorm:"type:uuid;not null;index;column:practice_id" json:"practice_id"`
	Priority           int       `gorm:"not null;default:0;column:priority" json:"priority"`
	CreatedAt          time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RecommendationRule) TableName() string {
	return "recommendation_rule"
}
