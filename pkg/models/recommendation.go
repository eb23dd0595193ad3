package models

import (
	"time"

	"github.com/google/uuid"
)

type Recommendation struct {
	Rank               int       `json:"rank"`
	ActivityID         uuid.UUID `json:"activity_id"`
	ActivityName       string    `json:"activity_name"`
	ConfidenceScore    float64   `json:"confidence_score"`
	RawScore           float64   `json:"raw_score"`
	MatchingCategories []string  `json:"matching_categories"`
	IsBest             bool      `json:"is_best"`
}

type UserRecommendations struct {
	UserID          uuid.UUID        `json:"user_id"`
	Name            string           `json:"name"`
	Handle          string           `json:"handle"`
	PhotoURL        *string          `json:"photo_url,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

type RecommendationResponse struct {
	Users       []UserRecommendations `json:"users"`
	GeneratedAt time.Time             `json:"generated_at"`
	CacheHit    bool                  `json:"cache_hit"`
}

type GenerateResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	JobID   *uuid.UUID `json:"job_id,omitempty"`
	Users   int        `json:"users,omitempty"`
}
