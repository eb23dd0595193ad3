package models

import (
	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Name     string    `json:"name" db:"nama_lengkap"`
	Handle   string    `json:"handle" db:"username"`
	PhotoURL *string   `json:"photo_url,omitempty" db:"foto_url"`
	IsAdmin  bool      `json:"is_admin" db:"is_admin"`
}

// Rating is a user's explicit score for one activity.
type Rating struct {
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	ActivityID uuid.UUID `json:"activity_id" db:"ekskul_id"`
	Rating     int       `json:"rating" db:"rating"`
}

// Response is a user's answer to one questionnaire question.
type Response struct {
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	QuestionID int64     `json:"question_id" db:"question_id"`
	Score      int       `json:"score" db:"score"`
}

type UserHistory struct {
	User      User                  `json:"user"`
	Responses []ResponseHistoryItem `json:"responses"`
	Ratings   []RatingHistoryItem   `json:"ratings"`
}

type ResponseHistoryItem struct {
	QuestionID   int64  `json:"question_id"`
	Score        int    `json:"score"`
	QuestionText string `json:"question_text"`
}

type RatingHistoryItem struct {
	ActivityID   uuid.UUID `json:"activity_id"`
	Rating       int       `json:"rating"`
	ActivityName string    `json:"activity_name"`
}
