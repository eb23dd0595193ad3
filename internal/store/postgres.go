package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/ekskulrec/pkg/models"
)

// DatabaseQuerier interface for database operations
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresStore reads users, ratings, responses, questions and activities
// from the application's PostgreSQL schema.
type PostgresStore struct {
	db     DatabaseQuerier
	logger *logrus.Logger
}

func NewPostgresStore(db DatabaseQuerier, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresStore) FetchUsers(ctx context.Context, nonAdminOnly bool) ([]models.User, error) {
	query := `
		SELECT id, nama_lengkap, username, foto_url, COALESCE(is_admin, false)
		FROM users`
	if nonAdminOnly {
		query += ` WHERE COALESCE(is_admin, false) = false`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Handle, &u.PhotoURL, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}

	return users, nil
}

func (s *PostgresStore) FetchRatings(ctx context.Context) ([]models.Rating, error) {
	query := `
		SELECT user_id, ekskul_id, rating
		FROM ratings
		WHERE user_id IS NOT NULL
			AND ekskul_id IS NOT NULL
			AND rating IS NOT NULL
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.UserID, &r.ActivityID, &r.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ratings: %w", err)
	}

	return ratings, nil
}

func (s *PostgresStore) FetchResponses(ctx context.Context) ([]models.Response, error) {
	query := `
		SELECT user_id, question_id, score
		FROM responses
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.UserID, &r.QuestionID, &r.Score); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}

	return responses, nil
}

// FetchQuestions returns every question. A NULL category reads as blank, and
// answers to blank-category questions are left out of profiles.
func (s *PostgresStore) FetchQuestions(ctx context.Context) ([]models.Question, error) {
	query := `
		SELECT id, COALESCE(text, ''), COALESCE(category, '')
		FROM questions
		ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Category); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	return questions, nil
}

// FetchActivities returns the catalog in table order, which is also the
// tie-break order for ranking.
func (s *PostgresStore) FetchActivities(ctx context.Context) ([]models.Activity, error) {
	query := `
		SELECT id, nama, COALESCE(kategori, '{}')
		FROM ekstrakurikuler
		ORDER BY created_at, id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.Categories); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", err)
	}

	return activities, nil
}

// FetchCategories lists the distinct questionnaire categories.
func (s *PostgresStore) FetchCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT category FROM questions
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}

	return categories, nil
}

// FetchUserHistory returns a user's questionnaire answers and activity ratings.
func (s *PostgresStore) FetchUserHistory(ctx context.Context, userID uuid.UUID) (*models.UserHistory, error) {
	history := &models.UserHistory{
		Responses: []models.ResponseHistoryItem{},
		Ratings:   []models.RatingHistoryItem{},
	}

	u := &history.User
	err := s.db.QueryRow(ctx, `
		SELECT id, nama_lengkap, username, foto_url, COALESCE(is_admin, false)
		FROM users
		WHERE id = $1`, userID).Scan(&u.ID, &u.Name, &u.Handle, &u.PhotoURL, &u.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	responseRows, err := s.db.Query(ctx, `
		SELECT r.question_id, r.score, COALESCE(q.text, '')
		FROM responses r
		JOIN questions q ON q.id = r.question_id
		WHERE r.user_id = $1
		ORDER BY r.question_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user responses: %w", err)
	}
	defer responseRows.Close()

	for responseRows.Next() {
		var item models.ResponseHistoryItem
		if err := responseRows.Scan(&item.QuestionID, &item.Score, &item.QuestionText); err != nil {
			return nil, fmt.Errorf("failed to scan user response: %w", err)
		}
		history.Responses = append(history.Responses, item)
	}
	if err := responseRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user responses: %w", err)
	}

	ratingRows, err := s.db.Query(ctx, `
		SELECT r.ekskul_id, r.rating, e.nama
		FROM ratings r
		JOIN ekstrakurikuler e ON e.id = r.ekskul_id
		WHERE r.user_id = $1
			AND r.rating IS NOT NULL
		ORDER BY r.rating DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ratings: %w", err)
	}
	defer ratingRows.Close()

	for ratingRows.Next() {
		var item models.RatingHistoryItem
		if err := ratingRows.Scan(&item.ActivityID, &item.Rating, &item.ActivityName); err != nil {
			return nil, fmt.Errorf("failed to scan user rating: %w", err)
		}
		history.Ratings = append(history.Ratings, item)
	}
	if err := ratingRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user ratings: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"responses": len(history.Responses),
		"ratings":   len(history.Ratings),
	}).Debug("User history loaded")

	return history, nil
}
