package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrJobNotFound = errors.New("job not found")

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"

	jobTTL = 24 * time.Hour
)

// JobProgress is the tracked state of one queued regeneration.
type JobProgress struct {
	JobID        uuid.UUID `json:"job_id"`
	Status       string    `json:"status"`
	RequestedBy  string    `json:"requested_by,omitempty"`
	Attempts     int       `json:"attempts"`
	Users        int       `json:"users,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JobManager records regeneration job state in Redis.
type JobManager struct {
	store  ResultCache
	logger *logrus.Logger
	now    func() time.Time
}

func NewJobManager(store ResultCache, logger *logrus.Logger) *JobManager {
	return &JobManager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func jobKey(jobID uuid.UUID) string {
	return "recommendation_job:" + jobID.String()
}

func (jm *JobManager) CreateJob(ctx context.Context, jobID uuid.UUID, requestedBy string) (*JobProgress, error) {
	now := jm.now().UTC()
	job := &JobProgress{
		JobID:       jobID,
		Status:      JobStatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := jm.save(ctx, job); err != nil {
		return nil, err
	}

	jm.logger.WithFields(logrus.Fields{
		"job_id":       jobID,
		"requested_by": requestedBy,
	}).Info("Job created")

	return job, nil
}

func (jm *JobManager) GetJob(ctx context.Context, jobID uuid.UUID) (*JobProgress, error) {
	data, err := jm.store.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job JobProgress
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

// StartAttempt marks the job as processing. Jobs unknown to the tracker
// (created before it was enabled, or expired) are recreated.
func (jm *JobManager) StartAttempt(ctx context.Context, jobID uuid.UUID) error {
	return jm.update(ctx, jobID, func(job *JobProgress) {
		job.Status = JobStatusProcessing
		job.Attempts++
		job.ErrorMessage = nil
	})
}

func (jm *JobManager) CompleteJob(ctx context.Context, jobID uuid.UUID, users int) error {
	return jm.update(ctx, jobID, func(job *JobProgress) {
		job.Status = JobStatusCompleted
		job.Users = users
	})
}

func (jm *JobManager) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string) error {
	return jm.update(ctx, jobID, func(job *JobProgress) {
		job.Status = JobStatusFailed
		job.ErrorMessage = &errorMessage
	})
}

func (jm *JobManager) update(ctx context.Context, jobID uuid.UUID, apply func(*JobProgress)) error {
	job, err := jm.GetJob(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		job = &JobProgress{JobID: jobID, CreatedAt: jm.now().UTC()}
	} else if err != nil {
		return err
	}

	apply(job)
	job.UpdatedAt = jm.now().UTC()

	if err := jm.save(ctx, job); err != nil {
		return err
	}

	jm.logger.WithFields(logrus.Fields{
		"job_id":   jobID,
		"status":   job.Status,
		"attempts": job.Attempts,
	}).Debug("Job progress updated")

	return nil
}

func (jm *JobManager) save(ctx context.Context, job *JobProgress) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := jm.store.Set(ctx, jobKey(job.JobID), data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job in Redis: %w", err)
	}
	return nil
}
