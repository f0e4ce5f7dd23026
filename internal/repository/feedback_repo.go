package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

// FeedbackRepository persists completed feedback cycles.
type FeedbackRepository interface {
	Save(ctx context.Context, submission *models.FeedbackSubmission) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.FeedbackSubmission, error)
	GetByToken(ctx context.Context, sessionID string, token uint64) (models.FeedbackSubmission, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs a feedback repository backed by GORM.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Save(ctx context.Context, submission *models.FeedbackSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *feedbackRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.FeedbackSubmission, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	var submissions []models.FeedbackSubmission
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Preload("Points", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("token DESC").
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *feedbackRepository) GetByToken(ctx context.Context, sessionID string, token uint64) (models.FeedbackSubmission, error) {
	var submission models.FeedbackSubmission
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND token = ?", sessionID, token).
		Preload("Points", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&submission).Error
	if err != nil {
		return models.FeedbackSubmission{}, err
	}
	return submission, nil
}
