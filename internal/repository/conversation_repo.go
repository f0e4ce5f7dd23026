package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/coding-coach-api/internal/models"
)

// ConversationRepository persists follow-up questions about feedback points.
type ConversationRepository interface {
	Save(ctx context.Context, turn *models.ConversationTurn) error
	ListByPoint(ctx context.Context, sessionID, pointID string) ([]models.ConversationTurn, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Save(ctx context.Context, turn *models.ConversationTurn) error {
	return r.db.WithContext(ctx).Create(turn).Error
}

func (r *conversationRepository) ListByPoint(ctx context.Context, sessionID, pointID string) ([]models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND point_id = ?", sessionID, pointID).
		Order("created_at ASC, id ASC").
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}
