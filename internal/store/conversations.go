// Package store persists conversations and messages with gorm.
package store

import (
	"context"
	"time"

	"ripplechat/internal/chatid"
	"ripplechat/internal/metrics"
	"ripplechat/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, errors.Wrap(err, "convStore.Exists")
	}
	return n > 0, nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "convStore.Get")
	}
	return &c, nil
}

// GetOrCreate returns the conversation id for the pair, creating the row if
// needed. Concurrent callers converge on one row; isNew is true only for the
// caller whose insert took effect.
func (s *ConversationStore) GetOrCreate(ctx context.Context, uidA, uidB string) (string, bool, error) {
	id, err := chatid.Derive(uidA, uidB)
	if err != nil {
		return "", false, err
	}
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return "", false, err
	}
	if ok {
		return id, false, nil
	}

	a, b := uidA, uidB
	if b < a {
		a, b = b, a
	}
	conv := models.Conversation{ID: id, ParticipantA: a, ParticipantB: b}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(&conv)
	if res.Error != nil {
		return "", false, errors.Wrap(res.Error, "convStore.GetOrCreate")
	}
	isNew := res.RowsAffected == 1
	if isNew {
		metrics.ConversationsCreatedTotal.Inc()
	}
	return id, isNew, nil
}

// UpdateLastMessage overwrites both summary fields.
func (s *ConversationStore) UpdateLastMessage(ctx context.Context, id, text string, ts time.Time) error {
	return updateSummary(s.db.WithContext(ctx), id, text, ts)
}

func updateSummary(tx *gorm.DB, id, text string, ts time.Time) error {
	res := tx.Model(&models.Conversation{}).Where("id = ?", id).
		Updates(map[string]any{"last_message_text": text, "last_message_at": ts})
	if res.Error != nil {
		return errors.Wrap(res.Error, "convStore.UpdateLastMessage")
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// ListForUser returns uid's conversations, most recently active first.
func (s *ConversationStore) ListForUser(ctx context.Context, uid string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	var convs []models.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", uid, uid).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id").
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "convStore.ListForUser")
	}
	return convs, nil
}
