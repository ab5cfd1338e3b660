package store

import (
	"context"

	"ripplechat/internal/feed"
	"ripplechat/internal/metrics"
	"ripplechat/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultWindow = 50

type MessageStore struct {
	db       *gorm.DB
	hub      *feed.Hub
	notifier feed.Notifier
}

// NewMessageStore wires the store to the local feed hub. notifier receives
// committed appends; pass nil to notify hub directly.
func NewMessageStore(db *gorm.DB, hub *feed.Hub, notifier feed.Notifier) *MessageStore {
	if notifier == nil {
		notifier = hub
	}
	return &MessageStore{db: db, hub: hub, notifier: notifier}
}

// Append stores msg in conversationID and updates the conversation summary
// in the same transaction. The server assigns ID and CreatedAt; timestamps
// never go backwards within a conversation. Caller cancellation does not
// abort a commit in progress.
func (s *MessageStore) Append(ctx context.Context, conversationID string, msg models.Message) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "msgStore.Append.uuid")
	}
	msg.ID = id.String()
	msg.ConversationID = conversationID

	err = s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			// serialise appends per conversation so timestamps stay monotonic
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.Where("id = ?", conversationID).First(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversationNotFound
		}
		if err != nil {
			return errors.Wrap(err, "msgStore.Append.lock")
		}

		ts := tx.NowFunc()
		if conv.LastMessageAt != nil && conv.LastMessageAt.After(ts) {
			ts = *conv.LastMessageAt
		}
		msg.CreatedAt = ts
		if err := tx.Create(&msg).Error; err != nil {
			return errors.Wrap(err, "msgStore.Append.create")
		}
		return updateSummary(tx, conversationID, msg.Text, ts)
	})
	if err != nil {
		return "", err
	}

	metrics.MessagesAppendedTotal.Inc()
	s.notifier.Notify(conversationID)
	return msg.ID, nil
}

// Recent returns the newest limit messages, oldest first.
func (s *MessageStore) Recent(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > DefaultWindow {
		limit = DefaultWindow
	}
	msgs := make([]models.Message, 0, limit)
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "msgStore.Recent")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
