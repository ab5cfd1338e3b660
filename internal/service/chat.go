package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"ripplechat/internal/models"
	"ripplechat/internal/moderation"
	"ripplechat/internal/profile"

	"github.com/rs/zerolog/log"
)

const MaxMessageChars = 500

type ConversationStore interface {
	Get(ctx context.Context, id string) (*models.Conversation, error)
	GetOrCreate(ctx context.Context, uidA, uidB string) (string, bool, error)
	ListForUser(ctx context.Context, uid string, limit int) ([]models.Conversation, error)
}

type MessageStore interface {
	Append(ctx context.Context, conversationID string, msg models.Message) (string, error)
	Recent(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	Subscribe(ctx context.Context, conversationID string, limit int, onUpdate func([]models.Message), onError func(error)) func()
}

type Moderator interface {
	Evaluate(ctx context.Context, text string) (moderation.Verdict, error)
}

type Profiles interface {
	Get(ctx context.Context, uid string) (models.User, error)
}

// ChatService 编排会话创建与消息发送：校验、审核、持久化。
type ChatService struct {
	convs    ConversationStore
	msgs     MessageStore
	gate     Moderator
	profiles Profiles
	window   int
}

func NewChatService(convs ConversationStore, msgs MessageStore, gate Moderator, profiles Profiles, window int) *ChatService {
	if window <= 0 {
		window = 50
	}
	return &ChatService{convs: convs, msgs: msgs, gate: gate, profiles: profiles, window: window}
}

// ConversationDTO 是会话列表的对外输出。
type ConversationDTO struct {
	ID              string     `json:"id"`
	Other           PeerDTO    `json:"other"`
	CreatedAt       time.Time  `json:"created_at"`
	LastMessageText *string    `json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
}

type PeerDTO struct {
	UID      string  `json:"uid"`
	Handle   string  `json:"handle"`
	PhotoURL *string `json:"photo_url,omitempty"`
}

// StartConversation opens (or reopens) the conversation between the caller
// and otherUID.
func (s *ChatService) StartConversation(ctx context.Context, currentUID, otherUID string) (string, bool, error) {
	if currentUID == otherUID {
		return "", false, ErrSelfConversation
	}
	if _, err := s.profiles.Get(ctx, otherUID); err != nil {
		return "", false, err
	}
	return s.convs.GetOrCreate(ctx, currentUID, otherUID)
}

// SendMessage validates, moderates and stores text from sender. Nothing is
// stored unless moderation allowed the text.
func (s *ChatService) SendMessage(ctx context.Context, conversationID string, sender models.User, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > MaxMessageChars {
		return "", ErrInvalidMessage
	}
	if _, err := s.participant(ctx, conversationID, sender.UID); err != nil {
		return "", err
	}

	verdict, err := s.gate.Evaluate(ctx, text)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("moderation unavailable, message not sent")
		return "", err
	}
	if !verdict.Allowed {
		log.Info().Str("conversation_id", conversationID).Str("sender", sender.UID).Str("reason", verdict.Reason).Msg("message rejected")
		return "", &RejectedError{Reason: verdict.Reason}
	}

	id, err := s.msgs.Append(ctx, conversationID, models.Message{
		SenderUID:      sender.UID,
		SenderHandle:   profile.DisplayHandle(sender),
		SenderPhotoURL: sender.PhotoURL,
		Text:           text,
		IsModerated:    false,
	})
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("append failed")
		return "", &PersistError{Err: err}
	}
	return id, nil
}

// ListConversations returns the caller's conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, uid string, limit int) ([]ConversationDTO, error) {
	convs, err := s.convs.ListForUser(ctx, uid, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationDTO, 0, len(convs))
	for _, c := range convs {
		other := c.Other(uid)
		peer := PeerDTO{UID: other, Handle: other}
		if u, err := s.profiles.Get(ctx, other); err == nil {
			peer.Handle = profile.DisplayHandle(u)
			peer.PhotoURL = u.PhotoURL
		} else if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		out = append(out, ConversationDTO{
			ID:              c.ID,
			Other:           peer,
			CreatedAt:       c.CreatedAt,
			LastMessageText: c.LastMessageText,
			LastMessageAt:   c.LastMessageAt,
		})
	}
	return out, nil
}

// RecentMessages returns the newest messages of a conversation the caller
// belongs to, oldest first.
func (s *ChatService) RecentMessages(ctx context.Context, conversationID, uid string, limit int) ([]models.Message, error) {
	if _, err := s.participant(ctx, conversationID, uid); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.window {
		limit = s.window
	}
	return s.msgs.Recent(ctx, conversationID, limit)
}

// Watch subscribes uid to live windows of a conversation they belong to.
func (s *ChatService) Watch(ctx context.Context, conversationID, uid string, onUpdate func([]models.Message), onError func(error)) (func(), error) {
	if _, err := s.participant(ctx, conversationID, uid); err != nil {
		return nil, err
	}
	return s.msgs.Subscribe(ctx, conversationID, s.window, onUpdate, onError), nil
}

func (s *ChatService) participant(ctx context.Context, conversationID, uid string) (*models.Conversation, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(uid) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}
