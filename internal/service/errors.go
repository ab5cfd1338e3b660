package service

import (
	"errors"

	"ripplechat/internal/chatid"
	"ripplechat/internal/moderation"
	"ripplechat/internal/profile"
	"ripplechat/internal/store"
)

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrInvalidMessage        = errors.New("message must be 1-500 characters")
	ErrRejected              = errors.New("message rejected by moderation")
	ErrModerationUnavailable = moderation.ErrUnavailable
	ErrPersistFailed         = errors.New("failed to store message")
	ErrNotParticipant        = errors.New("not a participant of this conversation")
	ErrSelfConversation      = chatid.ErrSelfConversation
	ErrUserNotFound          = profile.ErrUserNotFound
	ErrConversationNotFound  = store.ErrConversationNotFound
)

// RejectedError carries the moderation reason for a blocked message.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return ErrRejected.Error() + ": " + e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// PersistError wraps a store failure after moderation already passed.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return ErrPersistFailed.Error() + ": " + e.Err.Error() }

func (e *PersistError) Is(target error) bool { return target == ErrPersistFailed }

func (e *PersistError) Unwrap() error { return e.Err }
