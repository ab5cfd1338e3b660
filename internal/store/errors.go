package store

import "errors"

var ErrConversationNotFound = errors.New("conversation not found")
