package models

import "time"

// User is a profile bootstrapped from the identity provider, keyed by its opaque uid.
type User struct {
	UID         string    `gorm:"primaryKey;size:128" json:"uid"`
	DisplayName *string   `gorm:"size:128" json:"display_name,omitempty"`
	Email       *string   `gorm:"size:256" json:"email,omitempty"`
	PhotoURL    *string   `gorm:"size:1024" json:"photo_url,omitempty"`
	Username    *string   `gorm:"uniqueIndex;size:16" json:"username,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Conversation is a pairwise thread. ID is derived from the two participant uids.
type Conversation struct {
	ID              string     `gorm:"primaryKey;size:300" json:"id"`
	ParticipantA    string     `gorm:"index;size:128;not null" json:"-"`
	ParticipantB    string     `gorm:"index;size:128;not null" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	LastMessageText *string    `gorm:"type:text" json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
}

// ParticipantUIDs returns both participants in storage order.
func (c Conversation) ParticipantUIDs() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether uid is one of the two participants.
func (c Conversation) HasParticipant(uid string) bool {
	return c.ParticipantA == uid || c.ParticipantB == uid
}

// Other returns the participant that is not uid.
func (c Conversation) Other(uid string) string {
	if c.ParticipantA == uid {
		return c.ParticipantB
	}
	return c.ParticipantA
}

type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"index:idx_msg_conv_created,priority:1;size:300;not null" json:"conversation_id"`
	SenderUID      string    `gorm:"index;size:128;not null" json:"sender_uid"`
	SenderHandle   string    `gorm:"size:256;not null" json:"sender_handle"`
	SenderPhotoURL *string   `gorm:"size:1024" json:"sender_photo_url,omitempty"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	CreatedAt      time.Time `gorm:"index:idx_msg_conv_created,priority:2" json:"timestamp"`
	IsModerated    bool      `gorm:"not null;default:false" json:"is_moderated"`
}
