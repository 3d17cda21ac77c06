package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxMessageLength is the longest warble accepted, in characters.
const MaxMessageLength = 140

// Message is a short post authored by exactly one user.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"size:140;not null" json:"text"`
	Timestamp time.Time `gorm:"not null;index:idx_messages_timestamp" json:"timestamp"`
	UserID    uint      `gorm:"not null;index:idx_messages_user_id" json:"user_id"`

	// Relationships
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`

	// Computed
	LikesCount int64 `gorm:"-" json:"likes_count"`
	Liked      bool  `gorm:"-" json:"liked"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate stamps the creation time when the caller left it empty.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}
