package chat

import "time"

// SenderType classifies the author of a message.
type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAdmin SenderType = "admin"
)

// Valid reports whether t is a known sender class.
func (t SenderType) Valid() bool {
	return t == SenderUser || t == SenderAdmin
}

// Message is a single transcript entry. Messages are append-only and
// immutable once created; they are deleted only together with their session.
type Message struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SessionID      string     `gorm:"type:varchar(64);not null;index" json:"sessionId"`
	Sender         string     `gorm:"type:varchar(128)" json:"sender"`
	SenderType     SenderType `gorm:"type:varchar(16);not null" json:"senderType"`
	Content        string     `gorm:"type:text;not null" json:"message"`
	IsAI           bool       `gorm:"default:false" json:"isAi"`
	AttachmentURL  *string    `gorm:"type:text" json:"attachmentUrl"`
	AttachmentType *string    `gorm:"type:varchar(128)" json:"attachmentType"`
	CreatedAt      time.Time  `json:"timestamp"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// Wire converts the message into its broadcast payload shape.
func (m Message) Wire() MessagePayload {
	return MessagePayload{
		SessionID:      m.SessionID,
		Message:        m.Content,
		Sender:         m.Sender,
		SenderType:     string(m.SenderType),
		IsAI:           m.IsAI,
		AttachmentURL:  m.AttachmentURL,
		AttachmentType: m.AttachmentType,
		Timestamp:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
