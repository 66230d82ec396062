package chat

// ConnectPayload opens or resumes a session over a fresh connection.
// All fields are optional; a missing session id mints a new one.
type ConnectPayload struct {
	SessionID string `json:"sessionId"`
	UserIP    string `json:"userIp"`
	UserAgent string `json:"userAgent"`
}

// InboundMessage is the shared inbound shape of message:user and
// message:admin events. Attachment fields travel as opaque references; the
// relay never touches the files themselves.
type InboundMessage struct {
	SessionID      string  `json:"sessionId" validate:"required"`
	Message        string  `json:"message" validate:"required"`
	Sender         string  `json:"sender"`
	AttachmentURL  *string `json:"attachmentUrl"`
	AttachmentType *string `json:"attachmentType"`
}

// TypingPayload carries a directional composing signal.
type TypingPayload struct {
	SessionID  string `json:"sessionId" validate:"required"`
	SenderType string `json:"senderType" validate:"required,oneof=user admin"`
}

// ClosePayload ends a session explicitly.
type ClosePayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// MessagePayload is the outbound wire shape of a persisted message.
type MessagePayload struct {
	SessionID      string  `json:"sessionId"`
	Message        string  `json:"message"`
	Sender         string  `json:"sender"`
	SenderType     string  `json:"senderType"`
	IsAI           bool    `json:"isAi"`
	AttachmentURL  *string `json:"attachmentUrl"`
	AttachmentType *string `json:"attachmentType"`
	Timestamp      string  `json:"timestamp"`
}
