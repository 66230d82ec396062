package chat

import "time"

// Status is the lifecycle state of a support session.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusClosed   Status = "closed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusClosed:
		return true
	}
	return false
}

// Session is one end-user support conversation. The identifier is opaque and
// immutable once issued; any number of concurrent connections may represent
// the same session.
type Session struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserIP       string    `gorm:"type:varchar(45)" json:"userIp"`
	UserAgent    string    `gorm:"type:varchar(512)" json:"userAgent"`
	Status       Status    `gorm:"type:varchar(16);default:'active';index" json:"status"`
	AutoReply    bool      `gorm:"default:true" json:"autoReply"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// TableName specifies the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// SessionSummary is a session enriched with transcript stats for dashboards.
type SessionSummary struct {
	Session
	MessageCount int      `json:"messageCount"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
}

// Filter narrows session listings.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterActive Filter = "active"
	FilterPast   Filter = "past"
)

// Valid reports whether f is a known listing filter.
func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterActive, FilterPast:
		return true
	}
	return false
}

// Matches reports whether a session with the given status passes the filter.
// Past covers everything that is no longer active.
func (f Filter) Matches(s Status) bool {
	switch f {
	case FilterActive:
		return s == StatusActive
	case FilterPast:
		return s != StatusActive
	default:
		return true
	}
}
