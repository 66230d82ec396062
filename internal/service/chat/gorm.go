package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zhouzirui/support-relay/internal/model/chat"
)

// GormStore implements Store on PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a PostgreSQL connection, migrates the chat tables and
// returns the durable gateway.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&chat.Session{}, &chat.Message{}); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

// UpsertSession creates or refreshes a session record.
func (s *GormStore) UpsertSession(ctx context.Context, id, userIP, userAgent string, status chat.Status) (chat.Session, error) {
	var session chat.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		err := tx.First(&session, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			session = chat.Session{
				ID:           id,
				UserIP:       userIP,
				UserAgent:    userAgent,
				Status:       status,
				AutoReply:    true,
				CreatedAt:    now,
				LastActiveAt: now,
			}
			return tx.Create(&session).Error
		}
		if err != nil {
			return err
		}

		if userIP != "" {
			session.UserIP = userIP
		}
		if userAgent != "" {
			session.UserAgent = userAgent
		}
		session.Status = status
		session.LastActiveAt = now
		return tx.Save(&session).Error
	})
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *GormStore) GetSession(ctx context.Context, id string) (chat.Session, error) {
	var session chat.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

// SetSessionStatus transitions the session lifecycle state.
func (s *GormStore) SetSessionStatus(ctx context.Context, id string, status chat.Status) (chat.Session, error) {
	return s.updateSession(ctx, id, map[string]any{"status": status})
}

// SetAutoReply toggles the automated-reply flag.
func (s *GormStore) SetAutoReply(ctx context.Context, id string, enabled bool) (chat.Session, error) {
	return s.updateSession(ctx, id, map[string]any{"auto_reply": enabled})
}

func (s *GormStore) updateSession(ctx context.Context, id string, fields map[string]any) (chat.Session, error) {
	res := s.db.WithContext(ctx).Model(&chat.Session{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return chat.Session{}, res.Error
	}
	if res.RowsAffected == 0 {
		return chat.Session{}, ErrSessionNotFound
	}
	return s.GetSession(ctx, id)
}

// CreateMessage appends a message and touches the owning session.
func (s *GormStore) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&chat.Session{}).Where("id = ?", msg.SessionID).
			Update("last_active_at", msg.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// ListSessions returns filtered sessions, most recently active first.
func (s *GormStore) ListSessions(ctx context.Context, filter chat.Filter) ([]chat.SessionSummary, error) {
	query := s.db.WithContext(ctx).Model(&chat.Session{}).Order("last_active_at DESC")
	switch filter {
	case chat.FilterActive:
		query = query.Where("status = ?", chat.StatusActive)
	case chat.FilterPast:
		query = query.Where("status <> ?", chat.StatusActive)
	}

	var sessions []chat.Session
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}

	summaries := make([]chat.SessionSummary, 0, len(sessions))
	if len(sessions) == 0 {
		return summaries, nil
	}

	ids := make([]string, len(sessions))
	for i, session := range sessions {
		ids[i] = session.ID
	}

	var counts []struct {
		SessionID string
		Total     int64
	}
	err := s.db.WithContext(ctx).Model(&chat.Message{}).
		Select("session_id, COUNT(*) AS total").
		Where("session_id IN ?", ids).
		Group("session_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	countByID := make(map[string]int64, len(counts))
	for _, c := range counts {
		countByID[c.SessionID] = c.Total
	}

	var lastMessages []chat.Message
	err = s.db.WithContext(ctx).
		Select("DISTINCT ON (session_id) *").
		Where("session_id IN ?", ids).
		Order("session_id, created_at DESC").
		Find(&lastMessages).Error
	if err != nil {
		return nil, err
	}
	lastByID := make(map[string]chat.Message, len(lastMessages))
	for _, msg := range lastMessages {
		lastByID[msg.SessionID] = msg
	}

	for _, session := range sessions {
		summary := chat.SessionSummary{
			Session:      session,
			MessageCount: int(countByID[session.ID]),
		}
		if last, ok := lastByID[session.ID]; ok {
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListMessages returns the transcript in ascending creation order.
func (s *GormStore) ListMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var transcript []chat.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&transcript).Error
	if err != nil {
		return nil, err
	}
	return transcript, nil
}
