package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lukajuskovic/sitebot/internal/domain"
)

// SessionRepository handles chat session and message persistence
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new chat session
func (r *SessionRepository) Create(session *domain.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO chat_sessions (id, site_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.SiteID, session.CreatedAt, session.UpdatedAt)

	return err
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{}

	err := r.db.QueryRow(`
		SELECT id, site_id, created_at, updated_at
		FROM chat_sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.SiteID, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Touch updates a session's updated_at timestamp
func (r *SessionRepository) Touch(id string) error {
	_, err := r.db.Exec(`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// CreateMessage creates a new message. A preset CreatedAt is kept so the
// total ordering of a session's history follows creation time, not
// insertion order.
func (r *SessionRepository) CreateMessage(message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO messages (id, session_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, message.ID, message.SessionID, string(message.Sender), message.Text, message.CreatedAt)

	return err
}

// GetMessages retrieves all messages for a session ordered oldest first
func (r *SessionRepository) GetMessages(sessionID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(`
		SELECT id, session_id, sender, text, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		var sender string

		if err := rows.Scan(&message.ID, &message.SessionID, &sender,
			&message.Text, &message.CreatedAt); err != nil {
			return nil, err
		}

		message.Sender = domain.MessageSender(sender)
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
