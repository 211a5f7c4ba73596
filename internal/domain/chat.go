package domain

import "time"

// MessageSender identifies who produced a message.
type MessageSender string

const (
	SenderUser MessageSender = "user"
	SenderBot  MessageSender = "bot"
)

// ChatSession represents a chat session bound to one site
type ChatSession struct {
	ID        string    `json:"id"`
	SiteID    string    `json:"site_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message represents a single chat message within a session
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Sender    MessageSender `json:"sender"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query" binding:"required"`
}

// ChatResponse is the response from a chat message
type ChatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}
