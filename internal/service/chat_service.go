package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lukajuskovic/sitebot/internal/domain"
	"github.com/lukajuskovic/sitebot/internal/llm"
)

// fallbackAnswer is returned whenever generation fails; the caller never
// sees a generation error.
const fallbackAnswer = "I'm sorry, I'm having trouble connecting to my brain right now. Please try again later."

// SiteStore is the site lookup the chat path depends on
type SiteStore interface {
	Get(id string) (*domain.Site, error)
}

// SessionStore persists chat sessions and their messages
type SessionStore interface {
	Create(session *domain.ChatSession) error
	Get(id string) (*domain.ChatSession, error)
	Touch(id string) error
	CreateMessage(message *domain.Message) error
	GetMessages(sessionID string) ([]*domain.Message, error)
}

// ContextRetriever supplies grounding context for a query
type ContextRetriever interface {
	Retrieve(ctx context.Context, siteID, query, history string) ([]domain.ContextItem, error)
}

// ChatService orchestrates a conversational turn: session resolution,
// message persistence, retrieval, prompt assembly and generation.
type ChatService struct {
	sites     SiteStore
	sessions  SessionStore
	retriever ContextRetriever
	generator Generator
	log       *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(
	sites SiteStore,
	sessions SessionStore,
	retriever ContextRetriever,
	generator Generator,
	log *zap.Logger,
) *ChatService {
	return &ChatService{
		sites:     sites,
		sessions:  sessions,
		retriever: retriever,
		generator: generator,
		log:       log,
	}
}

// Chat handles one chat turn for the site. Persistence and site-lookup
// failures are hard errors; generation failures are absorbed into the
// fallback answer, which is persisted like any bot message.
func (s *ChatService) Chat(ctx context.Context, siteID string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	site, err := s.sites.Get(siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, domain.ErrNotFound
	}

	session, err := s.findOrCreateSession(siteID, req.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.CreateMessage(&domain.Message{
		SessionID: session.ID,
		Sender:    domain.SenderUser,
		Text:      req.Query,
	}); err != nil {
		return nil, err
	}

	history, err := s.chatHistory(session.ID)
	if err != nil {
		return nil, err
	}

	items, err := s.retriever.Retrieve(ctx, siteID, req.Query, history)
	if err != nil {
		return nil, err
	}

	parts := buildPrompt(site.URL, history, items, req.Query)
	answer, err := s.generator.Generate(ctx, parts)
	if err != nil {
		s.log.Warn("generation failed, returning fallback",
			zap.String("session_id", session.ID), zap.Error(err))
		answer = fallbackAnswer
	}

	if err := s.sessions.CreateMessage(&domain.Message{
		SessionID: session.ID,
		Sender:    domain.SenderBot,
		Text:      answer,
	}); err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(session.ID); err != nil {
		s.log.Warn("failed to touch session", zap.String("session_id", session.ID), zap.Error(err))
	}

	return &domain.ChatResponse{Answer: answer, SessionID: session.ID}, nil
}

// findOrCreateSession reuses a supplied session when it resolves,
// otherwise creates a fresh one for the site.
func (s *ChatService) findOrCreateSession(siteID, sessionID string) (*domain.ChatSession, error) {
	if sessionID != "" {
		session, err := s.sessions.Get(sessionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}

	session := &domain.ChatSession{SiteID: siteID}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// chatHistory reconstructs the session's messages oldest first as
// "sender: text" lines for the prompt.
func (s *ChatService) chatHistory(sessionID string) (string, error) {
	messages, err := s.sessions.GetMessages(sessionID)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, msg.Text))
	}
	return strings.Join(lines, "\n"), nil
}

// buildPrompt assembles the grounded prompt: persona rules, the context
// blocks in retrieval order (image blocks carry both description and the
// image itself), then history and the current question.
func buildPrompt(siteURL, history string, items []domain.ContextItem, query string) []llm.Part {
	parts := []llm.Part{{Text: fmt.Sprintf(`You are a friendly and helpful assistant for the website %s. Your goal is to be both a knowledgeable expert about the site and a natural conversationalist.

Follow these two rules for your responses:

1. If the user's question seems to be about the website or its content:
   - Answer the question using the "CONTEXT FROM THE WEBSITE".
   - Answer like you are an employee of the website.
   - You MUST NOT mention the context directly. Do not say things like "Based on the provided text..." or "According to the context...". Simply answer the question directly as if you already know the information.
   - If the answer is not in the context, politely state that you couldn't find that specific information on the website.

2. If the user's question is a general greeting or small talk:
   - Answer it naturally and conversationally using your own general knowledge.
   - If they ask about topics unrelated to the website, politely tell them that is not your expertise.

--- CONTEXT FROM THE WEBSITE ---`, siteURL)}}

	if len(items) == 0 {
		parts = append(parts, llm.Part{Text: "No context was provided. The answer is not available in the website content."})
	} else {
		for _, item := range items {
			switch item.Type {
			case domain.ContextImage:
				parts = append(parts, llm.Part{
					Text:     fmt.Sprintf("Image from %s (Description: '%s'):", item.Source, item.Description),
					ImageURL: item.URL,
				})
				parts = append(parts, llm.Part{Text: "---"})
			default:
				parts = append(parts, llm.Part{Text: fmt.Sprintf("Text from %s:\n%s\n---", item.Source, item.Content)})
			}
		}
	}

	parts = append(parts, llm.Part{Text: fmt.Sprintf("\n--- CONVERSATION HISTORY ---\n%s", history)})
	parts = append(parts, llm.Part{Text: fmt.Sprintf("\n--- CURRENT QUESTION ---\nUser: %s\n\nAssistant's Response:", query)})
	return parts
}
