package types

import (
	"support-chat-backend/internal/chat"
	"support-chat-backend/internal/inference"
)

type ChatRequest struct {
	SessionID string       `json:"sessionId"`
	Message   string       `json:"message"`
	Context   *ChatContext `json:"context,omitempty"`
}

// ChatContext lets the frontend supply conversation hints explicitly. Non-empty
// fields override what the server has inferred for the session.
type ChatContext struct {
	UserIntents       []string         `json:"userIntents,omitempty"`
	ProductInterests  []string         `json:"productInterests,omitempty"`
	RoomTypes         []string         `json:"roomTypes,omitempty"`
	Features          []string         `json:"features,omitempty"`
	Issues            []string         `json:"issues,omitempty"`
	ConversationStage string           `json:"conversationStage,omitempty"`
	History           []inference.Turn `json:"history,omitempty"`
}

func (c *ChatContext) Inference() *inference.ConversationContext {
	if c == nil {
		return nil
	}
	return &inference.ConversationContext{
		UserIntents:       c.UserIntents,
		ProductInterests:  c.ProductInterests,
		RoomTypes:         c.RoomTypes,
		Features:          c.Features,
		Issues:            c.Issues,
		ConversationStage: c.ConversationStage,
		History:           c.History,
	}
}

type ChatResponse struct {
	SessionID   string                 `json:"sessionId"`
	Message     chat.Message           `json:"message"`
	Intent      string                 `json:"intent,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Suggestions []inference.Suggestion `json:"suggestions,omitempty"`
}

type HistoryResponse struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SessionRequest struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
	// ExpiresIn is in seconds; zero uses the server's default TTL.
	ExpiresIn int `json:"expiresIn,omitempty"`
}

type SessionStatus struct {
	SessionID     string `json:"sessionId"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	Source        string `json:"source,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}
