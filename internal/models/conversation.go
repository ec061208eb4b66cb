package models

import "time"

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a conversation.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           Role      `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	Intent         Category  `json:"intent,omitempty" db:"intent"`
	Confidence     *float64  `json:"confidence,omitempty" db:"confidence"`
	Source         string    `json:"source,omitempty" db:"source"`
	KnowledgeID    string    `json:"knowledge_id,omitempty" db:"knowledge_id"`
	LatencyMs      *int64    `json:"latency_ms,omitempty" db:"latency_ms"`
	Rating         *int      `json:"rating,omitempty" db:"rating"`
	IsError        bool      `json:"is_error,omitempty" db:"is_error"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Conversation groups the messages of one chat session.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	Title     string    `json:"title,omitempty" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ConversationState is the caller-owned history handed to the resolver and
// returned with the new turns appended.
type ConversationState struct {
	ConversationID string    `json:"conversation_id"`
	Turns          []Message `json:"turns"`
}

// Append returns a copy of s with msgs appended; s is not modified.
func (s ConversationState) Append(msgs ...Message) ConversationState {
	turns := make([]Message, 0, len(s.Turns)+len(msgs))
	turns = append(turns, s.Turns...)
	turns = append(turns, msgs...)
	return ConversationState{ConversationID: s.ConversationID, Turns: turns}
}

// Feedback is a user rating and/or comment on a conversation or message.
type Feedback struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty" db:"message_id"`
	Rating         *int      `json:"rating,omitempty" db:"rating"`
	Comment        string    `json:"comment,omitempty" db:"comment"`
	Processed      bool      `json:"processed" db:"processed"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
