// Package types provides core types shared across the suviet agent.
// This package has ZERO dependencies on other suviet packages to avoid
// circular imports. All other packages should import types from here.
package types

import "time"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single conversation turn half.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// QueryType is the classifier label for an incoming user turn.
type QueryType string

const (
	// QueryHistory marks a turn that needs an evidence lookup before answering.
	QueryHistory QueryType = "history"
	// QueryChitchat marks a casual turn answered directly without retrieval.
	QueryChitchat QueryType = "chitchat"
)

// Valid reports whether q is one of the recognized classifier labels.
func (q QueryType) Valid() bool {
	return q == QueryHistory || q == QueryChitchat
}

// Verdict is the reflection evaluator's grade for a synthesized answer.
type Verdict string

const (
	VerdictGood Verdict = "good"
	VerdictBad  Verdict = "bad"
)
