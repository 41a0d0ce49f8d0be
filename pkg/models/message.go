package models

import (
	"strings"
	"time"
)

// SenderKind classifies who authored a message.
type SenderKind string

const (
	SenderUser    SenderKind = "user"
	SenderSupport SenderKind = "support"
	SenderSystem  SenderKind = "system"
	SenderAI      SenderKind = "ai"
)

// Valid reports whether k is a known sender kind.
func (k SenderKind) Valid() bool {
	switch k {
	case SenderUser, SenderSupport, SenderSystem, SenderAI:
		return true
	}
	return false
}

// ContentKind classifies how message content should be rendered.
type ContentKind string

const (
	ContentText ContentKind = "text"
	ContentCode ContentKind = "code"
	ContentLink ContentKind = "link"
)

// Valid reports whether k is a known content kind.
func (k ContentKind) Valid() bool {
	switch k {
	case ContentText, ContentCode, ContentLink:
		return true
	}
	return false
}

// OptimisticIDPrefix marks client-generated message identifiers that exist
// only until the server-confirmed copy supersedes them.
const OptimisticIDPrefix = "optimistic-"

// ChatMessage is a single message within a session.
//
// ID is either a server-assigned identifier (stable, authoritative) or a
// client-generated optimistic identifier ("optimistic-<timestamp>-<random>").
// LocalID carries the optimistic identifier on server-confirmed messages so
// the client can reconcile the two; it is empty for messages that did not
// originate from the receiving client.
type ChatMessage struct {
	ID          string      `json:"id"`
	LocalID     string      `json:"local_id,omitempty"`
	SessionID   string      `json:"session_id"`
	SenderID    string      `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	SenderKind  SenderKind  `json:"sender_kind"`
	Content     string      `json:"content"`
	ContentKind ContentKind `json:"content_kind"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Optimistic reports whether the message carries a client-generated
// identifier awaiting server confirmation.
func (m ChatMessage) Optimistic() bool {
	return strings.HasPrefix(m.ID, OptimisticIDPrefix)
}
