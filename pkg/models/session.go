// Package models contains the domain types shared by the chat engine,
// the HTTP API, and the event payloads.
package models

import "time"

// SessionStatus represents the lifecycle state of a chat session.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusActive   SessionStatus = "active"
	StatusResolved SessionStatus = "resolved"
	StatusClosed   SessionStatus = "closed"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the session accepts no further messages.
func (s SessionStatus) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// ChatSession is one logical support conversation.
type ChatSession struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	UserName          string        `json:"user_name"`
	Subject           string        `json:"subject"`
	Status            SessionStatus `json:"status"`
	MessageCount      int           `json:"message_count"`
	LastMessageAt     *time.Time    `json:"last_message_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	AssignedAdmin     string        `json:"assigned_admin,omitempty"`
	AssignedAdminName string        `json:"assigned_admin_name,omitempty"`
	Rating            int           `json:"rating,omitempty"`
	Feedback          string        `json:"feedback,omitempty"`
}
