package models

// StartSessionRequest is the body for POST /api/v1/sessions.
type StartSessionRequest struct {
	Subject string `json:"subject"`
}

// PostMessageRequest is the body for POST /api/v1/sessions/:id/messages.
// LocalID is the client's optimistic identifier; the server echoes it back
// on the confirmed message so the sender can reconcile the two.
type PostMessageRequest struct {
	Content     string      `json:"content"`
	ContentKind ContentKind `json:"content_kind,omitempty"`
	LocalID     string      `json:"local_id,omitempty"`
}

// RateSessionRequest is the body for POST /api/v1/sessions/:id/rating.
type RateSessionRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}
