package model

import "time"

// Session is a server-side record binding an opaque credential and an
// opaque client state blob to an unguessable identifier. The credential
// and state are never interpreted here; lab front-ends own their shape.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Token        string    `json:"token"` // Opaque to the store
	State        string    `json:"state"` // Raw JSON text supplied by the client
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
}
