package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is one conversation thread.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one persisted conversation message.
type Message struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
