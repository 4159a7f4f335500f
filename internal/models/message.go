package models

import "time"

// ChatMessage is the unit of conversation. Receiver is set for direct
// messages; Group is set for group-scoped messages (delivery ignores
// Receiver when Group is present). Timestamp is always assigned
// server-side at receipt and never trusted from the client.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender" validate:"required"`
	Receiver  string    `json:"receiver,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Group     string    `json:"group,omitempty"`
}

type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Password    string `json:"-"`
	ProfileIcon string `json:"profile_icon,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
