package database

import (
	"context"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
)

// MessageStore is the durable gateway for chat messages. Append assigns
// a unique identifier when the caller did not supply one.
type MessageStore interface {
	Append(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	QueryByReceiver(ctx context.Context, username string) ([]*models.ChatMessage, error)
}

// UserDirectory is used by registration/login flows, not by the routing
// core.
type UserDirectory interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateProfileIcon(ctx context.Context, username, profileIcon string) error
}

type Database interface {
	MessageStore
	UserDirectory
	Close() error
}
