package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type PostgresDB struct {
	pool *pgxpool.Pool
}

var _ Database = (*PostgresDB)(nil)

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// Migrate creates the schema if it does not exist yet.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			profile_icon TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			sender VARCHAR(50) NOT NULL,
			receiver VARCHAR(50) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			group_name VARCHAR(100) NOT NULL DEFAULT '',
			sent_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Message Store Implementation

func (db *PostgresDB) Append(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	query := `
		INSERT INTO messages (id, sender, receiver, content, group_name, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.pool.Exec(ctx, query,
		msg.ID, msg.Sender, msg.Receiver, msg.Content, msg.Group, msg.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}

	return msg, nil
}

func (db *PostgresDB) QueryByReceiver(ctx context.Context, username string) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, sender, receiver, content, group_name, sent_at
		FROM messages
		WHERE receiver = $1
		ORDER BY sent_at ASC`

	rows, err := db.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg := &models.ChatMessage{}
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Receiver, &msg.Content, &msg.Group, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// User Directory Implementation

func (db *PostgresDB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: passwordHash,
	}

	query := `INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`
	if _, err := db.pool.Exec(ctx, query, user.ID, user.Username, user.Password); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password_hash, profile_icon FROM users WHERE username = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Password, &user.ProfileIcon,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, username, profile_icon FROM users ORDER BY username`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Username, &user.ProfileIcon); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (db *PostgresDB) UpdateProfileIcon(ctx context.Context, username, profileIcon string) error {
	query := `UPDATE users SET profile_icon = $1 WHERE username = $2`

	tag, err := db.pool.Exec(ctx, query, profileIcon, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
