package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"student-chat/internal/models"
	"student-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

//go:embed schema.sql
var schema string

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

// Migrate creates the tables this service reads and writes if they are missing.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id::text, username, email, COALESCE(password_hash, ''), avatar_url, is_online, created_at
		FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.AvatarURL, &user.IsOnline, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id::text, username, email, avatar_url, is_online, created_at`

	user := &models.User{PasswordHash: passwordHash}
	err := db.pool.QueryRow(ctx, query, username, email, passwordHash).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.IsOnline, &user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id::text, username, email, avatar_url, is_online, created_at
		FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.IsOnline, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}

	return user, nil
}

// Presence Repository Implementation
func (db *PostgresDB) SetUserOnline(ctx context.Context, userID string, online bool) error {
	tag, err := db.pool.Exec(ctx, `UPDATE users SET is_online = $2 WHERE id = $1`, userID, online)
	if err != nil {
		return fmt.Errorf("failed to update online flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Room Repository Implementation
func (db *PostgresDB) GetRoomParticipants(ctx context.Context, roomID string) (*models.RoomMembership, error) {
	query := `
		SELECT r.id::text, r.name, r.type,
		       COALESCE(array_agg(p.user_id::text) FILTER (WHERE p.user_id IS NOT NULL), '{}')
		FROM chat_room r
		LEFT JOIN chat_room_participants p ON p.chat_room_id = r.id
		WHERE r.id = $1
		GROUP BY r.id`

	room := &models.RoomMembership{}
	var roomType string
	err := db.pool.QueryRow(ctx, query, roomID).Scan(&room.ID, &room.Name, &roomType, &room.ParticipantIDs)
	if err != nil {
		return nil, notFound(err)
	}
	room.Type = models.RoomType(roomType)

	return room, nil
}

// Message Repository Implementation
func (db *PostgresDB) CreateMessage(ctx context.Context, msg *models.NewMessage) (*models.Message, error) {
	query := `
		WITH m AS (
			INSERT INTO messages (chat_room_id, sender_id, content, file_url, file_type, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, chat_room_id, sender_id, content, file_url, file_type, created_at
		)
		SELECT m.id::text, m.chat_room_id::text, m.sender_id::text, m.content, m.file_url, m.file_type, m.created_at,
		       u.username, u.avatar_url
		FROM m JOIN users u ON u.id = m.sender_id`

	out := &models.Message{}
	err := db.pool.QueryRow(ctx, query, msg.RoomID, msg.SenderID, msg.Content, msg.FileURL, msg.FileType).Scan(
		&out.ID, &out.RoomID, &out.SenderID, &out.Content, &out.FileURL, &out.FileType, &out.CreatedAt,
		&out.Sender.Username, &out.Sender.AvatarURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	out.Sender.ID = out.SenderID

	return out, nil
}

func (db *PostgresDB) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT m.id::text, m.chat_room_id::text, m.sender_id::text, m.content, m.file_url, m.file_type, m.created_at,
		       u.username, u.avatar_url
		FROM messages m JOIN users u ON u.id = m.sender_id
		WHERE m.id = $1`

	out := &models.Message{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&out.ID, &out.RoomID, &out.SenderID, &out.Content, &out.FileURL, &out.FileType, &out.CreatedAt,
		&out.Sender.Username, &out.Sender.AvatarURL,
	)
	if err != nil {
		return nil, notFound(err)
	}
	out.Sender.ID = out.SenderID

	return out, nil
}

func (db *PostgresDB) DeleteMessage(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
