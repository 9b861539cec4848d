package db

import (
	"context"
	"fmt"

	"github.com/unklstewy/santa-scope/pkg/chat"
)

// ChatRepository stores chat conversations. Each conversation is keyed by
// a session name.
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new chat repository.
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// LoadMessages returns the session's messages in order.
func (r *ChatRepository) LoadMessages(ctx context.Context, session string) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, text, sent_at
		FROM chat_messages
		WHERE session = $1
		ORDER BY sequence`,
		session,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Role = chat.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveMessages replaces the session's messages.
func (r *ChatRepository) SaveMessages(ctx context.Context, session string, msgs []chat.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session = $1`, session); err != nil {
		return fmt.Errorf("failed to clear chat messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_messages (session, sequence, id, role, text, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		if _, err := stmt.ExecContext(ctx, session, i, m.ID, string(m.Role), m.Text, m.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert chat message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat messages: %w", err)
	}
	return nil
}

// Store returns a chat.Store bound to one session.
func (r *ChatRepository) Store(session string) chat.Store {
	return chatStore{repo: r, session: session}
}

type chatStore struct {
	repo    *ChatRepository
	session string
}

func (s chatStore) Load(ctx context.Context) ([]chat.Message, error) {
	return s.repo.LoadMessages(ctx, s.session)
}

func (s chatStore) Save(ctx context.Context, msgs []chat.Message) error {
	return WithRetry(ctx, func() error {
		return s.repo.SaveMessages(ctx, s.session, msgs)
	}, 2)
}
