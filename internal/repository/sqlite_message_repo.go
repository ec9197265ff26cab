package repository

import (
	"context"
	"database/sql"

	"agent-chat/internal/domain"
)

type SQLiteMessageRepository struct {
	db *sql.DB
}

func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

func (r *SQLiteMessageRepository) EnsureSchema(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		author TEXT NOT NULL,
		body TEXT NOT NULL
	);`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *SQLiteMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `INSERT INTO messages (id, author, body) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, message.ID, message.Author, message.Body)
	return err
}

func (r *SQLiteMessageRepository) List(ctx context.Context) ([]domain.Message, error) {
	const query = `SELECT id, author, body FROM messages ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Body); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
