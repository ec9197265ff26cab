package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"agent-chat/internal/domain"
)

// MessageRepository persiste mensajes durables en orden de inserción.
type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	List(ctx context.Context) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// EnsureSchema crea la tabla de mensajes si no existe. La columna seq solo
// fija el orden de inserción y nunca se expone.
func (r *PgMessageRepository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS messages (
			seq    BIGSERIAL PRIMARY KEY,
			id     TEXT NOT NULL UNIQUE,
			author TEXT NOT NULL,
			body   TEXT NOT NULL
		)
	`
	_, err := r.pool.Exec(ctx, query)
	return err
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, author, body)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, message.ID, message.Author, message.Body)
	return err
}

func (r *PgMessageRepository) List(ctx context.Context) ([]domain.Message, error) {
	const query = `
		SELECT id, author, body
		FROM messages
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query)
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

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
