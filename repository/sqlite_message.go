package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Ajay-css/chatify/database"
	"github.com/Ajay-css/chatify/models"
)

type sqliteMessageRepo struct {
	db database.TxQuerier
}

func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

func (r *sqliteMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	now := time.Now().UTC()
	msg.ID = uuid.NewString()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	var seenAt sql.NullTime
	if msg.SeenAt != nil {
		seenAt = sql.NullTime{Time: msg.SeenAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, kind, file_url, seen, seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, string(msg.Kind), msg.FileURL,
		msg.Seen, seenAt, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListConversation orders by created_at with rowid as the tie breaker, so
// messages stamped in the same instant keep insertion order.
func (r *sqliteMessageRepo) ListConversation(ctx context.Context, a, b string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, kind, file_url, seen, seen_at, created_at, updated_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, rowid ASC`,
		a, b, b, a,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var (
			m      models.Message
			kind   string
			seenAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &kind, &m.FileURL,
			&m.Seen, &seenAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Kind = models.AttachmentKind(kind)
		if m.Kind == "" {
			m.Kind = models.KindText
		}
		if seenAt.Valid {
			t := seenAt.Time
			m.SeenAt = &t
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *sqliteMessageRepo) MarkSeen(ctx context.Context, senderID, receiverID string, seenAt time.Time) (int64, error) {
	seenAt = seenAt.UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET seen = 1, seen_at = ?, updated_at = ?
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0`,
		seenAt, seenAt, senderID, receiverID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages seen: %w", err)
	}
	return res.RowsAffected()
}
