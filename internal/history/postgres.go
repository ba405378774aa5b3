package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chat2doc/internal/model"
)

// PostgresRepository はPostgreSQLを使用した履歴リポジトリ。
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository はPostgresRepositoryを生成する。
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append は履歴レコードを追加する。
func (r *PostgresRepository) Append(ctx context.Context, record model.ChatRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_history (id, owner_id, question, answer, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.OwnerID, record.Question, record.Answer, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}
	return nil
}

// ListByOwner は指定オーナーの履歴を新しい順に取得する。
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.ChatRecord, error) {
	query := `SELECT id, owner_id, question, answer, created_at
	          FROM chat_history WHERE owner_id = $1
	          ORDER BY created_at DESC`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var records []model.ChatRecord
	for rows.Next() {
		var rec model.ChatRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Question, &rec.Answer, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat history rows: %w", err)
	}

	return records, nil
}

// compile-time interface check
var _ Repository = (*PostgresRepository)(nil)
