package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chat2doc/internal/model"
)

// PostgresStore はPostgreSQLを使用したDocumentStore実装。
// オーナーIDを主キーとするUPSERTで上書きセマンティクスを実現する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put はオーナーのドキュメントを保存する。既存の値は上書きされる。
func (s *PostgresStore) Put(ctx context.Context, ownerID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (owner_id, content, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (owner_id)
		 DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		ownerID, text,
	)
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Get はオーナーのドキュメントを取得する。未登録の場合はnilを返す。
func (s *PostgresStore) Get(ctx context.Context, ownerID string) (*model.StoredDocument, error) {
	doc := &model.StoredDocument{}
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id, content, updated_at
		 FROM documents
		 WHERE owner_id = $1`,
		ownerID,
	).Scan(&doc.OwnerID, &doc.Text, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// compile-time interface check
var _ DocumentStore = (*PostgresStore)(nil)
