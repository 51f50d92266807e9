package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/TierLink/internal/monitoring"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists documents as JSONB rows
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed document store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetGlobal(ctx context.Context, collection, id string) (json.RawMessage, error) {
	start := time.Now()
	var data json.RawMessage
	err := s.db.QueryRow(ctx, `
		SELECT data FROM global_documents
		WHERE collection = $1 AND doc_id = $2
	`, collection, id).Scan(&data)
	monitoring.RecordStoreOp("get_global", time.Since(start), ignoreNotFound(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *PostgresStore) SetGlobal(ctx context.Context, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
	}

	start := time.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO global_documents (collection, doc_id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, doc_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, collection, id, payload)
	monitoring.RecordStoreOp("set_global", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateGlobal(ctx context.Context, collection, id string, partial any) error {
	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("failed to marshal partial %s/%s: %w", collection, id, err)
	}

	start := time.Now()
	tag, err := s.db.Exec(ctx, `
		UPDATE global_documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND doc_id = $2
	`, collection, id, payload)
	monitoring.RecordStoreOp("update_global", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteGlobal(ctx context.Context, collection, id string) error {
	start := time.Now()
	_, err := s.db.Exec(ctx, `
		DELETE FROM global_documents WHERE collection = $1 AND doc_id = $2
	`, collection, id)
	monitoring.RecordStoreOp("delete_global", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) ListGlobal(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, `
		SELECT doc_id, data FROM global_documents WHERE collection = $1
	`, collection)
	monitoring.RecordStoreOp("list_global", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id string
		var data json.RawMessage
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document in %s: %w", collection, err)
		}
		docs[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collection %s: %w", collection, err)
	}
	return docs, nil
}

func (s *PostgresStore) ListGlobalIDs(ctx context.Context, collection, afterID string, limit int) ([]string, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, `
		SELECT doc_id FROM global_documents
		WHERE collection = $1 AND doc_id > $2
		ORDER BY doc_id
		LIMIT $3
	`, collection, afterID, limit)
	monitoring.RecordStoreOp("list_global_ids", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids in %s: %w", collection, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id in %s: %w", collection, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids in %s: %w", collection, err)
	}
	return ids, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID, collection, id string) (json.RawMessage, error) {
	start := time.Now()
	var data json.RawMessage
	err := s.db.QueryRow(ctx, `
		SELECT data FROM user_documents
		WHERE user_id = $1 AND collection = $2 AND doc_id = $3
	`, userID, collection, id).Scan(&data)
	monitoring.RecordStoreOp("get_user", time.Since(start), ignoreNotFound(err))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user document %s/%s/%s: %w", userID, collection, id, err)
	}
	return data, nil
}

func (s *PostgresStore) SetUser(ctx context.Context, userID, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal user document %s/%s/%s: %w", userID, collection, id, err)
	}

	start := time.Now()
	_, err = s.db.Exec(ctx, `
		INSERT INTO user_documents (user_id, collection, doc_id, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, collection, doc_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, userID, collection, id, payload)
	monitoring.RecordStoreOp("set_user", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to set user document %s/%s/%s: %w", userID, collection, id, err)
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, userID, collection, id string, partial any) error {
	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("failed to marshal partial %s/%s/%s: %w", userID, collection, id, err)
	}

	start := time.Now()
	tag, err := s.db.Exec(ctx, `
		UPDATE user_documents
		SET data = data || $4::jsonb, updated_at = NOW()
		WHERE user_id = $1 AND collection = $2 AND doc_id = $3
	`, userID, collection, id, payload)
	monitoring.RecordStoreOp("update_user", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to update user document %s/%s/%s: %w", userID, collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, userID, collection, id string) error {
	start := time.Now()
	_, err := s.db.Exec(ctx, `
		DELETE FROM user_documents
		WHERE user_id = $1 AND collection = $2 AND doc_id = $3
	`, userID, collection, id)
	monitoring.RecordStoreOp("delete_user", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to delete user document %s/%s/%s: %w", userID, collection, id, err)
	}
	return nil
}

func (s *PostgresStore) ListUser(ctx context.Context, userID, collection string) (map[string]json.RawMessage, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, `
		SELECT doc_id, data FROM user_documents
		WHERE user_id = $1 AND collection = $2
	`, userID, collection)
	monitoring.RecordStoreOp("list_user", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list user collection %s/%s: %w", userID, collection, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var id string
		var data json.RawMessage
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan user document in %s/%s: %w", userID, collection, err)
		}
		docs[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user collection %s/%s: %w", userID, collection, err)
	}
	return docs, nil
}

// ignoreNotFound keeps expected misses out of the store error metrics
func ignoreNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
