package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/statedoc"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncStateStore = (*StateStore)(nil)

// StateStore keeps each collection's state document in one JSONB row.
// The upsert replaces the row in a single statement.
type StateStore struct {
	db     *DB
	logger *slog.Logger
}

// NewStateStore creates a PostgreSQL-backed state store
func NewStateStore(db *DB, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{db: db, logger: logger}
}

// Load returns the stored state. A missing row or a corrupt document yields
// an empty state; query failures are returned.
func (s *StateStore) Load(ctx context.Context, collection string) (*domain.SyncState, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM sync_documents WHERE collection = $1`, collection,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewSyncState(), nil
		}
		return nil, fmt.Errorf("load state %s: %w", collection, err)
	}

	state, err := statedoc.Decode(doc)
	if err != nil {
		s.logger.Warn("state document is corrupt, starting fresh", "collection", collection, "error", err)
		return domain.NewSyncState(), nil
	}
	return state, nil
}

// Save upserts the document
func (s *StateStore) Save(ctx context.Context, collection string, state *domain.SyncState) error {
	doc, err := statedoc.Encode(state)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_documents (collection, document, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (collection) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, collection, string(doc))
	if err != nil {
		return fmt.Errorf("save state %s: %w", collection, err)
	}
	return nil
}

// List returns the stored collection names in order
func (s *StateStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT collection FROM sync_documents ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Ping checks the database connection
func (s *StateStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
