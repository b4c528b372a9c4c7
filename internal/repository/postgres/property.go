package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PropertyRepo answers ownership questions against the host application's
// properties table.
type PropertyRepo struct{ db *sql.DB }

// NewPropertyRepo creates a Postgres-backed property ownership check.
func NewPropertyRepo(db *sql.DB) *PropertyRepo { return &PropertyRepo{db: db} }

// OwnedPropertyIDs returns the subset of ids that belong to the account.
func (r *PropertyRepo) OwnedPropertyIDs(ctx context.Context, accountID string, ids []string) (map[string]bool, error) {
	owned := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return owned, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id::text FROM properties WHERE account_id = $1 AND id::text = ANY($2)
	`, accountID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("owned properties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan property id: %w", err)
		}
		owned[id] = true
	}
	return owned, rows.Err()
}
