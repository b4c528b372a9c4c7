package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/service/automation"
)

// AutomationRepo implements automation.Repository against PostgreSQL.
type AutomationRepo struct{ db *sql.DB }

// NewAutomationRepo creates a Postgres-backed automation repository.
func NewAutomationRepo(db *sql.DB) *AutomationRepo { return &AutomationRepo{db: db} }

const automationColumns = `
	id, account_id, name, trigger, offset_hours, COALESCE(time_of_day,''), channel,
	COALESCE(subject,''), body, property_ids, COALESCE(rental_type,''), active,
	total_sent, total_opened, total_clicked, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// isUUID reports whether id can be compared with a UUID column. Anything
// else cannot match a row, and sending it would make Postgres fail the cast.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanAutomation(row rowScanner) (*domain.Automation, error) {
	a := &domain.Automation{}
	var props pq.StringArray
	err := row.Scan(
		&a.ID, &a.AccountID, &a.Name, &a.Trigger, &a.OffsetHours, &a.TimeOfDay, &a.Channel,
		&a.Subject, &a.Body, &props, &a.RentalType, &a.Active,
		&a.TotalSent, &a.TotalOpened, &a.TotalClicked, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.PropertyIDs = []string(props)
	return a, nil
}

func (r *AutomationRepo) Get(ctx context.Context, accountID, id string) (*domain.Automation, error) {
	if !isUUID(id) {
		return nil, automation.ErrNotFound
	}
	a, err := scanAutomation(r.db.QueryRowContext(ctx,
		`SELECT `+automationColumns+` FROM automations WHERE id = $1 AND account_id = $2`, id, accountID))
	if err == sql.ErrNoRows {
		return nil, automation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get automation: %w", err)
	}
	return a, nil
}

func (r *AutomationRepo) List(ctx context.Context, accountID string, f automation.ListFilter) ([]domain.Automation, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"account_id = $1"}
	args := []any{accountID}
	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Trigger != "" {
		add("trigger = $%d", f.Trigger)
	}
	if f.Channel != "" {
		add("channel = $%d", f.Channel)
	}
	if f.Active != nil {
		add("active = $%d", *f.Active)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM automations WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count automations: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM automations WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		automationColumns, cond, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list automations: %w", err)
	}
	defer rows.Close()

	out, err := collectAutomations(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *AutomationRepo) Create(ctx context.Context, a *domain.Automation) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO automations
			(id, account_id, name, trigger, offset_hours, time_of_day, channel,
			 subject, body, property_ids, rental_type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), $7, NULLIF($8,''), $9, $10, NULLIF($11,''), $12, NOW(), NOW())
		RETURNING created_at, updated_at
	`, a.ID, a.AccountID, a.Name, a.Trigger, a.OffsetHours, a.TimeOfDay, a.Channel,
		a.Subject, a.Body, pq.Array(nonNil(a.PropertyIDs)), a.RentalType, a.Active,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create automation: %w", err)
	}
	return nil
}

func (r *AutomationRepo) Update(ctx context.Context, a *domain.Automation) error {
	if !isUUID(a.ID) {
		return automation.ErrNotFound
	}
	err := r.db.QueryRowContext(ctx, `
		UPDATE automations SET
			name = $1, trigger = $2, offset_hours = $3, time_of_day = NULLIF($4,''),
			channel = $5, subject = NULLIF($6,''), body = $7, property_ids = $8,
			rental_type = NULLIF($9,''), active = $10, updated_at = NOW()
		WHERE id = $11 AND account_id = $12
		RETURNING updated_at
	`, a.Name, a.Trigger, a.OffsetHours, a.TimeOfDay, a.Channel, a.Subject, a.Body,
		pq.Array(nonNil(a.PropertyIDs)), a.RentalType, a.Active, a.ID, a.AccountID,
	).Scan(&a.UpdatedAt)
	if err == sql.ErrNoRows {
		return automation.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update automation: %w", err)
	}
	return nil
}

func (r *AutomationRepo) Delete(ctx context.Context, accountID, id string) error {
	if !isUUID(id) {
		return automation.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM automations WHERE id = $1 AND account_id = $2`, id, accountID)
	if err != nil {
		return fmt.Errorf("delete automation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return automation.ErrNotFound
	}
	return nil
}

func (r *AutomationRepo) Toggle(ctx context.Context, accountID, id string) (bool, error) {
	if !isUUID(id) {
		return false, automation.ErrNotFound
	}
	var active bool
	err := r.db.QueryRowContext(ctx, `
		UPDATE automations SET active = NOT active, updated_at = NOW()
		WHERE id = $1 AND account_id = $2
		RETURNING active
	`, id, accountID).Scan(&active)
	if err == sql.ErrNoRows {
		return false, automation.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle automation: %w", err)
	}
	return active, nil
}

// Increment bumps a counter column in place. The column name comes from a
// fixed set, never from input.
func (r *AutomationRepo) Increment(ctx context.Context, accountID, id string, counter domain.AnalyticsCounter) error {
	var col string
	switch counter {
	case domain.CounterSent:
		col = "total_sent"
	case domain.CounterOpened:
		col = "total_opened"
	case domain.CounterClicked:
		col = "total_clicked"
	default:
		return automation.ErrInvalidCounter
	}
	if !isUUID(id) {
		return automation.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE automations SET %[1]s = %[1]s + 1 WHERE id = $1 AND account_id = $2`, col), id, accountID)
	if err != nil {
		return fmt.Errorf("increment %s: %w", col, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return automation.ErrNotFound
	}
	return nil
}

// FindActive is served by idx_automations_account_trigger_active.
func (r *AutomationRepo) FindActive(ctx context.Context, accountID string, trigger domain.TriggerType) ([]domain.Automation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+automationColumns+`
		FROM automations
		WHERE account_id = $1 AND trigger = $2 AND active = true
		ORDER BY created_at
	`, accountID, trigger)
	if err != nil {
		return nil, fmt.Errorf("find active automations: %w", err)
	}
	defer rows.Close()
	return collectAutomations(rows)
}

func collectAutomations(rows *sql.Rows) ([]domain.Automation, error) {
	var out []domain.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan automation: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate automations: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
