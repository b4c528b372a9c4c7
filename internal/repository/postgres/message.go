package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/service/message"
)

// MessageRepo implements message.Repository against PostgreSQL. Every status
// change is a single UPDATE guarded by the expected current status.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed scheduled message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `
	id, account_id, automation_id::text, booking_id, tenant_id, trigger, channel,
	recipient_name, COALESCE(recipient_email,''), COALESCE(recipient_phone,''),
	COALESCE(subject,''), body, scheduled_for, status,
	sent_at, delivered_at, opened_at, clicked_at,
	COALESCE(error_message,''), COALESCE(provider_message_id,''), created_at, updated_at`

func scanMessage(row rowScanner) (*domain.ScheduledMessage, error) {
	m := &domain.ScheduledMessage{}
	var automationID, bookingID, tenantID sql.NullString
	var sentAt, deliveredAt, openedAt, clickedAt sql.NullTime
	err := row.Scan(
		&m.ID, &m.AccountID, &automationID, &bookingID, &tenantID, &m.Trigger, &m.Channel,
		&m.Recipient.Name, &m.Recipient.Email, &m.Recipient.Phone,
		&m.Subject, &m.Body, &m.ScheduledFor, &m.Status,
		&sentAt, &deliveredAt, &openedAt, &clickedAt,
		&m.ErrorMessage, &m.ProviderMessageID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.AutomationID = nullString(automationID)
	m.BookingID = nullString(bookingID)
	m.TenantID = nullString(tenantID)
	m.SentAt = nullTime(sentAt)
	m.DeliveredAt = nullTime(deliveredAt)
	m.OpenedAt = nullTime(openedAt)
	m.ClickedAt = nullTime(clickedAt)
	return m, nil
}

// Create inserts a pending message. A repeated dedup key is absorbed by the
// partial unique index and reported as message.ErrDuplicate.
func (r *MessageRepo) Create(ctx context.Context, m *domain.ScheduledMessage) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_messages
			(id, account_id, automation_id, booking_id, tenant_id, trigger, channel,
			 recipient_name, recipient_email, recipient_phone, subject, body,
			 scheduled_for, status, dedup_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), $12,
		        $13, $14, NULLIF($15,''), $16, $16)
		ON CONFLICT (dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
	`, m.ID, m.AccountID, m.AutomationID, m.BookingID, m.TenantID, m.Trigger, m.Channel,
		m.Recipient.Name, m.Recipient.Email, m.Recipient.Phone, m.Subject, m.Body,
		m.ScheduledFor, m.Status, m.DedupKey, m.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return message.ErrDuplicate
		}
		return fmt.Errorf("create scheduled message: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return message.ErrDuplicate
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, accountID, id string) (*domain.ScheduledMessage, error) {
	if !isUUID(id) {
		return nil, message.ErrNotFound
	}
	m, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM scheduled_messages WHERE id = $1 AND account_id = $2`, id, accountID))
	if err == sql.ErrNoRows {
		return nil, message.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) List(ctx context.Context, accountID string, f message.ListFilter) ([]domain.ScheduledMessage, int, error) {
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
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.BookingID != "" {
		add("booking_id = $%d", f.BookingID)
	}
	if f.AutomationID != "" {
		add("automation_id::text = $%d", f.AutomationID)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_messages WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scheduled messages: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM scheduled_messages WHERE %s ORDER BY scheduled_for DESC LIMIT $%d OFFSET $%d`,
		messageColumns, cond, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scheduled messages: %w", err)
	}
	defer rows.Close()

	out, err := collectMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListDue is served by idx_scheduled_messages_due (status, scheduled_for).
func (r *MessageRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due messages: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// Transition is the conditional status update. Zero rows affected means the
// message was no longer in the expected status.
func (r *MessageRepo) Transition(ctx context.Context, id string, from, to domain.MessageStatus, f message.TransitionFields) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}

	sets := []string{"status = $3", "updated_at = $4"}
	args := []any{id, from, to, at}
	switch to {
	case domain.MessageSent:
		sets = append(sets, "sent_at = $4", "provider_message_id = NULLIF($5,'')")
		args = append(args, f.ProviderMessageID)
	case domain.MessageDelivered:
		sets = append(sets, "delivered_at = $4")
	case domain.MessageFailed:
		sets = append(sets, "error_message = $5")
		args = append(args, f.ErrorMessage)
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE scheduled_messages SET %s WHERE id = $1 AND status = $2`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// MarkEngagement stamps opened_at or clicked_at only while it is still NULL,
// so concurrent webhooks count once.
func (r *MessageRepo) MarkEngagement(ctx context.Context, accountID, id string, event domain.EngagementEvent, at time.Time) (bool, error) {
	var col string
	switch event {
	case domain.EventOpened:
		col = "opened_at"
	case domain.EventClicked:
		col = "clicked_at"
	default:
		return false, nil
	}
	if !isUUID(id) {
		return false, message.ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE scheduled_messages SET %[1]s = $3, updated_at = $3
		WHERE id = $1 AND account_id = $2 AND %[1]s IS NULL AND status IN ('sent','delivered')
	`, col), id, accountID, at)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", col, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM scheduled_messages WHERE id = $1 AND account_id = $2)`, id, accountID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check message: %w", err)
	}
	if !exists {
		return false, message.ErrNotFound
	}
	return false, nil
}

func (r *MessageRepo) FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE status = 'sending' AND updated_at < $1
	`, cutoff, reason)
	if err != nil {
		return 0, fmt.Errorf("fail stale messages: %w", err)
	}
	return res.RowsAffected()
}

func collectMessages(rows *sql.Rows) ([]domain.ScheduledMessage, error) {
	var out []domain.ScheduledMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled message: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled messages: %w", err)
	}
	return out, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
