package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/guestcomms/internal/domain"
	"github.com/ignite/guestcomms/internal/service/scheduler"
)

// BookingSnapshots reads event snapshots from the host application's
// bookings and properties tables. It never writes.
type BookingSnapshots struct{ db *sql.DB }

// NewBookingSnapshots creates a Postgres-backed snapshot loader.
func NewBookingSnapshots(db *sql.DB) *BookingSnapshots { return &BookingSnapshots{db: db} }

// LoadBooking returns the current snapshot of a booking.
func (r *BookingSnapshots) LoadBooking(ctx context.Context, accountID, bookingID string) (*domain.EventSnapshot, error) {
	s := &domain.EventSnapshot{BookingID: bookingID}
	var (
		email, phone, address, tz, rentalType sql.NullString
		checkInTime, checkOutTime, currency   sql.NullString
		reference                             sql.NullString
		guests                                sql.NullInt64
		amount                                sql.NullFloat64
		checkIn, checkOut, due                sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT b.guest_name, b.guest_email, b.guest_phone, b.guest_count,
		       p.id::text, p.name, p.address, p.timezone, p.rental_type,
		       b.check_in, b.check_out, p.check_in_time, p.check_out_time,
		       b.total_amount, b.currency, b.balance_due_date, b.reference_code
		FROM bookings b
		JOIN properties p ON p.id = b.property_id
		WHERE b.id::text = $1 AND b.account_id = $2
	`, bookingID, accountID).Scan(
		&s.GuestName, &email, &phone, &guests,
		&s.PropertyID, &s.PropertyName, &address, &tz, &rentalType,
		&checkIn, &checkOut, &checkInTime, &checkOutTime,
		&amount, &currency, &due, &reference,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scheduler.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking snapshot: %w", err)
	}

	s.GuestEmail = email.String
	s.GuestPhone = phone.String
	s.GuestCount = int(guests.Int64)
	s.PropertyAddress = address.String
	s.Timezone = tz.String
	s.RentalType = rentalType.String
	s.CheckIn = nullTime(checkIn)
	s.CheckOut = nullTime(checkOut)
	s.CheckInTime = checkInTime.String
	s.CheckOutTime = checkOutTime.String
	s.Amount = amount.Float64
	s.Currency = currency.String
	s.DueDate = nullTime(due)
	s.ReferenceCode = reference.String
	return s, nil
}
