package domain

import "time"

// EventSnapshot is the read-only view of a booking, tenancy or payment that
// the host application hands over when a business event fires. Only the
// fields needed for timing, scoping and template substitution are carried.
type EventSnapshot struct {
	BookingID string `json:"booking_id,omitempty"`
	TenantID  string `json:"tenant_id,omitempty"`

	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email,omitempty"`
	GuestPhone string `json:"guest_phone,omitempty"`
	GuestCount int    `json:"guest_count,omitempty"`

	PropertyID      string `json:"property_id"`
	PropertyName    string `json:"property_name"`
	PropertyAddress string `json:"property_address,omitempty"`
	RentalType      string `json:"rental_type,omitempty"`
	// Timezone is an IANA zone name used for time-of-day overrides.
	Timezone string `json:"timezone,omitempty"`

	CheckIn      *time.Time `json:"check_in,omitempty"`
	CheckOut     *time.Time `json:"check_out,omitempty"`
	CheckInTime  string     `json:"check_in_time,omitempty"`  // property default, "HH:MM"
	CheckOutTime string     `json:"check_out_time,omitempty"` // property default, "HH:MM"

	Amount        float64    `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ReferenceCode string     `json:"reference_code,omitempty"`
}

// Recipient returns the guest or tenant contact carried by the snapshot.
func (s EventSnapshot) Recipient() Recipient {
	return Recipient{Name: s.GuestName, Email: s.GuestEmail, Phone: s.GuestPhone}
}

// Nights is the length of stay, zero when either date is missing.
func (s EventSnapshot) Nights() int {
	if s.CheckIn == nil || s.CheckOut == nil {
		return 0
	}
	d := s.CheckOut.Sub(*s.CheckIn).Hours() / 24
	if d < 0 {
		return 0
	}
	return int(d + 0.5)
}

// AnchorTime resolves the anchor date for a trigger. ok is false when the
// snapshot lacks the date the trigger needs.
func (s EventSnapshot) AnchorTime(anchor Anchor, now time.Time) (t time.Time, ok bool) {
	switch anchor {
	case AnchorCheckIn:
		if s.CheckIn == nil {
			return time.Time{}, false
		}
		return *s.CheckIn, true
	case AnchorCheckOut:
		if s.CheckOut == nil {
			return time.Time{}, false
		}
		return *s.CheckOut, true
	case AnchorDueDate:
		if s.DueDate == nil {
			return now, true
		}
		return *s.DueDate, true
	default:
		return now, true
	}
}
