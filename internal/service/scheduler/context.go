package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/guestcomms/internal/domain"
)

const displayDate = "Monday, January 2, 2006"

// BuildContext maps an event snapshot to the template context. Flat
// camelCase keys ({{guestName}}) and nested groups ({{guest.name}},
// {{property.name}}, {{booking.checkIn}}, {{payment.amount}}) carry the same
// pre-formatted display strings. Empty snapshot fields are left out so
// templating.Validate reports them as missing.
func BuildContext(s domain.EventSnapshot) map[string]any {
	ctx := map[string]any{}
	guest := map[string]any{}
	property := map[string]any{}
	booking := map[string]any{}
	payment := map[string]any{}

	put := func(group map[string]any, nestedKey, flatKey, val string) {
		if val == "" {
			return
		}
		group[nestedKey] = val
		ctx[flatKey] = val
	}

	put(guest, "name", "guestName", s.GuestName)
	put(guest, "firstName", "guestFirstName", firstName(s.GuestName))
	put(guest, "email", "guestEmail", s.GuestEmail)
	put(guest, "phone", "guestPhone", s.GuestPhone)
	if s.GuestCount > 0 {
		put(guest, "count", "guestCount", strconv.Itoa(s.GuestCount))
	}

	put(property, "name", "propertyName", s.PropertyName)
	put(property, "address", "propertyAddress", s.PropertyAddress)

	put(booking, "id", "bookingId", s.BookingID)
	put(booking, "reference", "referenceCode", s.ReferenceCode)
	if s.CheckIn != nil {
		put(booking, "checkIn", "checkInDate", s.CheckIn.Format(displayDate))
	}
	if s.CheckOut != nil {
		put(booking, "checkOut", "checkOutDate", s.CheckOut.Format(displayDate))
	}
	put(booking, "checkInTime", "checkInTime", s.CheckInTime)
	put(booking, "checkOutTime", "checkOutTime", s.CheckOutTime)
	if n := s.Nights(); n > 0 {
		put(booking, "nights", "nights", strconv.Itoa(n))
	}

	if s.Amount != 0 {
		put(payment, "amount", "amount", FormatAmount(s.Amount, s.Currency))
	}
	put(payment, "currency", "currency", strings.ToUpper(s.Currency))
	if s.DueDate != nil {
		put(payment, "dueDate", "dueDate", s.DueDate.Format(displayDate))
	}
	if s.ReferenceCode != "" {
		payment["reference"] = s.ReferenceCode
	}

	// Long-term rentals address the same person as the tenant.
	if name, ok := ctx["guestName"]; ok {
		ctx["tenantName"] = name
	}
	ctx["tenant"] = guest
	ctx["guest"] = guest
	ctx["property"] = property
	ctx["booking"] = booking
	ctx["payment"] = payment
	return ctx
}

// SampleContext is the synthetic context used for test sends when no real
// booking is supplied.
func SampleContext(now time.Time) map[string]any {
	checkIn := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 7)
	checkOut := checkIn.AddDate(0, 0, 3)
	due := checkIn.AddDate(0, 0, -14)
	return BuildContext(domain.EventSnapshot{
		BookingID:       "sample-booking",
		GuestName:       "Alex Morgan",
		GuestEmail:      "alex@example.com",
		GuestPhone:      "+15550100123",
		GuestCount:      2,
		PropertyName:    "Seaside Cottage",
		PropertyAddress: "12 Harbour Road, Portsmouth",
		CheckIn:         &checkIn,
		CheckOut:        &checkOut,
		CheckInTime:     "15:00",
		CheckOutTime:    "11:00",
		Amount:          1250,
		Currency:        "USD",
		DueDate:         &due,
		ReferenceCode:   "BK-10234",
	})
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AUD": "A$",
	"CAD": "C$",
}

// FormatAmount renders an amount with thousands separators and two decimals,
// prefixed by the currency symbol when known or the ISO code otherwise.
func FormatAmount(amount float64, currency string) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	num := b.String() + frac

	code := strings.ToUpper(currency)
	if sym, ok := currencySymbols[code]; ok {
		num = sym + num
	} else if code != "" {
		num = fmt.Sprintf("%s %s", code, num)
	}
	if neg {
		num = "-" + num
	}
	return num
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
