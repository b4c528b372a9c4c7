package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignite/guestcomms/internal/domain"
)

// ErrMissingAnchor is returned when the snapshot lacks the date the trigger
// is anchored on (a check-in reminder for a booking without a check-in).
var ErrMissingAnchor = errors.New("event snapshot has no anchor date for trigger")

// ComputeScheduledFor returns the send time for an automation fired by
// snapshot at now: the trigger's anchor date plus offsetHours, with the
// wall-clock hour and minute replaced by timeOfDay when set.
//
// Stay and due dates are calendar dates, so their wall clock is read in the
// property's zone when snapshot.Timezone is set. When timeOfDay is empty, a
// check-in or check-out anchor at midnight takes the property's default
// check-in/out time before the offset is added. With timeOfDay set, a
// date-only anchor stays at midnight, so a negative offset can move the send
// to the previous day.
func ComputeScheduledFor(trigger domain.TriggerType, offsetHours int, timeOfDay string, snapshot domain.EventSnapshot, now time.Time) (time.Time, error) {
	loc, err := snapshotLocation(snapshot)
	if err != nil {
		return time.Time{}, err
	}

	anchorKind := trigger.Anchor()
	anchor, ok := snapshot.AnchorTime(anchorKind, now)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", trigger, ErrMissingAnchor)
	}

	switch {
	case loc == nil:
		loc = anchor.Location()
	case anchorKind == domain.AnchorNow:
		anchor = anchor.In(loc)
	default:
		anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(),
			anchor.Hour(), anchor.Minute(), anchor.Second(), 0, loc)
	}

	if timeOfDay == "" && isMidnight(anchor) {
		var def string
		switch anchorKind {
		case domain.AnchorCheckIn:
			def = snapshot.CheckInTime
		case domain.AnchorCheckOut:
			def = snapshot.CheckOutTime
		}
		if h, m, err := domain.ParseTimeOfDay(def); def != "" && err == nil {
			anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), h, m, 0, 0, loc)
		}
	}

	at := anchor.Add(time.Duration(offsetHours) * time.Hour)

	if timeOfDay != "" {
		h, m, err := domain.ParseTimeOfDay(timeOfDay)
		if err != nil {
			return time.Time{}, err
		}
		at = at.In(loc)
		at = time.Date(at.Year(), at.Month(), at.Day(), h, m, 0, 0, loc)
	}
	return at, nil
}

func snapshotLocation(s domain.EventSnapshot) (*time.Location, error) {
	if s.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}
