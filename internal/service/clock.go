package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/noah-isme/hostel-outing-api/internal/models"
)

// Clock abstracts wall time so schedules can be driven from tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// calendarDay returns the date t falls on in loc as a UTC midnight value,
// matching how DATE columns are scanned.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	start := now.With(t.In(loc)).BeginningOfDay()
	y, m, d := start.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayWindow returns [day, day+1) for the calendar day containing t in loc.
func dayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	day := calendarDay(t, loc)
	return day, day.AddDate(0, 0, 1)
}

// SweepClock is an HH:MM time of day at which the daily sweep fires.
type SweepClock struct {
	Hour   int
	Minute int
}

// ParseSweepClock parses an HH:MM string.
func ParseSweepClock(value string) (SweepClock, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return SweepClock{}, fmt.Errorf("parse sweep time %q: %w", value, err)
	}
	return SweepClock{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// On returns the sweep instant on the given calendar day in loc.
func (c SweepClock) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

// Next returns the first sweep instant strictly after t.
func (c SweepClock) Next(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	candidate := c.On(now.With(local).BeginningOfDay(), loc)
	if !candidate.After(local) {
		candidate = c.On(now.With(local).BeginningOfDay().AddDate(0, 0, 1), loc)
	}
	return candidate
}

// String renders the clock as HH:MM.
func (c SweepClock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// passDeadline is the instant a pass for o stops being honoured. An outgoing
// pass lapses at the sweep on the outing day; an incoming pass at the sweep
// on the scheduled return day.
func passDeadline(o *models.OutingRequest, direction models.Direction, sweep SweepClock, loc *time.Location) time.Time {
	if direction == models.DirectionOutgoing {
		return sweep.On(o.OutingDate, loc)
	}
	return sweep.On(o.ReturnDate, loc)
}
