package scheduling

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

// ClockTime is a time of day in minutes after midnight. 24:00 is allowed as an end bound.
type ClockTime int

// ParseClock parses "HH:MM" (or "HH:MM:SS" as returned by Postgres TIME columns)
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return ClockTime(24 * 60), nil
	}
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// MustClock parses s and panics on error. Intended for literals.
func MustClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Valid reports whether c lies within a day
func (c ClockTime) Valid() bool {
	return c >= 0 && c <= 24*60
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

func (c *ClockTime) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseClock(v)
		*c = parsed
		return err
	case []byte:
		parsed, err := ParseClock(string(v))
		*c = parsed
		return err
	case time.Time:
		*c = ClockTime(v.Hour()*60 + v.Minute())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

// Date is a calendar date in YYYY-MM-DD form
type Date string

// ParseDate validates s as a calendar date
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q", s)
	}
	return Date(t.Format(dateLayout)), nil
}

// DateOf returns the calendar date of t in t's location
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time returns midnight of the date in loc
func (d Date) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, string(d), loc)
}

func (d Date) String() string {
	return string(d)
}

func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		*d = parsed
		return err
	case []byte:
		parsed, err := ParseDate(string(v))
		*d = parsed
		return err
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Window is a half-open interval [Start, End) on one date
type Window struct {
	Date  Date      `json:"date"`
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
}

// Validate checks the window is a well-formed, non-empty interval
func (w Window) Validate() error {
	if _, err := ParseDate(string(w.Date)); err != nil {
		return err
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("time of day out of range")
	}
	if w.Start >= w.End {
		return fmt.Errorf("start time %s must be before end time %s", w.Start, w.End)
	}
	return nil
}

// Overlaps reports whether two windows on the same date intersect.
// Back-to-back windows (one ends where the other starts) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Date == o.Date && w.Start < o.End && o.Start < w.End
}

// StartsAt returns the window start as an instant in loc
func (w Window) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := w.Date.Time(loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(w.Start) * time.Minute), nil
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", w.Date, w.Start, w.End)
}

// TimeSlot is a fixed-length provider availability window, bookable at most once
type TimeSlot struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ProviderID  uuid.UUID  `json:"provider_id" db:"provider_id"`
	Date        Date       `json:"date" db:"slot_date"`
	StartTime   ClockTime  `json:"start_time" db:"start_time"`
	EndTime     ClockTime  `json:"end_time" db:"end_time"`
	IsAvailable bool       `json:"is_available" db:"is_available"`
	IsBooked    bool       `json:"is_booked" db:"is_booked"`
	TaskID      *uuid.UUID `json:"task_id,omitempty" db:"task_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Window returns the slot's interval
func (s TimeSlot) Window() Window {
	return Window{Date: s.Date, Start: s.StartTime, End: s.EndTime}
}

// Free reports whether the slot can be reserved
func (s TimeSlot) Free() bool {
	return s.IsAvailable && !s.IsBooked
}

// BookingStatus is the state of a booking
type BookingStatus string

const (
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCancelled   BookingStatus = "cancelled"
	BookingCompleted   BookingStatus = "completed"
	BookingRescheduled BookingStatus = "rescheduled"
)

// Booking binds a task to one provider time slot
type Booking struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	ProviderID  uuid.UUID     `json:"provider_id" db:"provider_id"`
	ClientID    uuid.UUID     `json:"client_id" db:"client_id"`
	TaskID      uuid.UUID     `json:"task_id" db:"task_id"`
	SlotID      uuid.UUID     `json:"slot_id" db:"slot_id"`
	Date        Date          `json:"date" db:"booking_date"`
	StartTime   ClockTime     `json:"start_time" db:"start_time"`
	EndTime     ClockTime     `json:"end_time" db:"end_time"`
	Status      BookingStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// Window returns the booked interval
func (b Booking) Window() Window {
	return Window{Date: b.Date, Start: b.StartTime, End: b.EndTime}
}

// Active reports whether the booking still holds its slot
func (b Booking) Active() bool {
	return b.Status == BookingConfirmed || b.Status == BookingRescheduled
}

// DayWindow is one recurring availability window within a weekday
type DayWindow struct {
	Start       ClockTime `json:"start"`
	End         ClockTime `json:"end"`
	IsAvailable bool      `json:"is_available"`
}

// WeekTemplate maps lower-case weekday names to their recurring windows
type WeekTemplate map[string][]DayWindow

// Validate checks weekday names, window bounds and that windows of one day
// do not overlap. Touching windows are allowed.
func (t WeekTemplate) Validate() error {
	for day, windows := range t {
		if _, ok := weekdays[day]; !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, w := range windows {
			if !w.Start.Valid() || !w.End.Valid() || w.Start >= w.End {
				return fmt.Errorf("invalid window %s-%s on %s", w.Start, w.End, day)
			}
		}
		sorted := slices.Clone(windows)
		slices.SortFunc(sorted, func(a, b DayWindow) int { return int(a.Start - b.Start) })
		for i := 1; i < len(sorted); i++ {
			if sorted[i].Start < sorted[i-1].End {
				return fmt.Errorf("window %s-%s overlaps %s-%s on %s",
					sorted[i].Start, sorted[i].End, sorted[i-1].Start, sorted[i-1].End, day)
			}
		}
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeeklySchedule is the recurring template a provider's slots are generated from
type WeeklySchedule struct {
	ProviderID uuid.UUID                        `json:"provider_id" db:"provider_id"`
	Days       datatypes.JSONType[WeekTemplate] `json:"days" db:"days"`
	Timezone   string                           `json:"timezone" db:"timezone"`
	UpdatedAt  time.Time                        `json:"updated_at" db:"updated_at"`
}

// Template returns the schedule's week template
func (s WeeklySchedule) Template() WeekTemplate {
	return s.Days.Data()
}

// Location resolves the schedule's timezone, defaulting to UTC
func (s WeeklySchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
