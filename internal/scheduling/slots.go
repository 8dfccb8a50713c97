package scheduling

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSlotLength is the fixed length of generated slots
	DefaultSlotLength = 2 * time.Hour
	// DefaultHorizonDays is the rolling window slots are generated for
	DefaultHorizonDays = 30
)

// GenerateSlots expands a weekly template into fixed-length slots for
// horizonDays days starting at from's date. Trailing remainders of a window
// shorter than slotLength produce no slot.
func GenerateSlots(providerID uuid.UUID, template WeekTemplate, from time.Time, horizonDays int, slotLength time.Duration) []TimeSlot {
	length := ClockTime(slotLength / time.Minute)
	if length <= 0 || horizonDays <= 0 {
		return nil
	}

	byWeekday := make(map[time.Weekday][]DayWindow, len(template))
	for name, windows := range template {
		if wd, ok := weekdays[name]; ok {
			byWeekday[wd] = append(byWeekday[wd], windows...)
		}
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	now := time.Now().UTC()

	var slots []TimeSlot
	for d := 0; d < horizonDays; d++ {
		day := start.AddDate(0, 0, d)
		windows := append([]DayWindow(nil), byWeekday[day.Weekday()]...)
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

		for _, w := range windows {
			for s := w.Start; s+length <= w.End; s += length {
				slots = append(slots, TimeSlot{
					ID:          uuid.New(),
					ProviderID:  providerID,
					Date:        DateOf(day),
					StartTime:   s,
					EndTime:     s + length,
					IsAvailable: w.IsAvailable,
					CreatedAt:   now,
					UpdatedAt:   now,
				})
			}
		}
	}
	return slots
}

// withoutOverlaps drops generated slots that intersect any kept slot
func withoutOverlaps(generated, kept []TimeSlot) []TimeSlot {
	out := generated[:0:0]
	for _, g := range generated {
		clash := false
		for _, k := range kept {
			if g.Window().Overlaps(k.Window()) {
				clash = true
				break
			}
		}
		if !clash {
			out = append(out, g)
		}
	}
	return out
}
