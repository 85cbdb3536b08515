package stats

import "time"

// DateLayout is the calendar date format used by schedule rows.
const DateLayout = "2006-01-02"

// Schedule labels.
const (
	RaceCompleted = "completed"
	RaceNext      = "next"
	RaceUpcoming  = "upcoming"
)

// ScheduleEntry is one scheduled race. Date uses DateLayout so entries
// compare lexically.
type ScheduleEntry struct {
	ID     int64  `json:"id"`
	Season string `json:"season"`
	Track  string `json:"track"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status,omitempty"`
}

// Defaults reported for a race missing from the schedule.
const (
	UnscheduledDate = "TBD"
	DefaultRaceTime = "19:00:00"
)

// RaceSlot is the date and start time of one race.
type RaceSlot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// RaceSlotFor finds track in entries. Missing races and empty fields fall
// back to UnscheduledDate and DefaultRaceTime.
func RaceSlotFor(entries []ScheduleEntry, track string) RaceSlot {
	slot := RaceSlot{Date: UnscheduledDate, Time: DefaultRaceTime}
	for _, e := range entries {
		if e.Track != track {
			continue
		}
		if e.Date != "" {
			slot.Date = e.Date
		}
		if e.Time != "" {
			slot.Time = e.Time
		}
		break
	}
	return slot
}

// Today formats now as a schedule date in UTC.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// RaceStatus labels a race date relative to today and the date of the next
// race.
func RaceStatus(date, today, nextDate string) string {
	switch {
	case date < today:
		return RaceCompleted
	case date == nextDate:
		return RaceNext
	default:
		return RaceUpcoming
	}
}

// LabelSchedule returns a copy of entries with Status filled in. Entries
// must be ordered by date. The first race on or after today is next.
func LabelSchedule(entries []ScheduleEntry, today string) []ScheduleEntry {
	out := make([]ScheduleEntry, len(entries))
	copy(out, entries)
	var next string
	for _, e := range out {
		if e.Date >= today {
			next = e.Date
			break
		}
	}
	for i := range out {
		out[i].Status = RaceStatus(out[i].Date, today, next)
	}
	return out
}

// NextRace picks the first race on or after today, falling back to the
// earliest race. It reports false for an empty schedule.
func NextRace(entries []ScheduleEntry, today string) (ScheduleEntry, bool) {
	if len(entries) == 0 {
		return ScheduleEntry{}, false
	}
	var next, earliest *ScheduleEntry
	for i := range entries {
		e := &entries[i]
		if earliest == nil || e.Date < earliest.Date {
			earliest = e
		}
		if e.Date >= today && (next == nil || e.Date < next.Date) {
			next = e
		}
	}
	if next != nil {
		return *next, true
	}
	return *earliest, true
}

// LastRace picks the latest race strictly before today.
func LastRace(entries []ScheduleEntry, today string) (ScheduleEntry, bool) {
	var last *ScheduleEntry
	for i := range entries {
		e := &entries[i]
		if e.Date < today && (last == nil || e.Date > last.Date) {
			last = e
		}
	}
	if last == nil {
		return ScheduleEntry{}, false
	}
	return *last, true
}
