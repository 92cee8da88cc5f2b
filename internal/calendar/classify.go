package calendar

import "time"

// Classify files events into the today, this-week and this-month buckets
// relative to now, using now's location for every calendar-date
// comparison.
//
// The week runs Sunday through Saturday. ThisMonth receives every event;
// callers restrict the input to the current month with MonthWindow.
// Events whose start cannot be resolved only appear in ThisMonth.
// Input order is preserved within each bucket.
func Classify(now time.Time, events []Event) Buckets {
	loc := now.Location()
	todayStart := startOfDay(now)
	weekStart := todayStart.AddDate(0, 0, -int(todayStart.Weekday()))
	nextWeekStart := weekStart.AddDate(0, 0, 7)

	b := Buckets{
		Today:     []Event{},
		ThisWeek:  []Event{},
		ThisMonth: make([]Event, 0, len(events)),
	}

	for _, ev := range events {
		b.ThisMonth = append(b.ThisMonth, ev)

		start, ok := ev.Start.Resolve(loc)
		if !ok {
			continue
		}
		if sameDate(start, todayStart) {
			b.Today = append(b.Today, ev)
		}
		if !start.Before(weekStart) && start.Before(nextWeekStart) {
			b.ThisWeek = append(b.ThisWeek, ev)
		}
	}

	return b
}

// MonthWindow returns the range events should be fetched for: from
// midnight today until the last second of the current month, both in
// now's location.
func MonthWindow(now time.Time) (start, end time.Time) {
	start = startOfDay(now)
	y, m, _ := now.Date()
	end = time.Date(y, m+1, 0, 23, 59, 59, 0, now.Location())
	return start, end
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
