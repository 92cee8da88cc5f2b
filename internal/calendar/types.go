package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// dateLayout is the layout Google uses for all-day event dates.
const dateLayout = "2006-01-02"

// EventTime is the start or end of an event exactly as Google returns it.
// All-day events carry Date; timed events carry DateTime.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Resolve returns the instant this EventTime denotes, expressed in loc.
// A date-only value is widened to midnight of that date in loc.
// The boolean is false when neither field parses.
func (t EventTime) Resolve(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed.In(loc), true
		}
	}
	if t.Date != "" {
		if parsed, err := time.ParseInLocation(dateLayout, t.Date, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Event is a read-only calendar event.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// Buckets groups events by the period they start in. Membership is not
// exclusive: an event starting today is also in ThisWeek and ThisMonth.
type Buckets struct {
	Today     []Event `json:"today"`
	ThisWeek  []Event `json:"thisWeek"`
	ThisMonth []Event `json:"thisMonth"`
}

// toEvent converts a Google Calendar event to an Event
func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}

	e := Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}
	if event.Start != nil {
		e.Start = toEventTime(event.Start)
	}
	if event.End != nil {
		e.End = toEventTime(event.End)
	}
	return e
}

func toEventTime(dt *calendar.EventDateTime) EventTime {
	return EventTime{
		Date:     dt.Date,
		DateTime: dt.DateTime,
		TimeZone: dt.TimeZone,
	}
}
