// Package calendar reads Google Calendar events and sorts them into the
// time buckets shown next to the goal tiers.
//
// Two pieces live here. Client is a thin wrapper over the Calendar v3 API
// that lists the single (expanded) events of a calendar within a window,
// ordered by start time. Classify is a pure function that files those
// events into today, this week and this month relative to a reference
// instant; it never talks to the network and is safe for concurrent use.
//
// Example usage:
//
//	client, err := calendar.NewClientForAccount(ctx, email, sessions, oauthConfig)
//	if err != nil {
//	    return err
//	}
//
//	now := time.Now()
//	from, to := calendar.MonthWindow(now)
//	events, err := client.ListEvents(ctx, calendar.PrimaryCalendarID, from, to)
//	if err != nil {
//	    return err
//	}
//	buckets := calendar.Classify(now, events)
package calendar
