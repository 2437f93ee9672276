package google

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/outlook-todo/pkg/auth"
	"github.com/harrisonrobin/outlook-todo/pkg/colors"
	"github.com/harrisonrobin/outlook-todo/pkg/index"
)

// PrimaryCalendar selects the user's primary calendar without a lookup.
const PrimaryCalendar = "primary"

// NewClient creates a Google Calendar client for the calendar named
// calendarName, authenticating with the stored user token.
func NewClient(ctx context.Context, calendarName string, idx *index.EventIndex, cache *colors.ColorCache) (*CalendarClient, error) {
	srv, err := auth.CalendarService(ctx)
	if err != nil {
		return nil, err
	}

	calendarID, err := FindCalendarID(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, cache), nil
}

// FindCalendarID resolves a calendar summary to its id.
func FindCalendarID(ctx context.Context, srv *calendar.Service, calendarName string) (string, error) {
	if calendarName == "" || calendarName == PrimaryCalendar {
		return PrimaryCalendar, nil
	}

	var calendarID string
	err := srv.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			if calendarID == "" && item.Summary == calendarName {
				calendarID = item.Id
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	if calendarID == "" {
		return "", fmt.Errorf("calendar '%s' not found", calendarName)
	}
	return calendarID, nil
}
