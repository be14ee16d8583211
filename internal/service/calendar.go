package service

import (
	"context"
	"strings"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/fanout"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/routing"
)

// defaultWindow is the span used when only one bound of an event range is
// given.
const defaultWindow = 30 * 24 * time.Hour

// GetEventsRequest selects events overlapping [Start, End). Without
// bounds the window is today through thirty days from now.
type GetEventsRequest struct {
	AccountID  string     `json:"accountId" form:"accountId"`
	CalendarID string     `json:"calendarId" form:"calendarId"`
	Start      *time.Time `json:"startDate,omitempty" form:"startDate" time_format:"2006-01-02T15:04:05Z07:00"`
	End        *time.Time `json:"endDate,omitempty" form:"endDate" time_format:"2006-01-02T15:04:05Z07:00"`
	Count      int        `json:"count" form:"count"`
}

// CreateEventRequest is a new event. Without AccountID the account is
// routed from the first attendee's domain.
type CreateEventRequest struct {
	AccountID string `json:"accountId"`
	model.NewEvent
}

// UpdateEventRequest changes fields of an existing event.
type UpdateEventRequest struct {
	AccountID  string            `json:"accountId"`
	CalendarID string            `json:"calendarId"`
	EventID    string            `json:"eventId"`
	Update     model.EventUpdate `json:"update"`
}

// ListCalendars returns calendars across the target accounts in registry
// order.
func (s *Service) ListCalendars(ctx context.Context, accountID string) (*fanout.Result[model.CalendarInfo], error) {
	targets, err := s.readTargets(accountID)
	if err != nil {
		return nil, err
	}

	res, err := fanout.Execute(ctx, s.engine, OpListCalendars, targets,
		func(ctx context.Context, b provider.Backend, acct model.Account) ([]model.CalendarInfo, error) {
			return b.ListCalendars(ctx, acct)
		}, nil)
	recordStatuses(ctx, s, OpListCalendars, res)
	return res, err
}

// GetCalendarEvents returns events across the target accounts, earliest
// start first.
func (s *Service) GetCalendarEvents(ctx context.Context, req GetEventsRequest) (*fanout.Result[model.CalendarEvent], error) {
	if req.Count < 0 {
		return nil, invalid("count must not be negative")
	}
	start, end := s.eventWindow(req.Start, req.End)
	if !end.After(start) {
		return nil, invalid("endDate must be after startDate")
	}
	count := req.Count
	if count == 0 {
		count = DefaultEventCount
	}

	targets, err := s.readTargets(req.AccountID)
	if err != nil {
		return nil, err
	}

	q := provider.EventQuery{
		CalendarID: strings.TrimSpace(req.CalendarID),
		Start:      start,
		End:        end,
		Count:      count,
	}
	res, err := fanout.Execute(ctx, s.engine, OpGetCalendarEvents, targets,
		func(ctx context.Context, b provider.Backend, acct model.Account) ([]model.CalendarEvent, error) {
			return b.GetCalendarEvents(ctx, acct, q)
		}, fanout.ByStartAsc)
	recordStatuses(ctx, s, OpGetCalendarEvents, res)
	return res, err
}

func (s *Service) eventWindow(from, to *time.Time) (time.Time, time.Time) {
	switch {
	case from != nil && to != nil:
		return *from, *to
	case from != nil:
		return *from, from.Add(defaultWindow)
	case to != nil:
		return to.Add(-defaultWindow), *to
	default:
		return provider.DefaultEventWindow(s.now())
	}
}

// CreateEvent creates an event on the named or routed account.
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (WriteOutcome, error) {
	var out WriteOutcome

	ev := req.NewEvent
	ev.Subject = strings.TrimSpace(ev.Subject)
	ev.Attendees = cleanAddresses(ev.Attendees)
	switch {
	case ev.Subject == "":
		return fail(&out, invalid("subject is required"))
	case ev.Start.IsZero() || ev.End.IsZero():
		return fail(&out, invalid("start and end are required"))
	case !ev.End.After(ev.Start):
		return fail(&out, invalid("end must be after start"))
	}

	recipient := ""
	if len(ev.Attendees) > 0 {
		recipient = ev.Attendees[0]
	}
	acct, reason, err := s.selectAccount(req.AccountID, recipient)
	out.Routing = reason
	if err != nil {
		return fail(&out, err)
	}

	out.CalendarUsed = calendarOrDefault(ev.CalendarID)
	err = s.write(ctx, OpCreateEvent, acct, &out, func(ctx context.Context, b provider.Backend) (string, error) {
		return b.CreateEvent(ctx, acct, ev)
	})
	return out, err
}

// UpdateEvent changes an event on an explicitly named account.
func (s *Service) UpdateEvent(ctx context.Context, req UpdateEventRequest) (WriteOutcome, error) {
	var out WriteOutcome

	upd := req.Update
	switch {
	case req.AccountID == "" || req.EventID == "":
		return fail(&out, invalid("accountId and eventId are required"))
	case upd.IsEmpty():
		return fail(&out, invalid("update changes nothing"))
	case upd.Start != nil && upd.End != nil && !upd.End.After(*upd.Start):
		return fail(&out, invalid("end must be after start"))
	}

	acct, err := s.account(req.AccountID)
	out.Routing = routing.ReasonExplicit
	if err != nil {
		return fail(&out, err)
	}

	out.CalendarUsed = calendarOrDefault(req.CalendarID)
	err = s.write(ctx, OpUpdateEvent, acct, &out, func(ctx context.Context, b provider.Backend) (string, error) {
		return req.EventID, b.UpdateEvent(ctx, acct, req.CalendarID, req.EventID, upd)
	})
	return out, err
}

// DeleteEvent removes an event from an explicitly named account.
func (s *Service) DeleteEvent(ctx context.Context, accountID, calendarID, eventID string) (WriteOutcome, error) {
	var out WriteOutcome

	if accountID == "" || eventID == "" {
		return fail(&out, invalid("accountId and eventId are required"))
	}
	acct, err := s.account(accountID)
	out.Routing = routing.ReasonExplicit
	if err != nil {
		return fail(&out, err)
	}

	out.CalendarUsed = calendarOrDefault(calendarID)
	err = s.write(ctx, OpDeleteEvent, acct, &out, func(ctx context.Context, b provider.Backend) (string, error) {
		return eventID, b.DeleteEvent(ctx, acct, calendarID, eventID)
	})
	return out, err
}

func calendarOrDefault(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return model.DefaultCalendarID
}

func fail(out *WriteOutcome, err error) (WriteOutcome, error) {
	out.Error = err.Error()
	return *out, err
}
