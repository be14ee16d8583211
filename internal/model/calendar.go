package model

import "time"

// Attendee response states reported on events.
const (
	ResponseNotResponded = "notResponded"
	ResponseAccepted     = "accepted"
	ResponseDeclined     = "declined"
	ResponseTentative    = "tentative"
	ResponseOrganizer    = "organizer"
)

// DefaultCalendarID stands for the account's primary calendar when the
// caller names none.
const DefaultCalendarID = "default"

// CalendarEvent is the unified representation of an event from any provider.
type CalendarEvent struct {
	ID         string `json:"id"`
	AccountID  string `json:"accountId"`
	CalendarID string `json:"calendarId"`

	Subject  string    `json:"subject"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location"`
	Body     string    `json:"body"`

	Organizer string   `json:"organizer"`
	Attendees []string `json:"attendees"`
	IsAllDay  bool     `json:"isAllDay"`

	// ResponseStatus is the account owner's response to the invitation.
	ResponseStatus string `json:"responseStatus"`
}

// CalendarInfo describes one calendar owned by or shared with an account.
type CalendarInfo struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	CanEdit   bool   `json:"canEdit"`
	IsDefault bool   `json:"isDefault"`
	Color     string `json:"color,omitempty"`
}

// NewEvent is an event to be created on one account.
type NewEvent struct {
	// CalendarID selects the target calendar; empty means the default one.
	CalendarID string    `json:"calendarId,omitempty"`
	Subject    string    `json:"subject"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Location   string    `json:"location,omitempty"`
	Attendees  []string  `json:"attendees,omitempty"`
	Body       string    `json:"body,omitempty"`
}

// EventUpdate carries the fields to change on an existing event.
// Nil fields are left untouched.
type EventUpdate struct {
	Subject   *string    `json:"subject,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Attendees []string   `json:"attendees,omitempty"`
	Body      *string    `json:"body,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u EventUpdate) IsEmpty() bool {
	return u.Subject == nil && u.Start == nil && u.End == nil &&
		u.Location == nil && u.Attendees == nil && u.Body == nil
}
