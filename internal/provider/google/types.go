package google

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// Gmail v1 shapes.

type messageRef struct {
	ID string `json:"id"`
}

type messageList struct {
	Messages      []messageRef `json:"messages"`
	NextPageToken string       `json:"nextPageToken"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type payload struct {
	MimeType string   `json:"mimeType"`
	Headers  []header `json:"headers"`
}

type gmailMessage struct {
	ID           string   `json:"id"`
	LabelIDs     []string `json:"labelIds"`
	InternalDate string   `json:"internalDate"`
	Payload      *payload `json:"payload"`
	Raw          string   `json:"raw"`
}

type sendRequest struct {
	Raw string `json:"raw"`
}

// Calendar v3 shapes.

type calendarListEntry struct {
	ID              string `json:"id"`
	Summary         string `json:"summary"`
	Primary         bool   `json:"primary"`
	AccessRole      string `json:"accessRole"`
	BackgroundColor string `json:"backgroundColor"`
}

type calendarList struct {
	Items []calendarListEntry `json:"items"`
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventPerson struct {
	Email          string `json:"email"`
	Self           bool   `json:"self,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

type calendarEvent struct {
	ID          string        `json:"id,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Start       *eventTime    `json:"start,omitempty"`
	End         *eventTime    `json:"end,omitempty"`
	Organizer   *eventPerson  `json:"organizer,omitempty"`
	Attendees   []eventPerson `json:"attendees,omitempty"`
}

type eventList struct {
	Items         []calendarEvent `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
}

func (m gmailMessage) header(name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (m gmailMessage) received() time.Time {
	ms, err := strconv.ParseInt(m.InternalDate, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (m gmailMessage) hasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}

func (m gmailMessage) toModel(accountID string) model.EmailMessage {
	name, addr := splitAddress(m.header("From"))
	ct := strings.ToLower(m.header("Content-Type"))
	if ct == "" && m.Payload != nil {
		ct = m.Payload.MimeType
	}
	return model.EmailMessage{
		ID:               m.ID,
		AccountID:        accountID,
		Subject:          m.header("Subject"),
		From:             addr,
		FromName:         name,
		To:               splitList(m.header("To")),
		Cc:               splitList(m.header("Cc")),
		BodyFormat:       model.BodyFormatText,
		ReceivedDateTime: m.received(),
		IsRead:           !m.hasLabel("UNREAD"),
		HasAttachments:   strings.HasPrefix(ct, "multipart/mixed"),
	}
}

// splitAddress splits `Name <addr>` into its parts.
func splitAddress(s string) (string, string) {
	s = strings.TrimSpace(s)
	lt := strings.LastIndex(s, "<")
	gt := strings.LastIndex(s, ">")
	if lt < 0 || gt < lt {
		return "", s
	}
	name := strings.Trim(strings.TrimSpace(s[:lt]), `"`)
	return name, strings.TrimSpace(s[lt+1 : gt])
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if _, addr := splitAddress(p); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// decodeRaw decodes Gmail's base64url payload, padded or not.
func decodeRaw(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func parseEventTime(t *eventTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return v.UTC(), false
	}
	v, err := time.Parse(time.DateOnly, t.Date)
	if err != nil {
		return time.Time{}, true
	}
	return v, true
}

func formatEventTime(t time.Time) *eventTime {
	return &eventTime{DateTime: t.UTC().Format(time.RFC3339), TimeZone: "UTC"}
}

func attendees(addrs []string) []eventPerson {
	out := make([]eventPerson, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, eventPerson{Email: a})
	}
	return out
}

func (e calendarEvent) toModel(accountID, calendarID string) model.CalendarEvent {
	start, allDay := parseEventTime(e.Start)
	end, _ := parseEventTime(e.End)
	out := model.CalendarEvent{
		ID:             e.ID,
		AccountID:      accountID,
		CalendarID:     calendarID,
		Subject:        e.Summary,
		Start:          start,
		End:            end,
		Location:       e.Location,
		Body:           e.Description,
		IsAllDay:       allDay,
		ResponseStatus: model.ResponseNotResponded,
	}
	if e.Organizer != nil {
		out.Organizer = e.Organizer.Email
		if e.Organizer.Self {
			out.ResponseStatus = model.ResponseOrganizer
		}
	}
	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, a.Email)
		if a.Self {
			out.ResponseStatus = responseStatus(a.ResponseStatus)
		}
	}
	return out
}

func responseStatus(s string) string {
	switch s {
	case "accepted":
		return model.ResponseAccepted
	case "declined":
		return model.ResponseDeclined
	case "tentative":
		return model.ResponseTentative
	}
	return model.ResponseNotResponded
}

func (c calendarListEntry) toModel(accountID string) model.CalendarInfo {
	out := model.CalendarInfo{
		ID:        c.ID,
		AccountID: accountID,
		Name:      c.Summary,
		CanEdit:   c.AccessRole == "owner" || c.AccessRole == "writer",
		IsDefault: c.Primary,
		Color:     c.BackgroundColor,
	}
	if c.Primary {
		out.Owner = c.ID
	}
	return out
}
