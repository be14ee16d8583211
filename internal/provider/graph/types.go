package graph

import (
	"strings"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// Microsoft Graph v1.0 resource shapes, trimmed to the fields we read.

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type attachment struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

type message struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	From             *recipient   `json:"from"`
	ToRecipients     []recipient  `json:"toRecipients"`
	CcRecipients     []recipient  `json:"ccRecipients"`
	Body             *itemBody    `json:"body"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
	IsRead           bool         `json:"isRead"`
	HasAttachments   bool         `json:"hasAttachments"`
	Attachments      []attachment `json:"attachments"`
}

type messageList struct {
	Value    []message `json:"value"`
	NextLink string    `json:"@odata.nextLink"`
}

// draftMessage is the body of POST /me/messages.
type draftMessage struct {
	Subject      string      `json:"subject"`
	Body         itemBody    `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
	CcRecipients []recipient `json:"ccRecipients,omitempty"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

type attendee struct {
	EmailAddress emailAddress `json:"emailAddress"`
	Type         string       `json:"type,omitempty"`
}

type responseStatus struct {
	Response string `json:"response"`
}

type event struct {
	ID             string           `json:"id"`
	Subject        string           `json:"subject"`
	Start          dateTimeTimeZone `json:"start"`
	End            dateTimeTimeZone `json:"end"`
	Location       *location        `json:"location"`
	Body           *itemBody        `json:"body"`
	Organizer      *recipient       `json:"organizer"`
	Attendees      []attendee       `json:"attendees"`
	IsAllDay       bool             `json:"isAllDay"`
	ResponseStatus *responseStatus  `json:"responseStatus"`
}

type eventList struct {
	Value    []event `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

type calendar struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Owner             *emailAddress `json:"owner"`
	CanEdit           bool          `json:"canEdit"`
	IsDefaultCalendar bool          `json:"isDefaultCalendar"`
	HexColor          string        `json:"hexColor"`
}

type calendarList struct {
	Value []calendar `json:"value"`
}

type created struct {
	ID string `json:"id"`
}

// graphDateTime is the layout Graph uses for dateTimeTimeZone values.
const graphDateTime = "2006-01-02T15:04:05.9999999"

func parseDateTime(v dateTimeTimeZone) time.Time {
	loc := time.UTC
	if v.TimeZone != "" && !strings.EqualFold(v.TimeZone, "UTC") {
		if l, err := time.LoadLocation(v.TimeZone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(graphDateTime, v.DateTime, loc)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatDateTime(t time.Time) dateTimeTimeZone {
	return dateTimeTimeZone{DateTime: t.UTC().Format(graphDateTime), TimeZone: "UTC"}
}

func addresses(rs []recipient) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.EmailAddress.Address)
	}
	return out
}

func toRecipients(addrs []string) []recipient {
	out := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, recipient{EmailAddress: emailAddress{Address: a}})
	}
	return out
}

func toAttendees(addrs []string) []attendee {
	out := make([]attendee, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, attendee{EmailAddress: emailAddress{Address: a}, Type: "required"})
	}
	return out
}

func (m message) toModel(accountID string) model.EmailMessage {
	out := model.EmailMessage{
		ID:               m.ID,
		AccountID:        accountID,
		Subject:          m.Subject,
		To:               addresses(m.ToRecipients),
		Cc:               addresses(m.CcRecipients),
		BodyFormat:       model.BodyFormatText,
		ReceivedDateTime: m.ReceivedDateTime.UTC(),
		IsRead:           m.IsRead,
		HasAttachments:   m.HasAttachments,
	}
	if m.From != nil {
		out.From = m.From.EmailAddress.Address
		out.FromName = m.From.EmailAddress.Name
	}
	if m.Body != nil {
		out.Body = m.Body.Content
		if strings.EqualFold(m.Body.ContentType, "html") {
			out.BodyFormat = model.BodyFormatHTML
		}
	}
	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = model.DefaultAttachmentContentType
		}
		out.Attachments = append(out.Attachments, model.EmailAttachment{Name: a.Name, Size: a.Size, ContentType: ct})
	}
	return out
}

func (e event) toModel(accountID, calendarID string) model.CalendarEvent {
	out := model.CalendarEvent{
		ID:             e.ID,
		AccountID:      accountID,
		CalendarID:     calendarID,
		Subject:        e.Subject,
		Start:          parseDateTime(e.Start),
		End:            parseDateTime(e.End),
		IsAllDay:       e.IsAllDay,
		ResponseStatus: model.ResponseNotResponded,
	}
	if e.Location != nil {
		out.Location = e.Location.DisplayName
	}
	if e.Body != nil {
		out.Body = e.Body.Content
	}
	if e.Organizer != nil {
		out.Organizer = e.Organizer.EmailAddress.Address
	}
	for _, a := range e.Attendees {
		out.Attendees = append(out.Attendees, a.EmailAddress.Address)
	}
	if e.ResponseStatus != nil && e.ResponseStatus.Response != "" && e.ResponseStatus.Response != "none" {
		out.ResponseStatus = e.ResponseStatus.Response
	}
	return out
}

func (c calendar) toModel(accountID string) model.CalendarInfo {
	out := model.CalendarInfo{
		ID:        c.ID,
		AccountID: accountID,
		Name:      c.Name,
		CanEdit:   c.CanEdit,
		IsDefault: c.IsDefaultCalendar,
		Color:     c.HexColor,
	}
	if c.Owner != nil {
		out.Owner = c.Owner.Address
	}
	return out
}
