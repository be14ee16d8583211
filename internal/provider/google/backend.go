// Package google implements the provider backend for Google Workspace and
// Gmail accounts on top of the Gmail v1 and Calendar v3 REST APIs.
package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/mime"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/rest"
)

const (
	DefaultGmailURL    = "https://gmail.googleapis.com/gmail/v1"
	DefaultCalendarURL = "https://www.googleapis.com/calendar/v3"
)

// Scopes requested for every Google call.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/calendar.events",
}

const primaryCalendar = "primary"

// Backend serves Google accounts.
type Backend struct {
	gmail      *rest.Client
	calendar   *rest.Client
	clientOpts []rest.Option
	auth       provider.Authenticator
	log        *zap.Logger
	maxPages   int
	now        func() time.Time
}

// Option customises a Backend.
type Option func(*Backend)

// WithClients replaces the Gmail and Calendar clients (used in tests).
func WithClients(gmail, calendar *rest.Client) Option {
	return func(b *Backend) {
		b.gmail = gmail
		b.calendar = calendar
	}
}

// WithClientOptions configures the default Gmail and Calendar clients. It
// has no effect together with WithClients.
func WithClientOptions(opts ...rest.Option) Option {
	return func(b *Backend) { b.clientOpts = append(b.clientOpts, opts...) }
}

// WithMaxSearchPages bounds how many pages a date-restricted search reads.
func WithMaxSearchPages(n int) Option {
	return func(b *Backend) { b.maxPages = n }
}

// New creates a Google backend.
func New(auth provider.Authenticator, log *zap.Logger, opts ...Option) *Backend {
	b := &Backend{
		auth:     auth,
		log:      log.Named("google"),
		maxPages: provider.DefaultMaxSearchPages,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.gmail == nil {
		b.gmail = rest.NewClient(DefaultGmailURL, b.clientOpts...)
	}
	if b.calendar == nil {
		b.calendar = rest.NewClient(DefaultCalendarURL, b.clientOpts...)
	}
	return b
}

// Kind implements provider.Backend.
func (b *Backend) Kind() model.ProviderKind { return model.ProviderWorkspace }

func (b *Backend) token(ctx context.Context, acct model.Account) (string, error) {
	return provider.AcquireToken(ctx, b.auth, b.log, model.ProviderWorkspace, acct, Scopes)
}

func (b *Backend) wrap(acct model.Account, op string, err error) error {
	if errors.Is(err, rest.ErrUnauthorized) {
		b.log.Warn("token rejected", zap.String("account", acct.ID), zap.String("op", op))
		return &provider.CredentialError{AccountID: acct.ID, Kind: model.ProviderWorkspace, Message: "token rejected by Google"}
	}
	return fmt.Errorf("google %s for %s: %w", op, acct.ID, err)
}

// listPage lists one page of message IDs for q and fetches their metadata.
func (b *Backend) listPage(ctx context.Context, tok, q string, size int, pageToken string) (provider.Page, error) {
	v := url.Values{}
	v.Set("maxResults", strconv.Itoa(size))
	if q != "" {
		v.Set("q", q)
	}
	if pageToken != "" {
		v.Set("pageToken", pageToken)
	}

	var list messageList
	if err := b.gmail.Get(ctx, tok, "/users/me/messages?"+v.Encode(), &list); err != nil {
		return provider.Page{}, err
	}

	page := provider.Page{Next: list.NextPageToken, Items: make([]model.EmailMessage, 0, len(list.Messages))}
	meta := url.Values{
		"format":          {"metadata"},
		"metadataHeaders": {"From", "To", "Cc", "Subject", "Content-Type"},
	}.Encode()
	for _, ref := range list.Messages {
		var m gmailMessage
		if err := b.gmail.Get(ctx, tok, "/users/me/messages/"+url.PathEscape(ref.ID)+"?"+meta, &m); err != nil {
			return provider.Page{}, err
		}
		page.Items = append(page.Items, m.toModel(""))
	}
	return page, nil
}

// GetEmails implements provider.Backend.
func (b *Backend) GetEmails(ctx context.Context, acct model.Account, count int, unreadOnly bool) ([]model.EmailMessage, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.EmailMessage{}, err
	}

	q := "in:inbox"
	if unreadOnly {
		q += " is:unread"
	}
	page, err := b.listPage(ctx, tok, q, count, "")
	if err != nil {
		return []model.EmailMessage{}, b.wrap(acct, "list messages", err)
	}
	return tagAccount(page.Items, acct.ID), nil
}

// SearchEmails implements provider.Backend. Gmail accepts after:/before:
// alongside free text; the window is re-applied client-side because those
// operators round to whole seconds.
func (b *Backend) SearchEmails(ctx context.Context, acct model.Account, sq provider.SearchQuery) ([]model.EmailMessage, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.EmailMessage{}, err
	}

	q := sq.Query
	if sq.From != nil {
		q += fmt.Sprintf(" after:%d", sq.From.Unix())
	}
	if sq.To != nil {
		q += fmt.Sprintf(" before:%d", sq.To.Unix()+1)
	}

	fetch := func(ctx context.Context, token string) (provider.Page, error) {
		return b.listPage(ctx, tok, strings.TrimSpace(q), sq.Count, token)
	}
	msgs, err := provider.CollectInRange(ctx, fetch, sq.From, sq.To, sq.Count, b.maxPages)
	if err != nil {
		return []model.EmailMessage{}, b.wrap(acct, "search messages", err)
	}
	return tagAccount(msgs, acct.ID), nil
}

// GetEmailDetail implements provider.Backend by fetching the raw message
// and parsing it locally.
func (b *Backend) GetEmailDetail(ctx context.Context, acct model.Account, emailID string) (*model.EmailMessage, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return nil, err
	}

	var m gmailMessage
	if err := b.gmail.Get(ctx, tok, "/users/me/messages/"+url.PathEscape(emailID)+"?format=raw", &m); err != nil {
		return nil, b.wrap(acct, "get message", err)
	}
	raw, err := decodeRaw(m.Raw)
	if err != nil {
		return nil, fmt.Errorf("decoding message %s: %w", emailID, err)
	}

	p := mime.Parse(raw)
	body, format := p.Body()
	return &model.EmailMessage{
		ID:               m.ID,
		AccountID:        acct.ID,
		Subject:          p.Subject,
		From:             p.From,
		FromName:         p.FromName,
		To:               p.To,
		Cc:               p.Cc,
		Body:             body,
		BodyFormat:       format,
		ReceivedDateTime: m.received(),
		IsRead:           !m.hasLabel("UNREAD"),
		HasAttachments:   len(p.Attachments) > 0,
		Attachments:      p.Attachments,
	}, nil
}

// SendEmail implements provider.Backend.
func (b *Backend) SendEmail(ctx context.Context, acct model.Account, msg model.OutgoingEmail) (string, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return "", err
	}

	from := acct.Setting("address", acct.ID)
	raw, err := mime.Compose(msg, from, uuid.NewString()+"@calendar-mcp", b.now())
	if err != nil {
		return "", err
	}

	var sent messageRef
	req := sendRequest{Raw: base64.URLEncoding.EncodeToString(raw)}
	if err := b.gmail.Post(ctx, tok, "/users/me/messages/send", req, &sent); err != nil {
		return "", b.wrap(acct, "send message", err)
	}

	b.log.Info("message sent", zap.String("account", acct.ID), zap.String("id", sent.ID))
	return sent.ID, nil
}

// ListCalendars implements provider.Backend.
func (b *Backend) ListCalendars(ctx context.Context, acct model.Account) ([]model.CalendarInfo, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.CalendarInfo{}, err
	}

	var list calendarList
	if err := b.calendar.Get(ctx, tok, "/users/me/calendarList", &list); err != nil {
		return []model.CalendarInfo{}, b.wrap(acct, "list calendars", err)
	}

	out := make([]model.CalendarInfo, 0, len(list.Items))
	for _, c := range list.Items {
		out = append(out, c.toModel(acct.ID))
	}
	return out, nil
}

// GetCalendarEvents implements provider.Backend.
func (b *Backend) GetCalendarEvents(ctx context.Context, acct model.Account, eq provider.EventQuery) ([]model.CalendarEvent, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.CalendarEvent{}, err
	}

	calID := calendarID(eq.CalendarID)
	v := url.Values{}
	v.Set("timeMin", eq.Start.UTC().Format(time.RFC3339))
	v.Set("timeMax", eq.End.UTC().Format(time.RFC3339))
	v.Set("singleEvents", "true")
	v.Set("orderBy", "startTime")
	v.Set("maxResults", strconv.Itoa(eq.Count))

	var list eventList
	if err := b.calendar.Get(ctx, tok, "/calendars/"+url.PathEscape(calID)+"/events?"+v.Encode(), &list); err != nil {
		return []model.CalendarEvent{}, b.wrap(acct, "list events", err)
	}

	reported := eq.CalendarID
	if reported == "" {
		reported = model.DefaultCalendarID
	}
	out := make([]model.CalendarEvent, 0, len(list.Items))
	for _, e := range list.Items {
		out = append(out, e.toModel(acct.ID, reported))
	}
	return out, nil
}

// CreateEvent implements provider.Backend.
func (b *Backend) CreateEvent(ctx context.Context, acct model.Account, ev model.NewEvent) (string, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return "", err
	}

	body := calendarEvent{
		Summary:     ev.Subject,
		Description: ev.Body,
		Location:    ev.Location,
		Start:       formatEventTime(ev.Start),
		End:         formatEventTime(ev.End),
		Attendees:   attendees(ev.Attendees),
	}

	var created calendarEvent
	path := "/calendars/" + url.PathEscape(calendarID(ev.CalendarID)) + "/events"
	if err := b.calendar.Post(ctx, tok, path, body, &created); err != nil {
		return "", b.wrap(acct, "create event", err)
	}
	return created.ID, nil
}

// UpdateEvent implements provider.Backend.
func (b *Backend) UpdateEvent(ctx context.Context, acct model.Account, calID, eventID string, upd model.EventUpdate) error {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return err
	}

	body := map[string]any{}
	if upd.Subject != nil {
		body["summary"] = *upd.Subject
	}
	if upd.Start != nil {
		body["start"] = formatEventTime(*upd.Start)
	}
	if upd.End != nil {
		body["end"] = formatEventTime(*upd.End)
	}
	if upd.Location != nil {
		body["location"] = *upd.Location
	}
	if upd.Body != nil {
		body["description"] = *upd.Body
	}
	if upd.Attendees != nil {
		body["attendees"] = attendees(upd.Attendees)
	}

	if err := b.calendar.Patch(ctx, tok, eventPath(calID, eventID), body, nil); err != nil {
		return b.wrap(acct, "update event", err)
	}
	return nil
}

// DeleteEvent implements provider.Backend.
func (b *Backend) DeleteEvent(ctx context.Context, acct model.Account, calID, eventID string) error {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return err
	}
	if err := b.calendar.Delete(ctx, tok, eventPath(calID, eventID)); err != nil {
		return b.wrap(acct, "delete event", err)
	}
	return nil
}

func calendarID(id string) string {
	if id == "" || id == model.DefaultCalendarID {
		return primaryCalendar
	}
	return id
}

func eventPath(calID, eventID string) string {
	return "/calendars/" + url.PathEscape(calendarID(calID)) + "/events/" + url.PathEscape(eventID)
}

func tagAccount(msgs []model.EmailMessage, accountID string) []model.EmailMessage {
	for i := range msgs {
		msgs[i].AccountID = accountID
	}
	return msgs
}
