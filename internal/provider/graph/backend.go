// Package graph implements the provider backend for Microsoft accounts,
// both organizational (Microsoft 365) and personal (Outlook.com), on top of
// the Microsoft Graph v1.0 REST API. The two kinds differ only in the
// identity authority, which the authenticator owns.
package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/rest"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Scopes requested for every Graph call.
var Scopes = []string{"offline_access", "Mail.Read", "Mail.Send", "Calendars.ReadWrite"}

const (
	messageFields = "id,subject,from,toRecipients,ccRecipients,receivedDateTime,isRead,hasAttachments"
	searchPage    = 50
)

// Backend serves one Microsoft provider kind for any number of accounts.
type Backend struct {
	kind       model.ProviderKind
	client     *rest.Client
	clientOpts []rest.Option
	auth       provider.Authenticator
	log        *zap.Logger
	maxPages   int
}

// Option customises a Backend.
type Option func(*Backend)

// WithClient replaces the default Graph client (used in tests).
func WithClient(c *rest.Client) Option {
	return func(b *Backend) { b.client = c }
}

// WithClientOptions configures the default Graph client. It has no effect
// together with WithClient.
func WithClientOptions(opts ...rest.Option) Option {
	return func(b *Backend) { b.clientOpts = append(b.clientOpts, opts...) }
}

// WithMaxSearchPages bounds the client-side date filtering fallback.
func WithMaxSearchPages(n int) Option {
	return func(b *Backend) { b.maxPages = n }
}

// New creates a Graph backend for kind, which must be
// model.ProviderOrganizational or model.ProviderPersonal.
func New(kind model.ProviderKind, auth provider.Authenticator, log *zap.Logger, opts ...Option) *Backend {
	b := &Backend{
		kind:     kind,
		auth:     auth,
		log:      log.Named("graph").With(zap.String("kind", kind.String())),
		maxPages: provider.DefaultMaxSearchPages,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		opts := append([]rest.Option{rest.WithHeader("Prefer", `outlook.timezone="UTC"`)}, b.clientOpts...)
		b.client = rest.NewClient(DefaultBaseURL, opts...)
	}
	return b
}

// Kind implements provider.Backend.
func (b *Backend) Kind() model.ProviderKind { return b.kind }

func (b *Backend) token(ctx context.Context, acct model.Account) (string, error) {
	return provider.AcquireToken(ctx, b.auth, b.log, b.kind, acct, Scopes)
}

// wrap converts a rejected token into a CredentialError so callers treat
// it like a missing one.
func (b *Backend) wrap(acct model.Account, op string, err error) error {
	if errors.Is(err, rest.ErrUnauthorized) {
		b.log.Warn("token rejected", zap.String("account", acct.ID), zap.String("op", op))
		return &provider.CredentialError{AccountID: acct.ID, Kind: b.kind, Message: "token rejected by Microsoft Graph"}
	}
	return fmt.Errorf("graph %s for %s: %w", op, acct.ID, err)
}

// GetEmails implements provider.Backend.
func (b *Backend) GetEmails(ctx context.Context, acct model.Account, count int, unreadOnly bool) ([]model.EmailMessage, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.EmailMessage{}, err
	}

	q := url.Values{}
	q.Set("$top", strconv.Itoa(count))
	q.Set("$select", messageFields)
	q.Set("$orderby", "receivedDateTime desc")
	if unreadOnly {
		// Graph requires the $orderby property to lead the $filter.
		q.Set("$filter", "receivedDateTime ge 1900-01-01T00:00:00Z and isRead eq false")
	}

	var list messageList
	if err := b.client.Get(ctx, tok, "/me/mailFolders/inbox/messages?"+q.Encode(), &list); err != nil {
		return []model.EmailMessage{}, b.wrap(acct, "list messages", err)
	}
	return b.convertMessages(acct, list.Value), nil
}

// SearchEmails implements provider.Backend. Graph's $search cannot be
// combined with $filter, so a date window is applied client-side over the
// recency-ordered search results.
func (b *Backend) SearchEmails(ctx context.Context, acct model.Account, sq provider.SearchQuery) ([]model.EmailMessage, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.EmailMessage{}, err
	}

	top := sq.Count
	if sq.From != nil || sq.To != nil {
		top = searchPage
	}
	q := url.Values{}
	q.Set("$search", `"`+strings.ReplaceAll(sq.Query, `"`, `\"`)+`"`)
	q.Set("$top", strconv.Itoa(top))
	q.Set("$select", messageFields)
	first := "/me/messages?" + q.Encode()

	fetch := func(ctx context.Context, next string) (provider.Page, error) {
		path := first
		if next != "" {
			path = next
		}
		var list messageList
		if err := b.client.Get(ctx, tok, path, &list); err != nil {
			return provider.Page{}, err
		}
		return provider.Page{Items: b.convertMessages(acct, list.Value), Next: list.NextLink}, nil
	}

	maxPages := b.maxPages
	if sq.From == nil && sq.To == nil {
		maxPages = 1
	}
	msgs, err := provider.CollectInRange(ctx, fetch, sq.From, sq.To, sq.Count, maxPages)
	if err != nil {
		return []model.EmailMessage{}, b.wrap(acct, "search messages", err)
	}
	return msgs, nil
}

// GetEmailDetail implements provider.Backend.
func (b *Backend) GetEmailDetail(ctx context.Context, acct model.Account, emailID string) (*model.EmailMessage, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return nil, err
	}

	path := "/me/messages/" + url.PathEscape(emailID) + "?" + url.Values{
		"$expand": {"attachments($select=name,size,contentType)"},
	}.Encode()

	var m message
	if err := b.client.Get(ctx, tok, path, &m); err != nil {
		return nil, b.wrap(acct, "get message", err)
	}
	out := m.toModel(acct.ID)
	return &out, nil
}

// SendEmail implements provider.Backend. The message is created as a draft
// first so the provider-assigned ID can be returned, then sent.
func (b *Backend) SendEmail(ctx context.Context, acct model.Account, msg model.OutgoingEmail) (string, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return "", err
	}

	contentType := "HTML"
	if msg.BodyFormat == model.BodyFormatText {
		contentType = "Text"
	}
	draft := draftMessage{
		Subject:      msg.Subject,
		Body:         itemBody{ContentType: contentType, Content: msg.Body},
		ToRecipients: toRecipients(msg.To),
		CcRecipients: toRecipients(msg.Cc),
	}

	var c created
	if err := b.client.Post(ctx, tok, "/me/messages", draft, &c); err != nil {
		return "", b.wrap(acct, "create draft", err)
	}
	if err := b.client.Post(ctx, tok, "/me/messages/"+url.PathEscape(c.ID)+"/send", nil, nil); err != nil {
		return "", b.wrap(acct, "send draft", err)
	}

	b.log.Info("message sent", zap.String("account", acct.ID), zap.String("id", c.ID))
	return c.ID, nil
}

// ListCalendars implements provider.Backend.
func (b *Backend) ListCalendars(ctx context.Context, acct model.Account) ([]model.CalendarInfo, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.CalendarInfo{}, err
	}

	var list calendarList
	if err := b.client.Get(ctx, tok, "/me/calendars?$top=100", &list); err != nil {
		return []model.CalendarInfo{}, b.wrap(acct, "list calendars", err)
	}

	out := make([]model.CalendarInfo, 0, len(list.Value))
	for _, c := range list.Value {
		out = append(out, c.toModel(acct.ID))
	}
	return out, nil
}

// GetCalendarEvents implements provider.Backend using calendarView, which
// expands recurring series into occurrences.
func (b *Backend) GetCalendarEvents(ctx context.Context, acct model.Account, eq provider.EventQuery) ([]model.CalendarEvent, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return []model.CalendarEvent{}, err
	}

	q := url.Values{}
	q.Set("startDateTime", eq.Start.UTC().Format(time.RFC3339))
	q.Set("endDateTime", eq.End.UTC().Format(time.RFC3339))
	q.Set("$top", strconv.Itoa(eq.Count))
	q.Set("$orderby", "start/dateTime")

	var list eventList
	if err := b.client.Get(ctx, tok, calendarPath(eq.CalendarID)+"/calendarView?"+q.Encode(), &list); err != nil {
		return []model.CalendarEvent{}, b.wrap(acct, "list events", err)
	}

	calID := eq.CalendarID
	if calID == "" {
		calID = model.DefaultCalendarID
	}
	out := make([]model.CalendarEvent, 0, len(list.Value))
	for _, e := range list.Value {
		out = append(out, e.toModel(acct.ID, calID))
	}
	return out, nil
}

// CreateEvent implements provider.Backend.
func (b *Backend) CreateEvent(ctx context.Context, acct model.Account, ev model.NewEvent) (string, error) {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"subject": ev.Subject,
		"start":   formatDateTime(ev.Start),
		"end":     formatDateTime(ev.End),
	}
	if ev.Location != "" {
		body["location"] = location{DisplayName: ev.Location}
	}
	if ev.Body != "" {
		body["body"] = itemBody{ContentType: "HTML", Content: ev.Body}
	}
	if len(ev.Attendees) > 0 {
		body["attendees"] = toAttendees(ev.Attendees)
	}

	var c created
	if err := b.client.Post(ctx, tok, calendarPath(ev.CalendarID)+"/events", body, &c); err != nil {
		return "", b.wrap(acct, "create event", err)
	}
	return c.ID, nil
}

// UpdateEvent implements provider.Backend.
func (b *Backend) UpdateEvent(ctx context.Context, acct model.Account, calendarID, eventID string, upd model.EventUpdate) error {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return err
	}

	body := map[string]any{}
	if upd.Subject != nil {
		body["subject"] = *upd.Subject
	}
	if upd.Start != nil {
		body["start"] = formatDateTime(*upd.Start)
	}
	if upd.End != nil {
		body["end"] = formatDateTime(*upd.End)
	}
	if upd.Location != nil {
		body["location"] = location{DisplayName: *upd.Location}
	}
	if upd.Body != nil {
		body["body"] = itemBody{ContentType: "HTML", Content: *upd.Body}
	}
	if upd.Attendees != nil {
		body["attendees"] = toAttendees(upd.Attendees)
	}

	if err := b.client.Patch(ctx, tok, eventPath(calendarID, eventID), body, nil); err != nil {
		return b.wrap(acct, "update event", err)
	}
	return nil
}

// DeleteEvent implements provider.Backend.
func (b *Backend) DeleteEvent(ctx context.Context, acct model.Account, calendarID, eventID string) error {
	tok, err := b.token(ctx, acct)
	if err != nil {
		return err
	}
	if err := b.client.Delete(ctx, tok, eventPath(calendarID, eventID)); err != nil {
		return b.wrap(acct, "delete event", err)
	}
	return nil
}

func (b *Backend) convertMessages(acct model.Account, ms []message) []model.EmailMessage {
	out := make([]model.EmailMessage, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toModel(acct.ID))
	}
	return out
}

// calendarPath addresses either the default calendar or a named one.
func calendarPath(calendarID string) string {
	if calendarID == "" || calendarID == model.DefaultCalendarID {
		return "/me/calendar"
	}
	return "/me/calendars/" + url.PathEscape(calendarID)
}

func eventPath(calendarID, eventID string) string {
	return calendarPath(calendarID) + "/events/" + url.PathEscape(eventID)
}
