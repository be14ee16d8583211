package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider/rest"
)

type staticAuth struct{ token string }

func (a staticAuth) GetCredential(context.Context, model.Account, []string) (*provider.Credential, error) {
	if a.token == "" {
		return nil, nil
	}
	return &provider.Credential{AccessToken: a.token}, nil
}

var acct = model.Account{ID: "home", Provider: "gmail", ProviderConfig: map[string]string{"address": "me@gmail.com"}}

func newBackend(t *testing.T, gmail, calendar http.HandlerFunc) *Backend {
	t.Helper()
	g := httptest.NewServer(gmail)
	c := httptest.NewServer(calendar)
	t.Cleanup(g.Close)
	t.Cleanup(c.Close)
	return New(staticAuth{token: "tok"}, zap.NewNop(), WithClients(rest.NewClient(g.URL), rest.NewClient(c.URL)))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func unused(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}
}

func TestGetEmails(t *testing.T) {
	received := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me/messages":
			assert.Equal(t, "in:inbox is:unread", r.URL.Query().Get("q"))
			assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
			writeJSON(w, map[string]any{"messages": []map[string]string{{"id": "g1"}}})
		case "/users/me/messages/g1":
			assert.Equal(t, "metadata", r.URL.Query().Get("format"))
			writeJSON(w, map[string]any{
				"id":           "g1",
				"labelIds":     []string{"INBOX", "UNREAD"},
				"internalDate": "1769932800000",
				"payload": map[string]any{
					"mimeType": "multipart/mixed",
					"headers": []map[string]string{
						{"name": "From", "value": `"Ann Lee" <ann@example.com>`},
						{"name": "To", "value": "me@gmail.com, Other <o@example.com>"},
						{"name": "Subject", "value": "Invoice"},
					},
				},
			})
		}
	}, unused(t))

	msgs, err := b.GetEmails(context.Background(), acct, 10, true)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "home", m.AccountID)
	assert.Equal(t, "Invoice", m.Subject)
	assert.Equal(t, "ann@example.com", m.From)
	assert.Equal(t, "Ann Lee", m.FromName)
	assert.Equal(t, []string{"me@gmail.com", "o@example.com"}, m.To)
	assert.False(t, m.IsRead)
	assert.True(t, m.HasAttachments)
	assert.Equal(t, received, m.ReceivedDateTime)
}

func TestSearchEmails_AddsDateOperators(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "invoice after:1767225600", r.URL.Query().Get("q"))
		writeJSON(w, map[string]any{})
	}, unused(t))

	msgs, err := b.SearchEmails(context.Background(), acct, provider.SearchQuery{Query: "invoice", Count: 5, From: &from})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestGetEmailDetail_ParsesRaw(t *testing.T) {
	raw := "From: ann@example.com\r\nTo: me@gmail.com\r\nSubject: Hi\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n\r\nHello there\r\n"
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		writeJSON(w, map[string]any{
			"id":           "g2",
			"internalDate": "1769932800000",
			"raw":          base64.URLEncoding.EncodeToString([]byte(raw)),
		})
	}, unused(t))

	m, err := b.GetEmailDetail(context.Background(), acct, "g2")
	require.NoError(t, err)
	assert.Equal(t, "Hi", m.Subject)
	assert.Equal(t, model.BodyFormatText, m.BodyFormat)
	assert.Contains(t, m.Body, "Hello there")
	assert.True(t, m.IsRead)
}

func TestSendEmail(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/send", r.URL.Path)
		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.URLEncoding.DecodeString(req.Raw)
		require.NoError(t, err)
		assert.Contains(t, string(decoded), "Subject: Lunch")
		assert.Contains(t, string(decoded), "me@gmail.com")
		writeJSON(w, map[string]string{"id": "sent-1"})
	}, unused(t))

	id, err := b.SendEmail(context.Background(), acct, model.OutgoingEmail{
		To: []string{"bob@example.com"}, Subject: "Lunch", Body: "noon?", BodyFormat: model.BodyFormatText,
	})
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)
}

func TestCalendars(t *testing.T) {
	b := newBackend(t, unused(t), func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/me/calendarList":
			writeJSON(w, map[string]any{"items": []map[string]any{
				{"id": "me@gmail.com", "summary": "Me", "primary": true, "accessRole": "owner"},
				{"id": "holidays", "summary": "Holidays", "accessRole": "reader"},
			}})
		case "/calendars/primary/events":
			assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
			writeJSON(w, map[string]any{"items": []map[string]any{
				{
					"id":        "ev1",
					"summary":   "Dentist",
					"start":     map[string]string{"dateTime": "2026-02-03T15:00:00Z"},
					"end":       map[string]string{"dateTime": "2026-02-03T16:00:00Z"},
					"attendees": []map[string]any{{"email": "me@gmail.com", "self": true, "responseStatus": "tentative"}},
				},
				{
					"id":      "ev2",
					"summary": "Holiday",
					"start":   map[string]string{"date": "2026-02-04"},
					"end":     map[string]string{"date": "2026-02-05"},
				},
			}})
		}
	})
	ctx := context.Background()

	cals, err := b.ListCalendars(ctx, acct)
	require.NoError(t, err)
	require.Len(t, cals, 2)
	assert.True(t, cals[0].IsDefault)
	assert.True(t, cals[0].CanEdit)
	assert.False(t, cals[1].CanEdit)

	events, err := b.GetCalendarEvents(ctx, acct, provider.EventQuery{
		Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Count: 50,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.ResponseTentative, events[0].ResponseStatus)
	assert.Equal(t, model.DefaultCalendarID, events[0].CalendarID)
	assert.True(t, events[1].IsAllDay)
	assert.Equal(t, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), events[1].Start)
}

func TestCreateEvent(t *testing.T) {
	b := newBackend(t, unused(t), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/work-cal/events", r.URL.Path)
		var ev calendarEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		assert.Equal(t, "Sync", ev.Summary)
		assert.Equal(t, "2026-02-03T15:00:00Z", ev.Start.DateTime)
		writeJSON(w, map[string]string{"id": "new-ev"})
	})

	id, err := b.CreateEvent(context.Background(), acct, model.NewEvent{
		CalendarID: "work-cal",
		Subject:    "Sync",
		Start:      time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "new-ev", id)
}

type hostRecorder struct {
	target *url.URL
	hosts  []string
}

func (rt *hostRecorder) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.hosts = append(rt.hosts, r.URL.Host+r.URL.Path)
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

func TestWithClientOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []any{}})
	}))
	defer srv.Close()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	rt := &hostRecorder{target: target}
	b := New(staticAuth{token: "tok"}, zap.NewNop(),
		WithClientOptions(rest.WithHTTPClient(&http.Client{Transport: rt})),
		WithMaxSearchPages(3))

	_, err = b.ListCalendars(context.Background(), acct)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.googleapis.com/calendar/v3/users/me/calendarList"}, rt.hosts)
	assert.Equal(t, 3, b.maxPages)
}
