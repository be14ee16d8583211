package graph

import (
	"context"
	"encoding/json"
	"fmt"
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

var acct = model.Account{ID: "work", Provider: "m365"}

func newBackend(t *testing.T, h http.HandlerFunc, token string) *Backend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(model.ProviderOrganizational, staticAuth{token: token}, zap.NewNop(),
		WithClient(rest.NewClient(srv.URL)))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetEmails(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/mailFolders/inbox/messages", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("$top"))
		assert.Contains(t, r.URL.Query().Get("$filter"), "isRead eq false")
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{"value": []map[string]any{{
			"id":               "m1",
			"subject":          "hello",
			"from":             map[string]any{"emailAddress": map[string]string{"name": "Ann", "address": "ann@contoso.com"}},
			"toRecipients":     []map[string]any{{"emailAddress": map[string]string{"address": "me@contoso.com"}}},
			"receivedDateTime": "2026-01-02T03:04:05Z",
			"hasAttachments":   true,
		}}})
	}, "tok")

	msgs, err := b.GetEmails(context.Background(), acct, 5, true)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "work", m.AccountID)
	assert.Equal(t, "ann@contoso.com", m.From)
	assert.Equal(t, "Ann", m.FromName)
	assert.Equal(t, []string{"me@contoso.com"}, m.To)
	assert.True(t, m.HasAttachments)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), m.ReceivedDateTime)
}

func TestMissingCredential(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	}, "")

	msgs, err := b.GetEmails(context.Background(), acct, 5, false)
	assert.True(t, provider.IsCredentialError(err))
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	_, err = b.SendEmail(context.Background(), acct, model.OutgoingEmail{To: []string{"a@b.c"}})
	assert.True(t, provider.IsCredentialError(err), "writes are refused, never no-ops")
}

func TestRejectedTokenBecomesCredentialError(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, "stale")

	cals, err := b.ListCalendars(context.Background(), acct)
	assert.True(t, provider.IsCredentialError(err))
	assert.Empty(t, cals)
}

func TestSearchEmails_DateWindowFilteredClientSide(t *testing.T) {
	newest := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	var srvURL string
	pages := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		assert.Equal(t, `"budget"`, r.URL.Query().Get("$search"))
		assert.Empty(t, r.URL.Query().Get("$filter"))

		offset := 0
		if r.URL.Path == "/next" {
			offset = 3
		}
		var value []map[string]any
		for i := offset; i < offset+3; i++ {
			value = append(value, map[string]any{
				"id":               fmt.Sprintf("m%d", i),
				"receivedDateTime": newest.AddDate(0, 0, -i*10).Format(time.RFC3339),
			})
		}
		resp := map[string]any{"value": value}
		if offset == 0 {
			resp["@odata.nextLink"] = srvURL + "/next?$search=%22budget%22"
		}
		writeJSON(w, resp)
	}))
	defer srv.Close()
	srvURL = srv.URL

	b := New(model.ProviderPersonal, staticAuth{token: "tok"}, zap.NewNop(), WithClient(rest.NewClient(srv.URL)))

	from := newest.AddDate(0, 0, -45)
	to := newest.AddDate(0, 0, -5)
	msgs, err := b.SearchEmails(context.Background(), acct, provider.SearchQuery{
		Query: "budget", Count: 3, From: &from, To: &to,
	})
	require.NoError(t, err)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Equal(t, 2, pages)
}

func TestSendEmail_DraftThenSend(t *testing.T) {
	var calls []string
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/me/messages":
			var d draftMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&d))
			assert.Equal(t, "Text", d.Body.ContentType)
			assert.Equal(t, "bob@fabrikam.com", d.ToRecipients[0].EmailAddress.Address)
			writeJSON(w, map[string]string{"id": "draft-1"})
		case "/me/messages/draft-1/send":
			w.WriteHeader(http.StatusAccepted)
		}
	}, "tok")

	id, err := b.SendEmail(context.Background(), acct, model.OutgoingEmail{
		To: []string{"bob@fabrikam.com"}, Subject: "hi", Body: "yo", BodyFormat: model.BodyFormatText,
	})
	require.NoError(t, err)
	assert.Equal(t, "draft-1", id)
	assert.Equal(t, []string{"POST /me/messages", "POST /me/messages/draft-1/send"}, calls)
}

func TestCalendarEvents(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/calendars/cal-1/calendarView", r.URL.Path)
		assert.Equal(t, "2026-03-01T00:00:00Z", r.URL.Query().Get("startDateTime"))
		writeJSON(w, map[string]any{"value": []map[string]any{{
			"id":             "e1",
			"subject":        "Standup",
			"start":          map[string]string{"dateTime": "2026-03-02T09:00:00.0000000", "timeZone": "UTC"},
			"end":            map[string]string{"dateTime": "2026-03-02T09:15:00.0000000", "timeZone": "UTC"},
			"location":       map[string]string{"displayName": "Room 1"},
			"responseStatus": map[string]string{"response": "accepted"},
		}}})
	}, "tok")

	events, err := b.GetCalendarEvents(context.Background(), acct, provider.EventQuery{
		CalendarID: "cal-1",
		Start:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Count:      50,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), events[0].Start)
	assert.Equal(t, "Room 1", events[0].Location)
	assert.Equal(t, "accepted", events[0].ResponseStatus)
	assert.Equal(t, "cal-1", events[0].CalendarID)
}

func TestCreateUpdateDeleteEvent(t *testing.T) {
	var seen []string
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Review", body["subject"])
			writeJSON(w, map[string]string{"id": "e9"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}, "tok")
	ctx := context.Background()

	id, err := b.CreateEvent(ctx, acct, model.NewEvent{
		Subject: "Review",
		Start:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "e9", id)

	subject := "Review v2"
	require.NoError(t, b.UpdateEvent(ctx, acct, "default", "e9", model.EventUpdate{Subject: &subject}))
	require.NoError(t, b.DeleteEvent(ctx, acct, "cal-2", "e9"))

	assert.Equal(t, []string{
		"POST /me/calendar/events",
		"PATCH /me/calendar/events/e9",
		"DELETE /me/calendars/cal-2/events/e9",
	}, seen)
}

func TestSearchEmails_MaxSearchPages(t *testing.T) {
	newest := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	var srvURL string
	pages := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		writeJSON(w, map[string]any{
			"value": []map[string]any{{
				"id":               fmt.Sprintf("m%d", pages),
				"receivedDateTime": newest.AddDate(0, 0, -pages).Format(time.RFC3339),
			}},
			"@odata.nextLink": srvURL + "/next",
		})
	}))
	defer srv.Close()
	srvURL = srv.URL

	b := New(model.ProviderOrganizational, staticAuth{token: "tok"}, zap.NewNop(),
		WithClient(rest.NewClient(srv.URL)), WithMaxSearchPages(2))

	from := newest.AddDate(0, -1, 0)
	msgs, err := b.SearchEmails(context.Background(), acct, provider.SearchQuery{Query: "x", Count: 10, From: &from})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 2, pages)
}

type rewriteTransport struct {
	target string
	seen   []*http.Request
}

func (rt *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.seen = append(rt.seen, r.Clone(r.Context()))
	u, err := url.Parse(rt.target)
	if err != nil {
		return nil, err
	}
	r = r.Clone(r.Context())
	r.URL.Scheme = u.Scheme
	r.URL.Host = u.Host
	r.Host = u.Host
	return http.DefaultTransport.RoundTrip(r)
}

func TestWithClientOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"value": []any{}})
	}))
	defer srv.Close()

	rt := &rewriteTransport{target: srv.URL}
	b := New(model.ProviderOrganizational, staticAuth{token: "tok"}, zap.NewNop(),
		WithClientOptions(rest.WithHTTPClient(&http.Client{Transport: rt}), rest.WithRateLimit(0, 0)))

	_, err := b.GetEmails(context.Background(), acct, 5, false)
	require.NoError(t, err)

	require.Len(t, rt.seen, 1)
	assert.Equal(t, "graph.microsoft.com", rt.seen[0].URL.Host)
	assert.Equal(t, "/v1.0/me/mailFolders/inbox/messages", rt.seen[0].URL.Path)
	assert.Equal(t, `outlook.timezone="UTC"`, rt.seen[0].Header.Get("Prefer"))
}
