// Package providertest supplies a testify mock of provider.Backend.
package providertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

// Backend is a mock provider.Backend. Expectations are keyed on the
// account ID so one mock can serve several accounts of the same kind.
type Backend struct {
	mock.Mock
	kind model.ProviderKind
}

// New returns a mock serving kind.
func New(kind model.ProviderKind) *Backend {
	return &Backend{kind: kind}
}

func (m *Backend) Kind() model.ProviderKind { return m.kind }

func (m *Backend) GetEmails(ctx context.Context, acct model.Account, count int, unreadOnly bool) ([]model.EmailMessage, error) {
	args := m.Called(ctx, acct.ID, count, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EmailMessage), args.Error(1)
}

func (m *Backend) SearchEmails(ctx context.Context, acct model.Account, q provider.SearchQuery) ([]model.EmailMessage, error) {
	args := m.Called(ctx, acct.ID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EmailMessage), args.Error(1)
}

func (m *Backend) GetEmailDetail(ctx context.Context, acct model.Account, emailID string) (*model.EmailMessage, error) {
	args := m.Called(ctx, acct.ID, emailID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EmailMessage), args.Error(1)
}

func (m *Backend) SendEmail(ctx context.Context, acct model.Account, msg model.OutgoingEmail) (string, error) {
	args := m.Called(ctx, acct.ID, msg)
	return args.String(0), args.Error(1)
}

func (m *Backend) ListCalendars(ctx context.Context, acct model.Account) ([]model.CalendarInfo, error) {
	args := m.Called(ctx, acct.ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CalendarInfo), args.Error(1)
}

func (m *Backend) GetCalendarEvents(ctx context.Context, acct model.Account, q provider.EventQuery) ([]model.CalendarEvent, error) {
	args := m.Called(ctx, acct.ID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CalendarEvent), args.Error(1)
}

func (m *Backend) CreateEvent(ctx context.Context, acct model.Account, ev model.NewEvent) (string, error) {
	args := m.Called(ctx, acct.ID, ev)
	return args.String(0), args.Error(1)
}

func (m *Backend) UpdateEvent(ctx context.Context, acct model.Account, calendarID, eventID string, upd model.EventUpdate) error {
	args := m.Called(ctx, acct.ID, calendarID, eventID, upd)
	return args.Error(0)
}

func (m *Backend) DeleteEvent(ctx context.Context, acct model.Account, calendarID, eventID string) error {
	args := m.Called(ctx, acct.ID, calendarID, eventID)
	return args.Error(0)
}

var _ provider.Backend = (*Backend)(nil)
