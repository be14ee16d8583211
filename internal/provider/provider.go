// Package provider defines the capability contract every mail/calendar
// backend implements, the typed errors they share, and the resolver that
// maps configured provider names to backends.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

var (
	// ErrUnknownProvider is returned when an account names a provider kind
	// no backend is registered for.
	ErrUnknownProvider = errors.New("unknown provider kind")

	// ErrUnsupported is returned by backends for operations their provider
	// has no equivalent of.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrNotFound is returned when the addressed message or event does not
	// exist on the account.
	ErrNotFound = errors.New("not found")
)

// CredentialError indicates that no usable credential is available for an
// account: nothing is cached, the refresh token was revoked, or the
// provider rejected the token. The account must be re-enrolled.
type CredentialError struct {
	AccountID string
	Kind      model.ProviderKind
	Message   string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("no credential for account %s (%s): %s", e.AccountID, e.Kind, e.Message)
}

// IsCredentialError reports whether err (or any error in its chain) is a
// CredentialError.
func IsCredentialError(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr)
}

// Credential is a bearer token (or, for IMAP, an app password) for one
// account.
type Credential struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// Authenticator is the boundary to the token cache and refresh machinery.
type Authenticator interface {
	// GetCredential returns a usable credential for acct with the given
	// scopes, refreshing silently if needed. It returns (nil, nil) when
	// nothing is cached; that is an expected outcome, not an error.
	GetCredential(ctx context.Context, acct model.Account, scopes []string) (*Credential, error)
}

// SearchQuery selects messages by free text and an optional received-time
// window.
type SearchQuery struct {
	Query string
	Count int
	// From and To bound ReceivedDateTime; nil means unbounded.
	From *time.Time
	To   *time.Time
}

// EventQuery selects events from one calendar within [Start, End).
type EventQuery struct {
	// CalendarID is empty for the account's default calendar.
	CalendarID string
	Start      time.Time
	End        time.Time
	Count      int
}

// DefaultEventWindow is the range used when a caller gives no bounds:
// from the start of today (UTC) through thirty days later.
func DefaultEventWindow(now time.Time) (time.Time, time.Time) {
	start := now.UTC().Truncate(24 * time.Hour)
	return start, start.AddDate(0, 0, 30)
}

// Backend defines the contract that every provider integration must
// implement. Every method obtains a credential first; when none is
// available it logs a warning and returns a *CredentialError (list and
// search methods return an empty slice alongside it).
type Backend interface {
	// Kind returns the provider kind this backend serves.
	Kind() model.ProviderKind

	// GetEmails returns up to count recent inbox messages, newest first.
	GetEmails(ctx context.Context, acct model.Account, count int, unreadOnly bool) ([]model.EmailMessage, error)

	// SearchEmails returns up to q.Count messages matching q.Query whose
	// received time falls within q.From and q.To.
	SearchEmails(ctx context.Context, acct model.Account, q SearchQuery) ([]model.EmailMessage, error)

	// GetEmailDetail returns one message with body and attachments, or
	// ErrNotFound.
	GetEmailDetail(ctx context.Context, acct model.Account, emailID string) (*model.EmailMessage, error)

	// SendEmail sends msg and returns the provider's message ID.
	SendEmail(ctx context.Context, acct model.Account, msg model.OutgoingEmail) (string, error)

	// ListCalendars returns the calendars visible to the account.
	ListCalendars(ctx context.Context, acct model.Account) ([]model.CalendarInfo, error)

	// GetCalendarEvents returns up to q.Count events overlapping the window.
	GetCalendarEvents(ctx context.Context, acct model.Account, q EventQuery) ([]model.CalendarEvent, error)

	// CreateEvent creates ev and returns the new event ID.
	CreateEvent(ctx context.Context, acct model.Account, ev model.NewEvent) (string, error)

	// UpdateEvent applies the non-nil fields of upd.
	UpdateEvent(ctx context.Context, acct model.Account, calendarID, eventID string, upd model.EventUpdate) error

	// DeleteEvent removes the event.
	DeleteEvent(ctx context.Context, acct model.Account, calendarID, eventID string) error
}

// AcquireToken asks auth for a credential and converts absence into a
// *CredentialError, logging a warning so operators see which account needs
// re-enrollment.
func AcquireToken(
	ctx context.Context,
	auth Authenticator,
	log *zap.Logger,
	kind model.ProviderKind,
	acct model.Account,
	scopes []string,
) (string, error) {
	cred, err := auth.GetCredential(ctx, acct, scopes)
	if err != nil {
		return "", fmt.Errorf("acquiring credential for %s: %w", acct.ID, err)
	}
	if cred == nil || cred.AccessToken == "" {
		log.Warn("no cached credential; account needs enrollment",
			zap.String("account", acct.ID),
			zap.String("provider", kind.String()),
		)
		return "", &CredentialError{AccountID: acct.ID, Kind: kind, Message: "not enrolled or token expired"}
	}
	return cred.AccessToken, nil
}
