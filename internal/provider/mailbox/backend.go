// Package mailbox implements the provider backend for plain IMAP/SMTP
// accounts. Such accounts carry mail only; calendar reads come back empty
// and calendar writes return provider.ErrUnsupported.
package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rockfordlhotka/calendar-mcp/internal/mime"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

// Settings are read from an account's provider_config.
type Settings struct {
	Address  string
	Username string

	IMAPHost string
	IMAPPort string
	IMAPTLS  bool

	SMTPHost string
	SMTPPort string
	SMTPTLS  bool
}

// SettingsFor reads connection settings, applying the conventional
// implicit-TLS ports when none are given.
func SettingsFor(acct model.Account) (Settings, error) {
	s := Settings{
		Address:  acct.Setting("address", ""),
		IMAPHost: acct.Setting("imap_host", ""),
		IMAPPort: acct.Setting("imap_port", "993"),
		SMTPHost: acct.Setting("smtp_host", ""),
		SMTPPort: acct.Setting("smtp_port", "465"),
	}
	s.Username = acct.Setting("username", s.Address)
	s.IMAPTLS, _ = strconv.ParseBool(acct.Setting("imap_tls", "true"))
	s.SMTPTLS, _ = strconv.ParseBool(acct.Setting("smtp_tls", "true"))

	if s.IMAPHost == "" {
		return s, fmt.Errorf("account %s: imap_host is required", acct.ID)
	}
	if s.Address == "" {
		return s, fmt.Errorf("account %s: address is required", acct.ID)
	}
	if s.SMTPHost == "" {
		s.SMTPHost = s.IMAPHost
	}
	return s, nil
}

// Backend serves IMAP/SMTP accounts. The stored credential is the
// mailbox password or app password.
type Backend struct {
	auth provider.Authenticator
	log  *zap.Logger
	now  func() time.Time
}

// New creates an IMAP/SMTP backend.
func New(auth provider.Authenticator, log *zap.Logger) *Backend {
	return &Backend{auth: auth, log: log.Named("mailbox"), now: time.Now}
}

// Kind implements provider.Backend.
func (b *Backend) Kind() model.ProviderKind { return model.ProviderIMAP }

func (b *Backend) client(ctx context.Context, acct model.Account) (*imapClient, error) {
	settings, err := SettingsFor(acct)
	if err != nil {
		return nil, err
	}
	password, err := provider.AcquireToken(ctx, b.auth, b.log, model.ProviderIMAP, acct, nil)
	if err != nil {
		return nil, err
	}
	return &imapClient{accountID: acct.ID, settings: settings, password: password}, nil
}

// GetEmails implements provider.Backend.
func (b *Backend) GetEmails(ctx context.Context, acct model.Account, count int, unreadOnly bool) ([]model.EmailMessage, error) {
	c, err := b.client(ctx, acct)
	if err != nil {
		return []model.EmailMessage{}, err
	}
	msgs, err := c.search(ctx, listCriteria(unreadOnly), count)
	if err != nil {
		return []model.EmailMessage{}, err
	}
	return msgs, nil
}

// SearchEmails implements provider.Backend.
func (b *Backend) SearchEmails(ctx context.Context, acct model.Account, q provider.SearchQuery) ([]model.EmailMessage, error) {
	c, err := b.client(ctx, acct)
	if err != nil {
		return []model.EmailMessage{}, err
	}
	msgs, err := c.search(ctx, searchCriteria(q), maxFetch)
	if err != nil {
		return []model.EmailMessage{}, err
	}
	msgs = provider.FilterByReceived(msgs, q.From, q.To)
	if q.Count > 0 && len(msgs) > q.Count {
		msgs = msgs[:q.Count]
	}
	return msgs, nil
}

// GetEmailDetail implements provider.Backend. Message IDs are IMAP UIDs in
// INBOX.
func (b *Backend) GetEmailDetail(ctx context.Context, acct model.Account, emailID string) (*model.EmailMessage, error) {
	uid, err := parseUID(emailID)
	if err != nil {
		return nil, err
	}
	c, err := b.client(ctx, acct)
	if err != nil {
		return nil, err
	}
	return c.fetchMessage(ctx, uid)
}

// SendEmail implements provider.Backend by submitting over SMTP. The
// returned ID is the generated Message-ID.
func (b *Backend) SendEmail(ctx context.Context, acct model.Account, msg model.OutgoingEmail) (string, error) {
	settings, err := SettingsFor(acct)
	if err != nil {
		return "", err
	}
	password, err := provider.AcquireToken(ctx, b.auth, b.log, model.ProviderIMAP, acct, nil)
	if err != nil {
		return "", err
	}

	messageID := uuid.NewString() + "@calendar-mcp"
	raw, err := mime.Compose(msg, settings.Address, messageID, b.now())
	if err != nil {
		return "", err
	}

	rcpts := append(append([]string{}, msg.To...), msg.Cc...)
	if err := submit(ctx, settings, password, rcpts, raw); err != nil {
		return "", fmt.Errorf("smtp send for %s: %w", acct.ID, err)
	}

	b.log.Info("message sent", zap.String("account", acct.ID), zap.String("message_id", messageID))
	return messageID, nil
}

// submit delivers raw to the submission server.
func submit(ctx context.Context, s Settings, password string, rcpts []string, raw []byte) error {
	addr := net.JoinHostPort(s.SMTPHost, s.SMTPPort)
	tlsConfig := &tls.Config{ServerName: s.SMTPHost}

	var (
		c   *smtp.Client
		err error
	)
	if s.SMTPTLS {
		c, err = smtp.DialTLS(addr, tlsConfig)
	} else {
		c, err = smtp.DialStartTLS(addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if err := c.Auth(sasl.NewPlainClient("", s.Username, password)); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}
	if err := c.SendMail(s.Address, rcpts, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("SMTP send: %w", err)
	}
	return c.Quit()
}

// ListCalendars implements provider.Backend. Plain mailboxes have none.
func (b *Backend) ListCalendars(context.Context, model.Account) ([]model.CalendarInfo, error) {
	return []model.CalendarInfo{}, nil
}

// GetCalendarEvents implements provider.Backend. Plain mailboxes have none.
func (b *Backend) GetCalendarEvents(context.Context, model.Account, provider.EventQuery) ([]model.CalendarEvent, error) {
	return []model.CalendarEvent{}, nil
}

// CreateEvent implements provider.Backend.
func (b *Backend) CreateEvent(context.Context, model.Account, model.NewEvent) (string, error) {
	return "", fmt.Errorf("create event: %w", provider.ErrUnsupported)
}

// UpdateEvent implements provider.Backend.
func (b *Backend) UpdateEvent(context.Context, model.Account, string, string, model.EventUpdate) error {
	return fmt.Errorf("update event: %w", provider.ErrUnsupported)
}

// DeleteEvent implements provider.Backend.
func (b *Backend) DeleteEvent(context.Context, model.Account, string, string) error {
	return fmt.Errorf("delete event: %w", provider.ErrUnsupported)
}

// parseUID converts a message ID to an IMAP UID.
func parseUID(id string) (imap.UID, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf("invalid message id %q: %w", id, provider.ErrNotFound)
	}
	return imap.UID(uid), nil
}
