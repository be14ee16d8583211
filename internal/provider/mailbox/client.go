package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/rockfordlhotka/calendar-mcp/internal/mime"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

// maxFetch caps how many messages one search pulls envelopes for.
const maxFetch = 500

// imapClient wraps go-imap v2 for connecting to and querying one mailbox.
type imapClient struct {
	accountID string
	settings  Settings
	password  string
}

// connect establishes a connection to the IMAP server and authenticates.
// The connection is torn down when ctx ends, so a stalled server cannot
// outlive the caller's deadline. The caller must Logout the client.
func (c *imapClient) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.settings.IMAPHost, c.settings.IMAPPort)

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	var client *imapclient.Client
	if c.settings.IMAPTLS {
		client = imapclient.New(tls.Client(conn, &tls.Config{ServerName: c.settings.IMAPHost}), nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: c.settings.IMAPHost},
		})
		if err != nil {
			stop()
			_ = conn.Close()
			return nil, fmt.Errorf("STARTTLS with %s: %w", addr, err)
		}
	}

	if err := client.Login(c.settings.Username, c.password).Wait(); err != nil {
		stop()
		_ = client.Close()
		return nil, &provider.CredentialError{
			AccountID: c.accountID,
			Kind:      model.ProviderIMAP,
			Message:   fmt.Sprintf("login failed for %s: %v", c.settings.Username, err),
		}
	}

	return client, nil
}

// withInbox runs fn against a selected INBOX and logs out afterwards.
func (c *imapClient) withInbox(ctx context.Context, fn func(*imapclient.Client) error) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("selecting INBOX: %w", err)
	}
	return fn(client)
}

// search returns envelopes of the newest messages matching criteria,
// newest first, at most limit of them.
func (c *imapClient) search(ctx context.Context, criteria *imap.SearchCriteria, limit int) ([]model.EmailMessage, error) {
	var out []model.EmailMessage
	err := c.withInbox(ctx, func(client *imapclient.Client) error {
		data, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching messages: %w", err)
		}

		uids := data.AllUIDs()
		if len(uids) == 0 {
			return nil
		}
		// UIDs ascend with arrival; keep the most recent.
		if limit > 0 && len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}

		fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
			Envelope:      true,
			Flags:         true,
			UID:           true,
			InternalDate:  true,
			BodyStructure: &imap.FetchItemBodyStructure{},
		})
		defer fetchCmd.Close()

		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}
			buf, err := msg.Collect()
			if err != nil {
				continue
			}
			out = append(out, c.fromBuffer(buf))
		}
		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetching envelopes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(out)
	return out, nil
}

// fetchMessage fetches and parses one full message by UID.
func (c *imapClient) fetchMessage(ctx context.Context, uid imap.UID) (*model.EmailMessage, error) {
	var out *model.EmailMessage
	err := c.withInbox(ctx, func(client *imapclient.Client) error {
		section := &imap.FetchItemBodySection{Peek: true}
		fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
			Envelope:     true,
			Flags:        true,
			UID:          true,
			InternalDate: true,
			BodySection:  []*imap.FetchItemBodySection{section},
		})
		defer fetchCmd.Close()

		msg := fetchCmd.Next()
		if msg == nil {
			return fmt.Errorf("message UID %d: %w", uid, provider.ErrNotFound)
		}
		buf, err := msg.Collect()
		if err != nil {
			return fmt.Errorf("collecting message data: %w", err)
		}

		m := c.fromBuffer(buf)
		if raw := buf.FindBodySection(section); raw != nil {
			p := mime.Parse(raw)
			m.Body, m.BodyFormat = p.Body()
			m.Cc = p.Cc
			m.Attachments = p.Attachments
			m.HasAttachments = len(p.Attachments) > 0
		}
		out = &m
		return fetchCmd.Close()
	})
	return out, err
}

// fromBuffer maps fetched envelope data onto the unified message.
func (c *imapClient) fromBuffer(buf *imapclient.FetchMessageBuffer) model.EmailMessage {
	m := model.EmailMessage{
		ID:               fmt.Sprint(uint32(buf.UID)),
		AccountID:        c.accountID,
		BodyFormat:       model.BodyFormatText,
		ReceivedDateTime: buf.InternalDate.UTC(),
		IsRead:           slices.Contains(buf.Flags, imap.FlagSeen),
	}

	if env := buf.Envelope; env != nil {
		m.Subject = env.Subject
		if m.ReceivedDateTime.IsZero() {
			m.ReceivedDateTime = env.Date.UTC()
		}
		if len(env.From) > 0 {
			m.From = env.From[0].Addr()
			m.FromName = env.From[0].Name
		}
		for _, to := range env.To {
			m.To = append(m.To, to.Addr())
		}
		for _, cc := range env.Cc {
			m.Cc = append(m.Cc, cc.Addr())
		}
	}

	if mp, ok := buf.BodyStructure.(*imap.BodyStructureMultiPart); ok {
		m.HasAttachments = strings.EqualFold(mp.Subtype, "mixed")
	}
	return m
}

func sortNewestFirst(msgs []model.EmailMessage) {
	slices.SortStableFunc(msgs, func(a, b model.EmailMessage) int {
		return b.ReceivedDateTime.Compare(a.ReceivedDateTime)
	})
}

// searchCriteria builds the IMAP SEARCH for free text within a window.
// IMAP dates have day granularity, so the window is widened to whole days
// here and narrowed again by the caller.
func searchCriteria(q provider.SearchQuery) *imap.SearchCriteria {
	c := &imap.SearchCriteria{}
	if strings.TrimSpace(q.Query) != "" {
		c.Text = []string{q.Query}
	}
	if q.From != nil {
		c.Since = q.From.UTC().Truncate(24 * time.Hour)
	}
	if q.To != nil {
		c.Before = q.To.UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	}
	return c
}

func listCriteria(unreadOnly bool) *imap.SearchCriteria {
	if unreadOnly {
		return &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	}
	return &imap.SearchCriteria{}
}
