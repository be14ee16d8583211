package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/fanout"
	"github.com/rockfordlhotka/calendar-mcp/internal/model"
	"github.com/rockfordlhotka/calendar-mcp/internal/provider"
)

// GetEmailsRequest selects recent inbox messages.
type GetEmailsRequest struct {
	// AccountID names one account; empty means every enabled account.
	AccountID string `json:"accountId" form:"accountId"`

	// Count caps the messages fetched per account.
	Count      int  `json:"count" form:"count"`
	UnreadOnly bool `json:"unreadOnly" form:"unreadOnly"`
}

// SearchEmailsRequest selects messages by text and received time.
type SearchEmailsRequest struct {
	AccountID string     `json:"accountId" form:"accountId"`
	Query     string     `json:"query" form:"query"`
	Count     int        `json:"count" form:"count"`
	From      *time.Time `json:"fromDate,omitempty" form:"fromDate" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `json:"toDate,omitempty" form:"toDate" time_format:"2006-01-02T15:04:05Z07:00"`
}

// SendEmailRequest is an outbound message. Without AccountID the sending
// account is routed from the first recipient's domain.
type SendEmailRequest struct {
	AccountID  string   `json:"accountId"`
	To         []string `json:"to"`
	Cc         []string `json:"cc,omitempty"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	BodyFormat string   `json:"bodyFormat,omitempty"`
}

// GetEmails returns recent inbox messages merged across the target
// accounts, newest first.
func (s *Service) GetEmails(ctx context.Context, req GetEmailsRequest) (*fanout.Result[model.EmailMessage], error) {
	if req.Count < 0 {
		return nil, invalid("count must not be negative")
	}
	count := req.Count
	if count == 0 {
		count = DefaultEmailCount
	}

	targets, err := s.readTargets(req.AccountID)
	if err != nil {
		return nil, err
	}

	res, err := fanout.Execute(ctx, s.engine, OpGetEmails, targets,
		func(ctx context.Context, b provider.Backend, acct model.Account) ([]model.EmailMessage, error) {
			return b.GetEmails(ctx, acct, count, req.UnreadOnly)
		}, fanout.ByReceivedDesc)
	recordStatuses(ctx, s, OpGetEmails, res)
	return res, err
}

// SearchEmails returns messages matching the query across the target
// accounts, newest first. A date range is honored even where the provider
// cannot combine it with free-text search server-side.
func (s *Service) SearchEmails(ctx context.Context, req SearchEmailsRequest) (*fanout.Result[model.EmailMessage], error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, invalid("query is required")
	}
	if req.Count < 0 {
		return nil, invalid("count must not be negative")
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, invalid("toDate is before fromDate")
	}
	count := req.Count
	if count == 0 {
		count = DefaultSearchCount
	}

	targets, err := s.readTargets(req.AccountID)
	if err != nil {
		return nil, err
	}

	q := provider.SearchQuery{Query: query, Count: count, From: req.From, To: req.To}
	res, err := fanout.Execute(ctx, s.engine, OpSearchEmails, targets,
		func(ctx context.Context, b provider.Backend, acct model.Account) ([]model.EmailMessage, error) {
			return b.SearchEmails(ctx, acct, q)
		}, fanout.ByReceivedDesc)
	recordStatuses(ctx, s, OpSearchEmails, res)
	return res, err
}

// GetEmailDetail returns one message with body and attachments. A message
// that does not exist yields an error wrapping provider.ErrNotFound; a
// missing credential yields a *fanout.FailureError of kind
// unauthenticated.
func (s *Service) GetEmailDetail(ctx context.Context, accountID, emailID string) (*model.EmailMessage, error) {
	if accountID == "" || emailID == "" {
		return nil, invalid("accountId and emailId are required")
	}
	acct, err := s.account(accountID)
	if err != nil {
		return nil, err
	}

	var msg *model.EmailMessage
	err = s.engine.Do(ctx, OpGetEmailDetail, acct, func(ctx context.Context, b provider.Backend) error {
		var err error
		msg, err = b.GetEmailDetail(ctx, acct, emailID)
		if err == nil && msg == nil {
			err = provider.ErrNotFound
		}
		return err
	})
	if s.store != nil {
		failure := ""
		if err != nil {
			failure = err.Error()
		}
		s.recordAccount(context.WithoutCancel(ctx), OpGetEmailDetail, acct.ID, failure, s.now())
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// SendEmail sends a message from the named or routed account. The outcome
// is always populated; err is non-nil whenever Success is false.
func (s *Service) SendEmail(ctx context.Context, req SendEmailRequest) (WriteOutcome, error) {
	var out WriteOutcome

	to := cleanAddresses(req.To)
	if len(to) == 0 {
		return fail(&out, invalid("at least one recipient is required"))
	}
	for _, addr := range slices.Concat(to, cleanAddresses(req.Cc)) {
		if !strings.Contains(addr, "@") {
			return fail(&out, invalid("malformed address %q", addr))
		}
	}
	format := strings.ToLower(strings.TrimSpace(req.BodyFormat))
	switch format {
	case "":
		format = model.BodyFormatHTML
	case model.BodyFormatHTML, model.BodyFormatText:
	default:
		return fail(&out, invalid("bodyFormat must be %q or %q", model.BodyFormatHTML, model.BodyFormatText))
	}

	acct, reason, err := s.selectAccount(req.AccountID, to[0])
	out.Routing = reason
	if err != nil {
		return fail(&out, err)
	}

	msg := model.OutgoingEmail{
		To:         to,
		Cc:         cleanAddresses(req.Cc),
		Subject:    req.Subject,
		Body:       req.Body,
		BodyFormat: format,
	}
	err = s.write(ctx, OpSendEmail, acct, &out, func(ctx context.Context, b provider.Backend) (string, error) {
		return b.SendEmail(ctx, acct, msg)
	})
	return out, err
}

func cleanAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
