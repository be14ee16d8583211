package model

import "time"

// Body formats accepted when sending and reported on fetched messages.
const (
	BodyFormatHTML = "html"
	BodyFormatText = "text"
)

// DefaultAttachmentContentType is reported when a provider omits one.
const DefaultAttachmentContentType = "application/octet-stream"

// EmailMessage is the unified representation of a message from any provider.
type EmailMessage struct {
	// ID is the provider's identifier for the message, scoped to AccountID.
	ID string `json:"id"`

	// AccountID is the account the message was fetched from.
	AccountID string `json:"accountId"`

	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	FromName string   `json:"fromName"`
	To       []string `json:"to"`
	Cc       []string `json:"cc"`

	// Body is empty for list/search results and populated by detail fetches.
	Body string `json:"body"`

	// BodyFormat is BodyFormatHTML or BodyFormatText.
	BodyFormat string `json:"bodyFormat"`

	ReceivedDateTime time.Time `json:"receivedDateTime"`
	IsRead           bool      `json:"isRead"`
	HasAttachments   bool      `json:"hasAttachments"`

	// Attachments is populated by detail fetches only.
	Attachments []EmailAttachment `json:"attachments,omitempty"`
}

// EmailAttachment describes one attachment without its content.
type EmailAttachment struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// OutgoingEmail is a message to be sent from a single account.
type OutgoingEmail struct {
	To         []string `json:"to"`
	Cc         []string `json:"cc,omitempty"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	BodyFormat string   `json:"bodyFormat"`
}
