// Package mime parses and composes RFC 5322 messages for backends that
// exchange raw messages (IMAP, SMTP and Gmail's raw format).
package mime

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// Parsed is the decoded content of a raw message.
type Parsed struct {
	Subject     string
	From        string
	FromName    string
	To          []string
	Cc          []string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []model.EmailAttachment
}

// Body returns the HTML part when present, otherwise the text part,
// with its format.
func (p *Parsed) Body() (string, string) {
	if p.HTML != "" {
		return p.HTML, model.BodyFormatHTML
	}
	return p.Text, model.BodyFormatText
}

// Parse reads a raw message and extracts headers, the text/plain and
// text/html bodies, and attachment metadata. A message that cannot be
// parsed as MIME is returned as plain text.
func Parse(raw []byte) *Parsed {
	p := &Parsed{}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		p.Text = string(raw)
		return p
	}
	defer mr.Close()

	p.Subject, _ = mr.Header.Subject()
	p.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		p.From = from[0].Address
		p.FromName = from[0].Name
	}
	p.To = addressList(mr.Header, "To")
	p.Cc = addressList(mr.Header, "Cc")

	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF ends the message; anything else leaves what we have.
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain") && p.Text == "":
				p.Text = string(body)
			case strings.HasPrefix(contentType, "text/html") && p.HTML == "":
				p.HTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			if contentType == "" {
				contentType = model.DefaultAttachmentContentType
			}

			// Read to get size without keeping content.
			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			p.Attachments = append(p.Attachments, model.EmailAttachment{
				Name:        filename,
				Size:        n,
				ContentType: contentType,
			})
		}
	}

	return p
}

func addressList(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

// Compose renders msg as a single-part RFC 5322 message from the given
// sender address.
func Compose(msg model.OutgoingEmail, from, messageID string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", toAddresses(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", toAddresses(msg.Cc))
	}
	if messageID != "" {
		h.SetMessageID(messageID)
	}

	mediaType := "text/html"
	if msg.BodyFormat == model.BodyFormatText {
		mediaType = "text/plain"
	}
	h.SetContentType(mediaType, map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func toAddresses(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: a})
	}
	return out
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
