package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"sunmatch/internal"
	"sunmatch/internal/config"
)

type Connector struct {
	service *gmail.Service
	query   string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(context.Background(), option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, query: buildQuery(cfg.FetchSubjects)}, nil
}

// FetchInbox lists up to max proposal-like messages under the label and pulls
// each one raw. The proposal query runs server-side so shared inboxes don't
// flood the document store; the detect step still judges whatever comes back.
func (c *Connector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	listCall := c.service.Users.Messages.List("me").LabelIds(label).MaxResults(int64(max))
	if c.query != "" {
		listCall = listCall.Q(c.query)
	}
	listResp, err := listCall.Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, msgRef := range listResp.Messages {
		if msgRef.Id == "" {
			continue
		}
		fetched, ok, err := c.fetchMessage(msgRef.Id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, fetched)
		}
	}

	return out, nil
}

// fetchMessage pulls one message raw plus the headers the document store
// keys on. Two Get calls: Gmail's raw format carries no parsed headers.
func (c *Connector) fetchMessage(id string) (internal.FetchedMailMessage, bool, error) {
	rawResp, err := c.service.Users.Messages.Get("me", id).Format("raw").Do()
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}
	if rawResp.Raw == "" {
		return internal.FetchedMailMessage{}, false, nil
	}
	rawBytes, err := decodeBase64URL(rawResp.Raw)
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}

	metaResp, err := c.service.Users.Messages.Get("me", id).Format("metadata").
		MetadataHeaders("Subject", "From", "Date", "Message-ID").Do()
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}

	headers := map[string]string{}
	if metaResp.Payload != nil {
		for _, h := range metaResp.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	received := time.Now().UTC().Format(time.RFC3339)
	if dateHeader := headers["date"]; dateHeader != "" {
		if t, err := mailDate(dateHeader); err == nil {
			received = t.UTC().Format(time.RFC3339)
		}
	}

	messageID := headers["message-id"]
	if messageID == "" {
		messageID = id
	}

	return internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  messageID,
		Subject:    headers["subject"],
		From:       headers["from"],
		ReceivedAt: received,
		Raw:        rawBytes,
	}, true, nil
}

// buildQuery renders the subject keywords as a Gmail search expression.
// Proposals usually travel as PDF attachments, so attachment-bearing mail is
// always included; an empty keyword list disables the filter entirely.
func buildQuery(subjects []string) string {
	if len(subjects) == 0 {
		return ""
	}
	return fmt.Sprintf("subject:(%s) OR filename:pdf", strings.Join(subjects, " OR "))
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

func mailDate(value string) (time.Time, error) {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}
