package imap

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"sunmatch/internal"
	"sunmatch/internal/config"
)

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
	subjects []string
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
		subjects: cfg.FetchSubjects,
	}, nil
}

// FetchInbox pulls up to max unseen proposal-like messages from the mailbox.
// The subject filter runs server-side so mailboxes shared with unrelated
// traffic don't flood the store; the detect step still judges whatever comes
// back. A fresh connection per call; proposal volume does not justify a
// persistent session.
func (c *Connector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	client, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer client.Logout()

	if err := client.Login(c.user, c.password); err != nil {
		return nil, err
	}
	if _, err := client.Select(label, false); err != nil {
		return nil, err
	}

	ids, err := client.Search(searchCriteria(c.subjects))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.Fetch(seqset, items, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for msg := range messages {
		fetched, ok, err := toFetchedMessage(msg, section)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, fetched)

		if c.markSeen {
			if err := markMessageSeen(client, msg.SeqNum); err != nil {
				return nil, err
			}
		}
	}

	if err := <-fetchDone; err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	if c.secure {
		return imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	}
	return imapclient.Dial(addr)
}

// searchCriteria builds the unseen-mail search, restricted to the proposal
// subject keywords when any are configured. Multiple keywords become a
// nested OR tree; IMAP SEARCH has no n-ary OR.
func searchCriteria(subjects []string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	var tree *imap.SearchCriteria
	for _, subject := range subjects {
		leaf := &imap.SearchCriteria{Header: textproto.MIMEHeader{"Subject": {subject}}}
		if tree == nil {
			tree = leaf
			continue
		}
		tree = &imap.SearchCriteria{Or: [][2]*imap.SearchCriteria{{tree, leaf}}}
	}

	if tree == nil {
		return criteria
	}
	criteria.Header = tree.Header
	criteria.Or = tree.Or
	return criteria
}

func toFetchedMessage(msg *imap.Message, section *imap.BodySectionName) (internal.FetchedMailMessage, bool, error) {
	if msg == nil {
		return internal.FetchedMailMessage{}, false, nil
	}
	body := msg.GetBody(section)
	if body == nil {
		return internal.FetchedMailMessage{}, false, nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}

	messageID := ""
	subject := ""
	from := ""
	if msg.Envelope != nil {
		messageID = msg.Envelope.MessageId
		subject = msg.Envelope.Subject
		from = formatAddresses(msg.Envelope.From)
	}
	if messageID == "" {
		messageID = fmt.Sprintf("imap-%d", msg.Uid)
	}

	received := time.Now().UTC().Format(time.RFC3339)
	if !msg.InternalDate.IsZero() {
		received = msg.InternalDate.UTC().Format(time.RFC3339)
	}

	return internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  messageID,
		Subject:    subject,
		From:       from,
		ReceivedAt: received,
		Raw:        raw,
	}, true, nil
}

func markMessageSeen(client *imapclient.Client, seqNum uint32) error {
	single := new(imap.SeqSet)
	single.AddNum(seqNum)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return client.Store(single, item, []interface{}{imap.SeenFlag}, nil)
}

func formatAddresses(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(strings.Join([]string{a.MailboxName, a.HostName}, "@"), "@")
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
