package connectors

import "sunmatch/internal"

// MailConnector pulls raw proposal mail from one provider. Implementations
// must not mutate mailbox state beyond what their config allows.
type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
