// Package mailbox is a mail gateway over IMAP, for accounts that are not
// reachable through Microsoft Graph.
package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

const (
	previewLength = 255
	noSubject     = "(no subject)"
	unknownSender = "Unknown sender"
)

// Client fetches unread messages from one IMAP mailbox. Message ids are
// IMAP UIDs, which stay valid as long as the mailbox UIDVALIDITY does.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewClient returns a client for the given server and mailbox ("INBOX" when empty).
func NewClient(host, port, username, password string, tls bool, mailbox string) *Client {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		mailbox:  mailbox,
	}
}

// connect dials, authenticates and selects the mailbox. The caller must
// log out of the returned client.
func (c *Client) connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.username, err)
	}
	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}
	log.Printf("connected to %s as %s", addr, c.username)
	return client, nil
}

// FetchUnread returns up to limit unseen messages, newest first. Bodies are
// fetched with PEEK so the \Seen flag is left alone.
func (c *Client) FetchUnread(ctx context.Context, limit int) ([]model.Message, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	uids := newestFirst(searchData.AllUIDs(), limit)
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	byUID := make(map[imap.UID]model.Message, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			return nil, fmt.Errorf("collecting message data: %w", err)
		}
		byUID[buf.UID] = toMessage(buf, bodyPreview(buf.FindBodySection(bodySection)))
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	// FETCH answers in mailbox order; restore newest-first.
	msgs := make([]model.Message, 0, len(byUID))
	for _, uid := range uids {
		if m, ok := byUID[uid]; ok {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

// MarkRead adds the \Seen flag to the message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	storeCmd := client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging message %s as seen: %w", messageID, err)
	}
	return nil
}

func toMessage(buf *imapclient.FetchMessageBuffer, preview string) model.Message {
	msg := model.Message{
		ID:          strconv.FormatUint(uint64(buf.UID), 10),
		Subject:     noSubject,
		Sender:      unknownSender,
		ReceivedAt:  buf.InternalDate,
		BodyPreview: preview,
	}
	if env := buf.Envelope; env != nil {
		if strings.TrimSpace(env.Subject) != "" {
			msg.Subject = env.Subject
		}
		if len(env.From) > 0 {
			if env.From[0].Name != "" {
				msg.Sender = env.From[0].Name
			} else if addr := env.From[0].Addr(); addr != "" {
				msg.Sender = addr
			}
		}
		if !env.Date.IsZero() {
			msg.ReceivedAt = env.Date
		}
	}
	return msg
}

// newestFirst keeps the last limit UIDs (the most recent ones) in
// descending order.
func newestFirst(uids []imap.UID, limit int) []imap.UID {
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	out := make([]imap.UID, len(uids))
	for i, uid := range uids {
		out[len(uids)-1-i] = uid
	}
	return out
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid IMAP message id %q", id)
	}
	return imap.UID(n), nil
}

// bodyPreview extracts the start of the first text/plain part of a raw
// RFC 5322 message, with whitespace collapsed.
func bodyPreview(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(part.Body, 16*1024))
		if err != nil {
			return ""
		}
		return truncate(strings.Join(strings.Fields(string(body)), " "), previewLength)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
