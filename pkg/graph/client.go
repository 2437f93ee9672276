package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

const (
	// APIRoot is the Microsoft Graph v1.0 endpoint.
	APIRoot = "https://graph.microsoft.com/v1.0"

	selectFields  = "id,subject,from,receivedDateTime,bodyPreview,webLink"
	noSubject     = "(no subject)"
	unknownSender = "Unknown sender"
)

// APIError is returned for any non-success Graph response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Graph API call failed with status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Graph mail endpoints of one mailbox. The HTTP client
// is expected to add authorization (see auth.GraphHTTPClient).
type Client struct {
	httpClient *http.Client
	baseURL    string
	mailbox    string
}

// NewClient returns a Graph client for mailbox ("me" when empty).
func NewClient(httpClient *http.Client, mailbox string) *Client {
	return NewClientWithBaseURL(httpClient, APIRoot, mailbox)
}

// NewClientWithBaseURL is NewClient against a different API root.
func NewClientWithBaseURL(httpClient *http.Client, baseURL, mailbox string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		mailbox:    mailbox,
	}
}

func (c *Client) mailboxPath() string {
	if c.mailbox == "" || c.mailbox == "me" {
		return "/me"
	}
	return "/users/" + url.PathEscape(c.mailbox)
}

type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type message struct {
	ID               string  `json:"id"`
	Subject          *string `json:"subject"`
	ReceivedDateTime string  `json:"receivedDateTime"`
	BodyPreview      string  `json:"bodyPreview"`
	WebLink          string  `json:"webLink"`
	From             *struct {
		EmailAddress *emailAddress `json:"emailAddress"`
	} `json:"from"`
}

type messagesResponse struct {
	Value []message `json:"value"`
}

// FetchUnread returns up to limit unread inbox messages, newest first.
func (c *Client) FetchUnread(ctx context.Context, limit int) ([]model.Message, error) {
	params := url.Values{}
	params.Set("$top", strconv.Itoa(limit))
	params.Set("$filter", "isRead eq false")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", selectFields)
	endpoint := c.baseURL + c.mailboxPath() + "/mailFolders/Inbox/messages?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	log.Printf("GET %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var payload messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode messages response: %w", err)
	}

	msgs := make([]model.Message, 0, len(payload.Value))
	for _, m := range payload.Value {
		converted, err := toMessage(m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, converted)
	}
	return msgs, nil
}

// MarkRead sets isRead on a message.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	endpoint := c.baseURL + c.mailboxPath() + "/messages/" + url.PathEscape(messageID)
	body := bytes.NewBufferString(`{"isRead":true}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("PATCH %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return newAPIError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// toMessage maps a Graph message. Blank subjects become "(no subject)";
// messages with an empty id or subject from other sources are rejected by
// todo.Reconcile.
func toMessage(m message) (model.Message, error) {
	received, err := ParseDateTime(m.ReceivedDateTime)
	if err != nil {
		return model.Message{}, fmt.Errorf("message %s: %w", m.ID, err)
	}
	subject := noSubject
	if m.Subject != nil && strings.TrimSpace(*m.Subject) != "" {
		subject = *m.Subject
	}
	return model.Message{
		ID:          m.ID,
		Subject:     subject,
		Sender:      sender(m),
		ReceivedAt:  received,
		BodyPreview: m.BodyPreview,
		WebLink:     m.WebLink,
	}, nil
}

func sender(m message) string {
	if m.From == nil || m.From.EmailAddress == nil {
		return unknownSender
	}
	if m.From.EmailAddress.Name != "" {
		return m.From.EmailAddress.Name
	}
	if m.From.EmailAddress.Address != "" {
		return m.From.EmailAddress.Address
	}
	return unknownSender
}

// ParseDateTime parses Graph timestamps. Values without an offset are UTC.
func ParseDateTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing receivedDateTime")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid receivedDateTime %q: %w", value, err)
	}
	return t, nil
}
