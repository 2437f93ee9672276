package graph

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const inboxPayload = `{
	"value": [
		{
			"id": "AAMk1",
			"subject": "Quarterly report",
			"from": {"emailAddress": {"name": "Alice", "address": "alice@example.com"}},
			"receivedDateTime": "2023-09-01T10:00:00Z",
			"bodyPreview": "Please review",
			"webLink": "https://outlook.office365.com/owa/?ItemID=AAMk1"
		},
		{
			"id": "AAMk2",
			"subject": null,
			"from": {"emailAddress": {"address": "bob@example.com"}},
			"receivedDateTime": "2023-09-01T09:00:00"
		},
		{
			"id": "AAMk3",
			"subject": "No sender",
			"receivedDateTime": "2023-09-01T08:00:00Z"
		}
	]
}`

func TestFetchUnread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/me/mailFolders/Inbox/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("$top") != "5" || q.Get("$filter") != "isRead eq false" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, inboxPayload)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.Client(), srv.URL, "")
	msgs, err := c.FetchUnread(context.Background(), 5)
	if err != nil {
		t.Fatalf("FetchUnread failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}

	first := msgs[0]
	if first.ID != "AAMk1" || first.Subject != "Quarterly report" || first.Sender != "Alice" {
		t.Errorf("unexpected first message %+v", first)
	}
	if !first.ReceivedAt.Equal(time.Date(2023, 9, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected receive time %v", first.ReceivedAt)
	}
	if first.WebLink == "" || first.BodyPreview != "Please review" {
		t.Errorf("Expected link and preview, got %+v", first)
	}

	if msgs[1].Subject != noSubject || msgs[1].Sender != "bob@example.com" {
		t.Errorf("Expected subject/sender fallbacks, got %+v", msgs[1])
	}
	if msgs[1].ReceivedAt.Location() != time.UTC {
		t.Errorf("Expected naive timestamp to be UTC, got %v", msgs[1].ReceivedAt)
	}
	if msgs[2].Sender != unknownSender {
		t.Errorf("Expected %q, got %q", unknownSender, msgs[2].Sender)
	}
}

func TestFetchUnreadSharedMailbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/ops@example.com/mailFolders/Inbox/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"value": []}`)
	}))
	defer srv.Close()

	msgs, err := NewClientWithBaseURL(srv.Client(), srv.URL, "ops@example.com").FetchUnread(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchUnread failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no messages, got %v", msgs)
	}
}

func TestFetchUnreadAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"code":"InvalidAuthenticationToken"}}`)
	}))
	defer srv.Close()

	_, err := NewClientWithBaseURL(srv.Client(), srv.URL, "").FetchUnread(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", apiErr.StatusCode)
	}
}

func TestMarkRead(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/me/messages/AAMk1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClientWithBaseURL(srv.Client(), srv.URL, "me").MarkRead(context.Background(), "AAMk1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if gotBody != `{"isRead":true}` {
		t.Errorf("unexpected body %q", gotBody)
	}
}

func TestMarkReadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClientWithBaseURL(srv.Client(), srv.URL, "").MarkRead(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 APIError, got %v", err)
	}
}

func TestParseDateTime(t *testing.T) {
	if _, err := ParseDateTime(""); err == nil {
		t.Error("Expected error for empty timestamp")
	}
	got, err := ParseDateTime("2023-09-01T10:00:00+02:00")
	if err != nil {
		t.Fatalf("ParseDateTime failed: %v", err)
	}
	if !got.Equal(time.Date(2023, 9, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected time %v", got)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil, "")
	if c.baseURL != APIRoot {
		t.Errorf("Expected %s, got %s", APIRoot, c.baseURL)
	}
	if c.httpClient == nil || c.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected default HTTP client with timeout, got %+v", c.httpClient)
	}
}
