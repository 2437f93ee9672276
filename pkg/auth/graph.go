package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// GraphScope requests the application permissions granted to the app registration.
	GraphScope = "https://graph.microsoft.com/.default"

	authorityHost = "https://login.microsoftonline.com"
	httpTimeout   = 30 * time.Second
)

// GraphCredentials identify an Azure AD app registration.
type GraphCredentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// TokenURL overrides the tenant token endpoint.
	TokenURL string
}

// TokenEndpoint returns the v2.0 token URL for the tenant.
func (c GraphCredentials) TokenEndpoint() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", authorityHost, url.PathEscape(c.TenantID))
}

// GraphConfig returns the client-credentials configuration for Graph.
func GraphConfig(creds GraphCredentials) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenEndpoint(),
		Scopes:       []string{GraphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// GraphHTTPClient returns an *http.Client that attaches and refreshes a
// client-credentials bearer token on every request.
func GraphHTTPClient(ctx context.Context, creds GraphCredentials) (*http.Client, error) {
	if creds.TenantID == "" && creds.TokenURL == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	base := &http.Client{Timeout: httpTimeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := GraphConfig(creds).Client(ctx)
	client.Timeout = httpTimeout
	return client, nil
}
