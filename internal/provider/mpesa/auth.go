// internal/provider/mpesa/auth.go
package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
)

// TokenSource yields a bearer token for one provider call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authenticator exchanges the consumer key and secret for an access token.
// Tokens are not cached; every call performs one request.
type Authenticator struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

func NewAuthenticator(baseURL, consumerKey, consumerSecret string, httpClient *http.Client) *Authenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authenticator{
		baseURL:        strings.TrimRight(baseURL, "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient:     httpClient,
	}
}

func (a *Authenticator) Token(ctx context.Context) (string, error) {
	if a.consumerKey == "" || a.consumerSecret == "" {
		return "", domain.ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTokenRequestFailed, err)
	}
	req.SetBasicAuth(a.consumerKey, a.consumerSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTokenRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return "", &domain.TokenRequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode token response: %w", domain.ErrTokenRequestFailed, err)
	}
	if result.AccessToken == "" {
		return "", &domain.TokenRequestError{StatusCode: resp.StatusCode, Body: "empty access_token"}
	}

	return result.AccessToken, nil
}
