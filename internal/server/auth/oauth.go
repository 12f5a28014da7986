package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/sethvargo/go-retry"
)

const (
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// ProviderIdentity is the verified identity returned by the OAuth provider.
type ProviderIdentity struct {
	ProviderUserID string
	Email          string
}

// GoogleClient exchanges an authorization code for a verified Google
// identity. Transient transport failures are retried with exponential
// backoff before surfacing as common.ErrProviderUnreachable.
type GoogleClient struct {
	clientID     string
	clientSecret string
	redirectURL  string
	tokenURL     string
	userinfoURL  string
	httpClient   *http.Client
}

// NewGoogleClient builds a client for the configured Google OAuth app.
func NewGoogleClient(clientID, clientSecret, redirectURL string) *GoogleClient {
	return &GoogleClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		tokenURL:     googleTokenURL,
		userinfoURL:  googleUserinfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL returns the provider consent-page URL for the given CSRF state.
func (c *GoogleClient) AuthCodeURL(state string) string {
	q := url.Values{
		"client_id":     {c.clientID},
		"redirect_uri":  {c.redirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?" + q.Encode()
}

type googleTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int32  `json:"expires_in"`
}

type googleUserinfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ExchangeCode redeems an authorization code and fetches the userinfo
// document. A rejected code yields common.ErrInvalidProvider; an account
// without a usable email yields common.ErrIdentityNotLinked.
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*ProviderIdentity, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"redirect_uri":  {c.redirectURL},
	}

	var tokenResp googleTokenResponse
	err := c.withBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return c.doJSON(req, &tokenResp)
	})
	if err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access_token in response", common.ErrInvalidProvider)
	}

	var info googleUserinfo
	err = c.withBackoff(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
		return c.doJSON(req, &info)
	})
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, common.ErrIdentityNotLinked
	}

	return &ProviderIdentity{ProviderUserID: info.ID, Email: info.Email}, nil
}

// withBackoff retries fn on transport errors and provider 5xx responses.
func (c *GoogleClient) withBackoff(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, b, fn)
}

// doJSON executes the request and decodes a JSON body. Network failures and
// 5xx responses are marked retryable; 4xx responses mean the provider
// rejected the request and are permanent.
func (c *GoogleClient) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("%w: %v", common.ErrProviderUnreachable, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("%w: reading response: %v", common.ErrProviderUnreachable, err))
	}

	if resp.StatusCode >= 500 {
		return retry.RetryableError(fmt.Errorf("%w: provider returned %d", common.ErrProviderUnreachable, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", common.ErrInvalidProvider, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", common.ErrInvalidProvider, err)
	}
	return nil
}
