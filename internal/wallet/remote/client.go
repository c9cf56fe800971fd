// Package remote is an HTTP client for the wallet API, used by game
// provider integrations and the smoke tool. It drives the full
// authorization-code flow and the wallet endpoints with one client.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/wallet"
)

// APIError is the service error shape.
type APIError struct {
	Code int    `json:"errorCode"`
	Name string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wallet api: %s (%d)", e.Name, e.Code)
}

// Client talks to one wallet service on behalf of one player session.
type Client struct {
	base         *url.URL
	httpClient   *http.Client
	clientID     string
	clientSecret string

	accessToken  string
	refreshToken string
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a client for the service at baseURL.
func New(baseURL, clientID, clientSecret string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		base:         base,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessToken returns the current access token, empty before login.
func (c *Client) AccessToken() string { return c.accessToken }

// Login authenticates with player credentials, captures the issued
// authorization code from the redirect and exchanges it for tokens.
func (c *Client) Login(ctx context.Context, username, password, redirectURI string) error {
	form := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirectURI},
		"username":      {username},
		"password":      {password},
	}
	return c.authorize(ctx, form, redirectURI)
}

// GuestLogin provisions a throwaway guest account and logs it in.
func (c *Client) GuestLogin(ctx context.Context, redirectURI string) error {
	form := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirectURI},
		"guest":         {"true"},
	}
	return c.authorize(ctx, form, redirectURI)
}

func (c *Client) authorize(ctx context.Context, form url.Values, redirectURI string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/oauth2.0/authorize"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// The code arrives on the redirect Location, so redirects must not
	// be followed here.
	noFollow := *c.httpClient
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noFollow.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return decodeError(resp)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		return fmt.Errorf("parse redirect: %w", err)
	}
	code := loc.Query().Get("code")
	if code == "" {
		return fmt.Errorf("redirect carries no code: %s", loc)
	}
	return c.exchange(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	})
}

// Refresh rotates the token pair using the stored refresh token.
func (c *Client) Refresh(ctx context.Context) error {
	return c.exchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
	})
}

func (c *Client) exchange(ctx context.Context, form url.Values) error {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint("/oauth2.0/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	c.accessToken = out.AccessToken
	c.refreshToken = out.RefreshToken
	return nil
}

// TransactionResult is the wallet response to a bet, payoff or reversal.
type TransactionResult struct {
	Balance decimal.Decimal `json:"balance"`
	TxID    string          `json:"txId"`
}

// Bet places the given bet legs under txID.
func (c *Client) Bet(ctx context.Context, txID string, bets []wallet.Bet) (TransactionResult, error) {
	var out TransactionResult
	err := c.postJSON(ctx, "/bet", map[string]any{"txId": txID, "bets": bets}, &out)
	return out, err
}

// Payoff credits the given payoff legs under txID.
func (c *Client) Payoff(ctx context.Context, txID string, payoffs []wallet.Payoff) (TransactionResult, error) {
	var out TransactionResult
	err := c.postJSON(ctx, "/payoff", map[string]any{"txId": txID, "payoffs": payoffs}, &out)
	return out, err
}

// Reverse applies a signed correction under txID.
func (c *Client) Reverse(ctx context.Context, txID string, amount decimal.Decimal) (TransactionResult, error) {
	var out TransactionResult
	err := c.postJSON(ctx, "/reverse", map[string]any{"txId": txID, "reversalAmount": amount}, &out)
	return out, err
}

// Balance fetches the current balance.
func (c *Client) Balance(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal `json:"balance"`
	}
	err := c.getJSON(ctx, "/balance", &out)
	return out.Balance, err
}

// AccountInfo is the player profile exposed to integrations.
type AccountInfo struct {
	SessionID  string          `json:"sessionId"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	Language   string          `json:"language"`
	PlayerID   string          `json:"playerId"`
	PlayerName string          `json:"playerName"`
	AvatarURL  string          `json:"avatarUrl"`
}

// Account fetches the player profile.
func (c *Client) Account(ctx context.Context) (AccountInfo, error) {
	var out AccountInfo
	err := c.getJSON(ctx, "/account", &out)
	return out, err
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String()
}

func decodeError(resp *http.Response) error {
	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Name == "" {
		return fmt.Errorf("wallet api: unexpected status %d", resp.StatusCode)
	}
	return &apiErr
}
