// Package grant implements the authorization-code and token lifecycles:
// issuance, single-use redemption, refresh rotation and revocation.
package grant

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/store"
)

const (
	defaultCodeTTL    = 60 * time.Second
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 24 * time.Hour
)

// Engine owns the code/token lifecycle. It references users and clients by
// id only; user and client records belong to their own services.
type Engine struct {
	store      store.Store
	now        func() time.Time
	codeTTL    time.Duration
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Option configures Engine behavior.
type Option func(*Engine)

// WithCodeTTL configures authorization-code lifetime.
func WithCodeTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.codeTTL = ttl
		}
	}
}

// WithAccessTTL configures the default access-token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the default refresh-token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine constructs an Engine with optional configuration.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		now:        time.Now,
		codeTTL:    defaultCodeTTL,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IssueAuthorizationCode validates the redirect URI against the client
// policy, persists a fresh single-use code and returns it for the caller
// to build the redirect response.
func (e *Engine) IssueAuthorizationCode(ctx context.Context, c client.View, userID, redirectURI string) (*store.AuthorizationCode, error) {
	if redirectURI == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `redirect_uri`")
	}
	if !client.ValidateRedirectURI(c, redirectURI) {
		return nil, errs.Newf(errs.InvalidParameter, "`redirect_uri` does not match client value: %s", redirectURI)
	}
	codeValue, err := randomToken()
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	code := &store.AuthorizationCode{
		Code:        codeValue,
		ExpiresAt:   now.Add(e.codeTTL),
		RedirectURI: redirectURI,
		ClientID:    c.ID,
		UserID:      userID,
		CreatedAt:   now,
	}
	if err := e.store.Codes(ctx).Save(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// RedeemAuthorizationCode consumes a code. Deletion happens as part of the
// lookup so a second concurrent redemption of the same code loses the race
// and observes invalid_grant.
func (e *Engine) RedeemAuthorizationCode(ctx context.Context, codeValue string) (*store.AuthorizationCode, error) {
	if codeValue == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `code`")
	}
	code, err := e.store.Codes(ctx).Take(ctx, codeValue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.InvalidGrant, "authorization code is invalid")
		}
		return nil, err
	}
	if e.now().After(code.ExpiresAt) {
		return nil, errs.New(errs.InvalidGrant, "authorization code has expired")
	}
	return code, nil
}

// IssueTokenPair mints an access/refresh pair sharing a fresh session id.
// Client TTL overrides take precedence over the engine defaults.
func (e *Engine) IssueTokenPair(ctx context.Context, c client.View, userID string) (*store.Token, error) {
	accessToken, err := randomToken()
	if err != nil {
		return nil, err
	}
	refreshToken, err := randomToken()
	if err != nil {
		return nil, err
	}
	accessTTL := e.accessTTL
	if c.AccessTokenTTL > 0 {
		accessTTL = c.AccessTokenTTL
	}
	refreshTTL := e.refreshTTL
	if c.RefreshTokenTTL > 0 {
		refreshTTL = c.RefreshTokenTTL
	}
	now := e.now().UTC()
	token := &store.Token{
		SessionID:        uuid.NewString(),
		AccessToken:      accessToken,
		AccessExpiresAt:  now.Add(accessTTL),
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(refreshTTL),
		ClientID:         c.ID,
		UserID:           userID,
		CreatedAt:        now,
	}
	if err := e.store.Tokens(ctx).Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// RedeemRefreshToken rotates a refresh token: the old token is consumed as
// part of the lookup, then a fresh pair is issued for the same client and
// user. A stolen refresh token therefore stops working after the first
// legitimate refresh.
func (e *Engine) RedeemRefreshToken(ctx context.Context, refreshToken string) (*store.Token, error) {
	if refreshToken == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `refresh_token`")
	}
	old, err := e.store.Tokens(ctx).TakeRefresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.InvalidGrant, "refresh token is invalid")
		}
		return nil, err
	}
	if e.now().After(old.RefreshExpiresAt) {
		return nil, errs.New(errs.InvalidGrant, "refresh token has expired")
	}

	c := client.View{ID: old.ClientID}
	if rec, err := e.store.Clients(ctx).Find(ctx, old.ClientID); err == nil {
		c.AccessTokenTTL = rec.AccessTokenTTL
		c.RefreshTokenTTL = rec.RefreshTokenTTL
	}
	return e.IssueTokenPair(ctx, c, old.UserID)
}

// ResolveAccessToken maps a bearer credential to its session, user and
// client ids. Expired tokens are treated as absent.
func (e *Engine) ResolveAccessToken(ctx context.Context, accessToken string) (*store.Token, error) {
	if accessToken == "" {
		return nil, errs.New(errs.InvalidGrant, "access token is missing")
	}
	token, err := e.store.Tokens(ctx).FindByAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.InvalidGrant, "access token is invalid")
		}
		return nil, err
	}
	if e.now().After(token.AccessExpiresAt) {
		return nil, errs.New(errs.InvalidGrant, "access token has expired")
	}
	return token, nil
}

// RevokeAccessToken deletes the access half of a pair. Idempotent.
func (e *Engine) RevokeAccessToken(ctx context.Context, accessToken string) error {
	return e.store.Tokens(ctx).DeleteAccess(ctx, accessToken)
}

// RevokeRefreshToken deletes the refresh half of a pair. Idempotent.
func (e *Engine) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return e.store.Tokens(ctx).DeleteRefresh(ctx, refreshToken)
}

// RevokeUserGrants drops every outstanding code and token for a user; used
// when the user is deactivated.
func (e *Engine) RevokeUserGrants(ctx context.Context, userID string) error {
	if err := e.store.Codes(ctx).DeleteByUser(ctx, userID); err != nil {
		return err
	}
	return e.store.Tokens(ctx).DeleteByUser(ctx, userID)
}

// randomToken returns a 256-bit random value, hex encoded. Enough entropy
// that brute-forcing a live code or token is infeasible.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
