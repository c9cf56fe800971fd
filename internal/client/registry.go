// Package client resolves OAuth client identity and policy: secret
// verification, redirect-URI prefixes and permitted grant kinds.
package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/store"
)

// Grant kinds clients may be allowed to use.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// View is a client stripped of its secret hash, safe to hand to callers.
type View struct {
	ID              string
	GrantKinds      []string
	RedirectURIs    []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Registry validates and resolves clients against the store.
type Registry struct {
	store store.Store
	cost  int
}

// NewRegistry builds a Registry. cost is the bcrypt work factor used when
// hashing client secrets; values below bcrypt.MinCost fall back to the
// bcrypt default.
func NewRegistry(s store.Store, cost int) *Registry {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Registry{store: s, cost: cost}
}

// Register stores a client with its secret bcrypt-hashed. Registering an
// id twice fails.
func (r *Registry) Register(ctx context.Context, id, secret string, grantKinds, redirectURIs []string, accessTTL, refreshTTL time.Duration) (View, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return View{}, errs.New(errs.InvalidParameter, "missing parameter: `client_id`")
	}
	if secret == "" {
		return View{}, errs.New(errs.InvalidParameter, "missing parameter: `client_secret`")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.cost)
	if err != nil {
		return View{}, err
	}
	c := &store.Client{
		ID:              id,
		SecretHash:      string(hash),
		GrantKinds:      grantKinds,
		RedirectURIs:    redirectURIs,
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}
	if err := r.store.Clients(ctx).Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return View{}, errs.Newf(errs.InvalidParameter, "client %s already registered", id)
		}
		return View{}, err
	}
	return view(c), nil
}

// ResolveByID returns the client view without verifying the secret.
func (r *Registry) ResolveByID(ctx context.Context, id string) (View, error) {
	if id == "" {
		return View{}, errs.New(errs.InvalidParameter, "missing parameter: `client_id`")
	}
	c, err := r.store.Clients(ctx).Find(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, errs.Newf(errs.InvalidClient, "unknown client %s", id)
		}
		return View{}, err
	}
	return view(c), nil
}

// ResolveBySecret verifies the secret against the stored hash. bcrypt's
// comparison is constant-time with respect to the secret.
func (r *Registry) ResolveBySecret(ctx context.Context, id, secret string) (View, error) {
	if id == "" {
		return View{}, errs.New(errs.InvalidParameter, "missing parameter: `client_id`")
	}
	if secret == "" {
		return View{}, errs.New(errs.InvalidParameter, "missing parameter: `client_secret`")
	}
	c, err := r.store.Clients(ctx).Find(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, errs.Newf(errs.InvalidClient, "unknown client %s", id)
		}
		return View{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) != nil {
		return View{}, errs.New(errs.InvalidClient, "client secret mismatch")
	}
	return view(c), nil
}

// ValidateRedirectURI reports whether candidate starts with one of the
// client's registered prefixes. Prefix matching is the documented policy:
// it deliberately admits path suffixes under a registered base.
func ValidateRedirectURI(c View, candidate string) bool {
	if candidate == "" {
		return false
	}
	for _, prefix := range c.RedirectURIs {
		if prefix != "" && strings.HasPrefix(candidate, prefix) {
			return true
		}
	}
	return false
}

// ValidateGrantKind reports whether the client may use the grant kind.
func ValidateGrantKind(c View, kind string) bool {
	for _, g := range c.GrantKinds {
		if g == kind {
			return true
		}
	}
	return false
}

func view(c *store.Client) View {
	return View{
		ID:              c.ID,
		GrantKinds:      append([]string(nil), c.GrantKinds...),
		RedirectURIs:    append([]string(nil), c.RedirectURIs...),
		AccessTokenTTL:  c.AccessTokenTTL,
		RefreshTokenTTL: c.RefreshTokenTTL,
	}
}
