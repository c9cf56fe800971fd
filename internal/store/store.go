// Package store defines the persistence contract shared by the grant
// engine and the wallet ledger, plus the default in-memory implementation.
// The two atomic primitives the rest of the system leans on live here:
// delete-and-return for codes and refresh tokens, and the serialized
// per-user balance mutation.
package store

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store aggregates the persistence operations required by the service.
type Store interface {
	Clients(ctx context.Context) ClientStore
	Users(ctx context.Context) UserStore
	Codes(ctx context.Context) CodeStore
	Tokens(ctx context.Context) TokenStore
}

// ClientStore manages registered OAuth clients.
type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	Find(ctx context.Context, id string) (*Client, error)
}

// UserStore manages users, their balances and transaction logs.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error

	// ApplyTransaction atomically applies a signed delta to the user's
	// balance and appends the transaction record. A txID that was already
	// applied replays the stored result without touching the balance.
	// Unless allowNegative is set, a delta that would drive the balance
	// below zero fails with ErrInsufficientFunds and leaves the balance
	// unchanged. Mutations for the same user are serialized; different
	// users proceed in parallel.
	ApplyTransaction(ctx context.Context, userID, txID string, amount decimal.Decimal, kind TransactionKind, meta map[string]any, allowNegative bool) (Transaction, error)

	// Transactions returns the user's applied transactions in order.
	Transactions(ctx context.Context, userID string) ([]Transaction, error)
}

// CodeStore manages authorization codes.
type CodeStore interface {
	Save(ctx context.Context, c *AuthorizationCode) error

	// Take deletes and returns the code in one step so that concurrent
	// redeemers observe at most one success.
	Take(ctx context.Context, code string) (*AuthorizationCode, error)

	DeleteByUser(ctx context.Context, userID string) error
}

// TokenStore manages access/refresh token pairs.
type TokenStore interface {
	Save(ctx context.Context, t *Token) error
	FindByAccess(ctx context.Context, accessToken string) (*Token, error)

	// TakeRefresh deletes and returns the pair matching the refresh token
	// in one step; the rotation loser observes ErrNotFound.
	TakeRefresh(ctx context.Context, refreshToken string) (*Token, error)

	// DeleteAccess and DeleteRefresh revoke one half of a pair. Both are
	// idempotent.
	DeleteAccess(ctx context.Context, accessToken string) error
	DeleteRefresh(ctx context.Context, refreshToken string) error

	DeleteByUser(ctx context.Context, userID string) error
}
