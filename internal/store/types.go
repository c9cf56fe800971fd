package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a registered OAuth client. The secret is only ever held as a
// bcrypt hash.
type Client struct {
	ID              string
	SecretHash      string
	GrantKinds      []string
	RedirectURIs    []string
	AccessTokenTTL  time.Duration // 0 means server default
	RefreshTokenTTL time.Duration // 0 means server default
	CreatedAt       time.Time
}

// UserKind distinguishes seeded real players from self-expiring guests.
type UserKind string

const (
	UserReal  UserKind = "real"
	UserGuest UserKind = "guest"
)

// User owns its balance and transaction log.
type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	Currency     string
	Balance      decimal.Decimal
	Language     string
	Kind         UserKind
	Active       bool
	ExpiresAt    time.Time // zero for real users
	AvatarURL    string
	CreatedAt    time.Time
}

// Expired reports whether a guest user has outlived its TTL at the given
// instant. Real users never expire.
func (u *User) Expired(now time.Time) bool {
	return u.Kind == UserGuest && !u.ExpiresAt.IsZero() && now.After(u.ExpiresAt)
}

// AuthorizationCode is a single-use grant credential.
type AuthorizationCode struct {
	Code        string
	ExpiresAt   time.Time
	RedirectURI string
	ClientID    string
	UserID      string
	CreatedAt   time.Time
}

// Token is an access/refresh pair persisted together under one session.
// Each half is independently revocable.
type Token struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	ClientID         string
	UserID           string
	CreatedAt        time.Time
}

// TransactionKind tags a ledger mutation.
type TransactionKind string

const (
	TxBet      TransactionKind = "bet"
	TxPayoff   TransactionKind = "payoff"
	TxReversal TransactionKind = "reversal"
)

// Transaction is one applied balance delta plus the balance it produced.
type Transaction struct {
	TxID      string
	UserID    string
	Kind      TransactionKind
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	Metadata  map[string]any
	CreatedAt time.Time
}

var (
	ErrNotFound          = errors.New("store: not found")
	ErrAlreadyExists     = errors.New("store: already exists")
	ErrUserInactive      = errors.New("store: user inactive")
	ErrInsufficientFunds = errors.New("store: insufficient funds")
)
