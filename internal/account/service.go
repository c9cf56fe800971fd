// Package account manages user records: creation (real and guest),
// updates, activation state and credential verification.
package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/ids"
	"vegaslounge.live/internal/store"
)

// GrantRevoker drops a user's outstanding codes and tokens. Wired to the
// grant engine so deactivating a user cuts their live sessions.
type GrantRevoker interface {
	RevokeUserGrants(ctx context.Context, userID string) error
}

// Service provides user lifecycle operations.
type Service struct {
	store        store.Store
	revoker      GrantRevoker
	cost         int
	guestTTL     time.Duration
	guestBalance decimal.Decimal
	now          func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithHashCost sets the bcrypt work factor for password hashing.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost {
			s.cost = cost
		}
	}
}

// WithGuestTTL sets how long guest users live.
func WithGuestTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.guestTTL = ttl
		}
	}
}

// WithGuestBalance sets the starting balance for guest users.
func WithGuestBalance(balance decimal.Decimal) Option {
	return func(s *Service) {
		if !balance.IsNegative() {
			s.guestBalance = balance
		}
	}
}

// WithGrantRevoker wires token revocation into deactivation.
func WithGrantRevoker(r GrantRevoker) Option {
	return func(s *Service) { s.revoker = r }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:        st,
		cost:         bcrypt.DefaultCost,
		guestTTL:     24 * time.Hour,
		guestBalance: decimal.NewFromInt(100000),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewUserInput is the caller-facing shape for user creation.
type NewUserInput struct {
	Username   string
	Password   string
	Name       string
	NamePrefix string
	Currency   string
	Balance    decimal.Decimal
	Language   string
	Kind       store.UserKind
	AvatarURL  string
}

// CreateUser validates the input and persists a new user.
func (s *Service) CreateUser(ctx context.Context, in NewUserInput) (*store.User, error) {
	if in.Balance.IsNegative() {
		return nil, errs.Newf(errs.InvalidParameter, "invalid balance %s", in.Balance)
	}
	if in.Currency == "" {
		return nil, errs.New(errs.InvalidParameter, "missing user.currency")
	}
	if in.Language == "" {
		return nil, errs.New(errs.InvalidParameter, "missing user.language")
	}

	id := ids.New()
	username := in.Username
	if username == "" {
		username = id
	}
	kind := in.Kind
	if kind == "" {
		kind = store.UserReal
	}
	password := in.Password
	if password == "" {
		password = id
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	name := in.Name
	if name == "" {
		name = fmt.Sprintf("%s%d", in.NamePrefix, rand.Intn(500))
	}

	now := s.now().UTC()
	u := &store.User{
		ID:           id,
		Username:     username,
		Name:         capitalize(name),
		PasswordHash: string(hash),
		Currency:     in.Currency,
		Balance:      in.Balance.Round(2),
		Language:     NormalizeLanguage(in.Language),
		Kind:         kind,
		Active:       true,
		AvatarURL:    in.AvatarURL,
		CreatedAt:    now,
	}
	if kind == store.UserGuest {
		u.ExpiresAt = now.Add(s.guestTTL)
	}
	if err := s.store.Users(ctx).Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, errs.Newf(errs.InvalidParameter, "username %s already exists", username)
		}
		return nil, err
	}
	return u, nil
}

// CreateGuestUser creates a short-lived USD guest with a generated name.
func (s *Service) CreateGuestUser(ctx context.Context, language string) (*store.User, error) {
	if language == "" {
		language = DefaultLanguage
	}
	return s.CreateUser(ctx, NewUserInput{
		NamePrefix: guestNames[rand.Intn(len(guestNames))],
		Currency:   CurrencyUSD,
		Balance:    s.guestBalance,
		Language:   language,
		Kind:       store.UserGuest,
	})
}

// UpdateInput patches an existing user located by username. Nil fields are
// left untouched.
type UpdateInput struct {
	Username  string
	Name      *string
	Password  *string
	Balance   *decimal.Decimal
	Language  *string
	AvatarURL *string
}

// UpdateUser applies a patch to the user record.
func (s *Service) UpdateUser(ctx context.Context, in UpdateInput) (*store.User, error) {
	if in.Username == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `username`")
	}
	users := s.store.Users(ctx)
	u, err := users.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.Newf(errs.InvalidParameter, "unknown user %s", in.Username)
		}
		return nil, err
	}
	if in.Name != nil {
		u.Name = capitalize(*in.Name)
	}
	if in.Balance != nil {
		if in.Balance.IsNegative() {
			return nil, errs.Newf(errs.InvalidParameter, "invalid balance %s", in.Balance)
		}
		u.Balance = in.Balance.Round(2)
	}
	if in.Language != nil {
		u.Language = NormalizeLanguage(*in.Language)
	}
	if in.AvatarURL != nil {
		u.AvatarURL = *in.AvatarURL
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if err := users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetUserActive toggles the active flag. Deactivation revokes the user's
// outstanding codes and tokens so live sessions die with the account.
func (s *Service) SetUserActive(ctx context.Context, username string, active bool) (*store.User, error) {
	if username == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `username`")
	}
	users := s.store.Users(ctx)
	u, err := users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.Newf(errs.InvalidParameter, "unknown user %s", username)
		}
		return nil, err
	}
	u.Active = active
	if err := users.Update(ctx, u); err != nil {
		return nil, err
	}
	if !active && s.revoker != nil {
		if err := s.revoker.RevokeUserGrants(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Get returns the user iff they are active and, for guests, not expired.
func (s *Service) Get(ctx context.Context, username string) (*store.User, error) {
	u, err := s.store.Users(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.Newf(errs.InvalidGrant, "user %s is unknown", username)
		}
		return nil, err
	}
	if !u.Active {
		return nil, errs.Newf(errs.InvalidState, "user %s is not active", username)
	}
	if u.Expired(s.now()) {
		return nil, errs.Newf(errs.InvalidState, "guest user %s has expired", username)
	}
	return u, nil
}

// GetByID is Get keyed by user id.
func (s *Service) GetByID(ctx context.Context, id string) (*store.User, error) {
	u, err := s.store.Users(ctx).Find(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.InvalidGrant, "user is unknown")
		}
		return nil, err
	}
	if !u.Active {
		return nil, errs.Newf(errs.InvalidState, "user %s is not active", u.Username)
	}
	if u.Expired(s.now()) {
		return nil, errs.Newf(errs.InvalidState, "guest user %s has expired", u.Username)
	}
	return u, nil
}

// Login verifies the password against the stored hash.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, error) {
	if username == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `username`")
	}
	if password == "" {
		return nil, errs.New(errs.InvalidParameter, "missing parameter: `password`")
	}
	u, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errs.New(errs.InvalidGrant, "user credentials are invalid")
	}
	return u, nil
}

// NormalizeLanguage folds BCP-47 style tags into the supported set,
// defaulting to en_US.
func NormalizeLanguage(lang string) string {
	key := strings.ReplaceAll(lang, "-", "_")
	if v, ok := Languages[key]; ok {
		return v
	}
	return Languages[DefaultLanguage]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
