// Package pg implements the store contract on PostgreSQL. The two atomic
// primitives map onto SQL directly: DELETE ... RETURNING consumes codes
// in one statement, and SELECT ... FOR UPDATE inside a transaction
// serializes balance mutation per user row.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/store"
)

// Store implements store.Store over database/sql.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to the DSN with pooled defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

const schema = `
create table if not exists clients (
	id text primary key,
	secret_hash text not null,
	grant_kinds jsonb not null default '[]',
	redirect_uris jsonb not null default '[]',
	access_ttl_seconds bigint not null default 0,
	refresh_ttl_seconds bigint not null default 0,
	created_at timestamptz not null default now()
);
create table if not exists users (
	id text primary key,
	username text not null unique,
	name text not null default '',
	password_hash text not null,
	currency text not null,
	balance numeric(20,2) not null default 0,
	language text not null default 'en_US',
	kind text not null default 'real',
	active boolean not null default true,
	expires_at timestamptz,
	avatar_url text not null default '',
	created_at timestamptz not null default now()
);
create table if not exists auth_codes (
	code text primary key,
	expires_at timestamptz not null,
	redirect_uri text not null,
	client_id text not null,
	user_id text not null,
	created_at timestamptz not null default now()
);
create table if not exists tokens (
	access_token text primary key,
	refresh_token text not null,
	session_id text not null,
	access_expires_at timestamptz not null,
	refresh_expires_at timestamptz not null,
	refresh_revoked boolean not null default false,
	client_id text not null,
	user_id text not null,
	created_at timestamptz not null default now()
);
create index if not exists tokens_refresh_idx on tokens (refresh_token);
create table if not exists transactions (
	user_id text not null,
	tx_id text not null,
	kind text not null,
	amount numeric(20,2) not null,
	balance numeric(20,2) not null,
	metadata jsonb,
	created_at timestamptz not null default now(),
	primary key (user_id, tx_id)
);
`

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Clients(ctx context.Context) store.ClientStore { return clientStore{s.db} }
func (s *Store) Users(ctx context.Context) store.UserStore     { return userStore{s.db} }
func (s *Store) Codes(ctx context.Context) store.CodeStore     { return codeStore{s.db} }
func (s *Store) Tokens(ctx context.Context) store.TokenStore   { return tokenStore{s.db} }

// Clients -----------------------------------------------------------------

type clientStore struct{ db *sql.DB }

func (s clientStore) Create(ctx context.Context, c *store.Client) error {
	grants, _ := json.Marshal(c.GrantKinds)
	uris, _ := json.Marshal(c.RedirectURIs)
	_, err := s.db.ExecContext(ctx, `
		insert into clients (id, secret_hash, grant_kinds, redirect_uris, access_ttl_seconds, refresh_ttl_seconds)
		values ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.SecretHash, grants, uris,
		int64(c.AccessTokenTTL.Seconds()), int64(c.RefreshTokenTTL.Seconds()),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (s clientStore) Find(ctx context.Context, id string) (*store.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, secret_hash, grant_kinds, redirect_uris, access_ttl_seconds, refresh_ttl_seconds, created_at
		from clients where id=$1`, id)
	var (
		c            store.Client
		grants, uris []byte
		at, rt       int64
	)
	if err := row.Scan(&c.ID, &c.SecretHash, &grants, &uris, &at, &rt, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(grants, &c.GrantKinds)
	_ = json.Unmarshal(uris, &c.RedirectURIs)
	c.AccessTokenTTL = time.Duration(at) * time.Second
	c.RefreshTokenTTL = time.Duration(rt) * time.Second
	return &c, nil
}

// Users -------------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, username, name, password_hash, currency, balance, language, kind, active, expires_at, avatar_url, created_at`

func scanUser(row *sql.Row) (*store.User, error) {
	var (
		u       store.User
		expires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &u.Currency,
		&u.Balance, &u.Language, &u.Kind, &u.Active, &expires, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		u.ExpiresAt = expires.Time
	}
	return &u, nil
}

func (s userStore) Create(ctx context.Context, u *store.User) error {
	var expires any
	if !u.ExpiresAt.IsZero() {
		expires = u.ExpiresAt
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, username, name, password_hash, currency, balance, language, kind, active, expires_at, avatar_url)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.Username, u.Name, u.PasswordHash, u.Currency,
		u.Balance, u.Language, u.Kind, u.Active, expires, u.AvatarURL,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (s userStore) Find(ctx context.Context, id string) (*store.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id))
}

func (s userStore) FindByUsername(ctx context.Context, username string) (*store.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where username=$1`, username))
}

func (s userStore) Update(ctx context.Context, u *store.User) error {
	var expires any
	if !u.ExpiresAt.IsZero() {
		expires = u.ExpiresAt
	}
	res, err := s.db.ExecContext(ctx, `
		update users set username=$2, name=$3, password_hash=$4, currency=$5,
			balance=$6, language=$7, kind=$8, active=$9, expires_at=$10, avatar_url=$11
		where id=$1`,
		u.ID, u.Username, u.Name, u.PasswordHash, u.Currency,
		u.Balance, u.Language, u.Kind, u.Active, expires, u.AvatarURL,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s userStore) ApplyTransaction(ctx context.Context, userID, txID string, amount decimal.Decimal, kind store.TransactionKind, meta map[string]any, allowNegative bool) (store.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Transaction{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		balance decimal.Decimal
		active  bool
	)
	err = tx.QueryRowContext(ctx, `select balance, active from users where id=$1 for update`, userID).
		Scan(&balance, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Transaction{}, store.ErrNotFound
	}
	if err != nil {
		return store.Transaction{}, err
	}
	if !active {
		return store.Transaction{}, store.ErrUserInactive
	}

	// An already-applied txID replays the stored result unchanged.
	var prev store.Transaction
	var prevMeta []byte
	err = tx.QueryRowContext(ctx, `
		select kind, amount, balance, metadata, created_at
		from transactions where user_id=$1 and tx_id=$2`, userID, txID).
		Scan(&prev.Kind, &prev.Amount, &prev.Balance, &prevMeta, &prev.CreatedAt)
	if err == nil {
		prev.UserID = userID
		prev.TxID = txID
		_ = json.Unmarshal(prevMeta, &prev.Metadata)
		return prev, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Transaction{}, err
	}

	amount = amount.Round(2)
	next := balance.Add(amount).Round(2)
	if !allowNegative && next.IsNegative() {
		return store.Transaction{}, store.ErrInsufficientFunds
	}

	metaJSON, _ := json.Marshal(meta)
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `update users set balance=$2 where id=$1`, userID, next); err != nil {
		return store.Transaction{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into transactions (user_id, tx_id, kind, amount, balance, metadata, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)`,
		userID, txID, kind, amount, next, metaJSON, now,
	); err != nil {
		return store.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Transaction{}, err
	}
	return store.Transaction{
		TxID:      txID,
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Balance:   next,
		Metadata:  meta,
		CreatedAt: now,
	}, nil
}

func (s userStore) Transactions(ctx context.Context, userID string) ([]store.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		select tx_id, kind, amount, balance, metadata, created_at
		from transactions where user_id=$1 order by created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Transaction
	for rows.Next() {
		var (
			t    store.Transaction
			meta []byte
		)
		if err := rows.Scan(&t.TxID, &t.Kind, &t.Amount, &t.Balance, &meta, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.UserID = userID
		_ = json.Unmarshal(meta, &t.Metadata)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Codes -------------------------------------------------------------------

type codeStore struct{ db *sql.DB }

func (s codeStore) Save(ctx context.Context, c *store.AuthorizationCode) error {
	_, err := s.db.ExecContext(ctx, `
		insert into auth_codes (code, expires_at, redirect_uri, client_id, user_id, created_at)
		values ($1,$2,$3,$4,$5,$6)`,
		c.Code, c.ExpiresAt, c.RedirectURI, c.ClientID, c.UserID, c.CreatedAt,
	)
	return err
}

func (s codeStore) Take(ctx context.Context, code string) (*store.AuthorizationCode, error) {
	row := s.db.QueryRowContext(ctx, `
		delete from auth_codes where code=$1
		returning code, expires_at, redirect_uri, client_id, user_id, created_at`, code)
	var c store.AuthorizationCode
	if err := row.Scan(&c.Code, &c.ExpiresAt, &c.RedirectURI, &c.ClientID, &c.UserID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s codeStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from auth_codes where user_id=$1`, userID)
	return err
}

// Tokens ------------------------------------------------------------------

type tokenStore struct{ db *sql.DB }

const tokenColumns = `access_token, refresh_token, session_id, access_expires_at, refresh_expires_at, client_id, user_id, created_at`

func scanToken(row *sql.Row) (*store.Token, error) {
	var t store.Token
	err := row.Scan(&t.AccessToken, &t.RefreshToken, &t.SessionID,
		&t.AccessExpiresAt, &t.RefreshExpiresAt, &t.ClientID, &t.UserID, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s tokenStore) Save(ctx context.Context, t *store.Token) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tokens (`+tokenColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.AccessToken, t.RefreshToken, t.SessionID,
		t.AccessExpiresAt, t.RefreshExpiresAt, t.ClientID, t.UserID, t.CreatedAt,
	)
	return err
}

func (s tokenStore) FindByAccess(ctx context.Context, accessToken string) (*store.Token, error) {
	return scanToken(s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from tokens where access_token=$1`, accessToken))
}

func (s tokenStore) TakeRefresh(ctx context.Context, refreshToken string) (*store.Token, error) {
	// The refresh half dies here; the access half lives on until expiry
	// or an explicit revoke, so the row stays with refresh_revoked set.
	return scanToken(s.db.QueryRowContext(ctx, `
		update tokens set refresh_revoked=true
		where refresh_token=$1 and not refresh_revoked
		returning `+tokenColumns, refreshToken))
}

func (s tokenStore) DeleteAccess(ctx context.Context, accessToken string) error {
	_, err := s.db.ExecContext(ctx, `delete from tokens where access_token=$1`, accessToken)
	return err
}

func (s tokenStore) DeleteRefresh(ctx context.Context, refreshToken string) error {
	_, err := s.db.ExecContext(ctx, `
		update tokens set refresh_revoked=true where refresh_token=$1`, refreshToken)
	return err
}

func (s tokenStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from tokens where user_id=$1`, userID)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// pgx surfaces SQLSTATE in the error text; 23505 is unique_violation.
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}
