package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Memory implements Store with in-process concurrency safety. The global
// lock guards the maps; each user carries its own lock so balance
// mutations serialize per user while distinct users proceed in parallel.
type Memory struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	users     map[string]*userEntry
	usernames map[string]string // username -> user id
	codes     map[string]*AuthorizationCode
	access    map[string]*Token
	refresh   map[string]*Token
}

type userEntry struct {
	mu   sync.Mutex
	user User
	txs  map[string]Transaction
	log  []Transaction
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		clients:   make(map[string]*Client),
		users:     make(map[string]*userEntry),
		usernames: make(map[string]string),
		codes:     make(map[string]*AuthorizationCode),
		access:    make(map[string]*Token),
		refresh:   make(map[string]*Token),
	}
}

func (m *Memory) Clients(ctx context.Context) ClientStore { return memClients{m} }
func (m *Memory) Users(ctx context.Context) UserStore     { return memUsers{m} }
func (m *Memory) Codes(ctx context.Context) CodeStore     { return memCodes{m} }
func (m *Memory) Tokens(ctx context.Context) TokenStore   { return memTokens{m} }

// Clients -----------------------------------------------------------------

type memClients struct{ m *Memory }

func (s memClients) Create(ctx context.Context, c *Client) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.clients[c.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.m.clients[c.ID] = &cp
	return nil
}

func (s memClients) Find(ctx context.Context, id string) (*Client, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	c, ok := s.m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Users -------------------------------------------------------------------

type memUsers struct{ m *Memory }

func (s memUsers) Create(ctx context.Context, u *User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[u.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.m.usernames[u.Username]; ok {
		return ErrAlreadyExists
	}
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.m.users[u.ID] = &userEntry{user: cp, txs: make(map[string]Transaction)}
	s.m.usernames[u.Username] = u.ID
	return nil
}

func (s memUsers) entry(id string) (*userEntry, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	e, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s memUsers) Find(ctx context.Context, id string) (*User, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.user
	return &cp, nil
}

func (s memUsers) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.m.mu.RLock()
	id, ok := s.m.usernames[username]
	s.m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Find(ctx, id)
}

func (s memUsers) Update(ctx context.Context, u *User) error {
	e, err := s.entry(u.ID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.user.Username != u.Username {
		s.m.mu.Lock()
		delete(s.m.usernames, e.user.Username)
		s.m.usernames[u.Username] = u.ID
		s.m.mu.Unlock()
	}
	e.user = *u
	return nil
}

func (s memUsers) ApplyTransaction(ctx context.Context, userID, txID string, amount decimal.Decimal, kind TransactionKind, meta map[string]any, allowNegative bool) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	e, err := s.entry(userID)
	if err != nil {
		return Transaction{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.user.Active {
		return Transaction{}, ErrUserInactive
	}
	if prev, ok := e.txs[txID]; ok {
		return prev, nil
	}

	amount = amount.Round(2)
	next := e.user.Balance.Add(amount).Round(2)
	if !allowNegative && next.IsNegative() {
		return Transaction{}, ErrInsufficientFunds
	}

	tx := Transaction{
		TxID:      txID,
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Balance:   next,
		Metadata:  copyMeta(meta),
		CreatedAt: time.Now().UTC(),
	}
	e.user.Balance = next
	e.txs[txID] = tx
	e.log = append(e.log, tx)
	return tx, nil
}

func (s memUsers) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	e, err := s.entry(userID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Transaction, len(e.log))
	copy(out, e.log)
	return out, nil
}

// Codes -------------------------------------------------------------------

type memCodes struct{ m *Memory }

func (s memCodes) Save(ctx context.Context, c *AuthorizationCode) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *c
	s.m.codes[c.Code] = &cp
	return nil
}

func (s memCodes) Take(ctx context.Context, code string) (*AuthorizationCode, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.m.codes, code)
	cp := *c
	return &cp, nil
}

func (s memCodes) DeleteByUser(ctx context.Context, userID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for code, c := range s.m.codes {
		if c.UserID == userID {
			delete(s.m.codes, code)
		}
	}
	return nil
}

// Tokens ------------------------------------------------------------------

type memTokens struct{ m *Memory }

func (s memTokens) Save(ctx context.Context, t *Token) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *t
	s.m.access[t.AccessToken] = &cp
	s.m.refresh[t.RefreshToken] = &cp
	return nil
}

func (s memTokens) FindByAccess(ctx context.Context, accessToken string) (*Token, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	t, ok := s.m.access[accessToken]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s memTokens) TakeRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	t, ok := s.m.refresh[refreshToken]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.m.refresh, refreshToken)
	cp := *t
	return &cp, nil
}

func (s memTokens) DeleteAccess(ctx context.Context, accessToken string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.access, accessToken)
	return nil
}

func (s memTokens) DeleteRefresh(ctx context.Context, refreshToken string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.refresh, refreshToken)
	return nil
}

func (s memTokens) DeleteByUser(ctx context.Context, userID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for k, t := range s.m.access {
		if t.UserID == userID {
			delete(s.m.access, k)
		}
	}
	for k, t := range s.m.refresh {
		if t.UserID == userID {
			delete(s.m.refresh, k)
		}
	}
	return nil
}

func copyMeta(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
