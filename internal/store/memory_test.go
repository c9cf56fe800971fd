package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newUser(t *testing.T, m *Memory, id string, balance int64) {
	t.Helper()
	err := m.Users(context.Background()).Create(context.Background(), &User{
		ID:       id,
		Username: id,
		Currency: "USD",
		Balance:  decimal.NewFromInt(balance),
		Kind:     UserReal,
		Active:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyTransactionDebitsAndSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 1000)

	tx, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "t1", decimal.NewFromInt(-300), TxBet, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !tx.Balance.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected balance snapshot: %s", tx.Balance)
	}
	u, _ := m.Users(ctx).Find(ctx, "u1")
	if !u.Balance.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected stored balance: %s", u.Balance)
	}
}

func TestApplyTransactionIdempotentReplay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 1000)

	tx1, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "same", decimal.NewFromInt(-100), TxBet, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	// The replayed amount is ignored; the stored result comes back.
	tx2, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "same", decimal.NewFromInt(-999), TxBet, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if !tx1.Balance.Equal(tx2.Balance) || !tx1.Amount.Equal(tx2.Amount) {
		t.Fatalf("replay mismatch: %#v != %#v", tx1, tx2)
	}
	u, _ := m.Users(ctx).Find(ctx, "u1")
	if !u.Balance.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("replay moved the balance: %s", u.Balance)
	}
}

func TestApplyTransactionInsufficientFunds(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 100)

	if _, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "t1", decimal.NewFromInt(-200), TxBet, nil, false); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	u, _ := m.Users(ctx).Find(ctx, "u1")
	if !u.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("failed debit moved the balance: %s", u.Balance)
	}
	// Reversal-style corrections may drive the balance negative.
	tx, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "t2", decimal.NewFromInt(-200), TxReversal, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if !tx.Balance.Equal(decimal.NewFromInt(-100)) {
		t.Fatalf("unexpected balance: %s", tx.Balance)
	}
}

func TestApplyTransactionInactiveUser(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 100)
	u, _ := m.Users(ctx).Find(ctx, "u1")
	u.Active = false
	if err := m.Users(ctx).Update(ctx, u); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "t1", decimal.NewFromInt(10), TxPayoff, nil, true); err != ErrUserInactive {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestApplyTransactionRounding(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 0)

	amt, _ := decimal.NewFromString("10.005")
	tx, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "t1", amt, TxPayoff, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := decimal.NewFromString("10.01")
	if !tx.Amount.Equal(want) || !tx.Balance.Equal(want) {
		t.Fatalf("expected %s, got amount=%s balance=%s", want, tx.Amount, tx.Balance)
	}
}

func TestApplyTransactionConcurrentDebits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 500)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Users(ctx).ApplyTransaction(ctx, "u1", "tx-"+string(rune('a'+i)), decimal.NewFromInt(-100), TxBet, nil, false)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 debits to fit, got %d", succeeded)
	}
	u, _ := m.Users(ctx).Find(ctx, "u1")
	if !u.Balance.Equal(decimal.Zero) {
		t.Fatalf("unexpected final balance: %s", u.Balance)
	}
}

func TestCodeTakeIsSingleUse(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	code := &AuthorizationCode{Code: "c1", ExpiresAt: time.Now().Add(time.Minute), ClientID: "1", UserID: "u1"}
	if err := m.Codes(ctx).Save(ctx, code); err != nil {
		t.Fatal(err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Codes(ctx).Take(ctx, "c1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected one winner, got %d", wins)
	}
}

func TestTakeRefreshConsumesOnlyRefreshHalf(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tok := &Token{SessionID: "s", AccessToken: "a1", RefreshToken: "r1", UserID: "u1",
		AccessExpiresAt: time.Now().Add(time.Hour), RefreshExpiresAt: time.Now().Add(time.Hour)}
	if err := m.Tokens(ctx).Save(ctx, tok); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Tokens(ctx).TakeRefresh(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Tokens(ctx).TakeRefresh(ctx, "r1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
	// The access half remains resolvable until revoked or expired.
	if _, err := m.Tokens(ctx).FindByAccess(ctx, "a1"); err != nil {
		t.Fatalf("access half should survive refresh rotation: %v", err)
	}
}

func TestDeleteByUserDropsAllGrants(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Codes(ctx).Save(ctx, &AuthorizationCode{Code: "c1", UserID: "u1"})
	_ = m.Codes(ctx).Save(ctx, &AuthorizationCode{Code: "c2", UserID: "u2"})
	_ = m.Tokens(ctx).Save(ctx, &Token{AccessToken: "a1", RefreshToken: "r1", UserID: "u1"})

	if err := m.Codes(ctx).DeleteByUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Tokens(ctx).DeleteByUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Codes(ctx).Take(ctx, "c1"); err != ErrNotFound {
		t.Fatalf("expected u1 code gone, got %v", err)
	}
	if _, err := m.Codes(ctx).Take(ctx, "c2"); err != nil {
		t.Fatalf("u2 code should survive: %v", err)
	}
	if _, err := m.Tokens(ctx).FindByAccess(ctx, "a1"); err != ErrNotFound {
		t.Fatalf("expected u1 token gone, got %v", err)
	}
}

func TestUsernameUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	newUser(t, m, "u1", 0)
	err := m.Users(ctx).Create(ctx, &User{ID: "u2", Username: "u1", Currency: "USD", Active: true})
	if err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
