// Package wallet applies signed balance deltas to user accounts. Every
// mutation is idempotent per caller-supplied transaction id and atomic per
// user; money is decimal with two places, rounded half-up.
package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/store"
)

// Bet is one leg of a bet request.
type Bet struct {
	BetType   string          `json:"betType"`
	BetAmount decimal.Decimal `json:"betAmount"`
}

// Payoff is one leg of a payoff request.
type Payoff struct {
	BetType      string          `json:"betType"`
	PayoffAmount decimal.Decimal `json:"payoffAmount"`
}

// Ledger mutates balances through the store's atomic primitive.
type Ledger struct {
	store store.Store
}

// NewLedger builds a Ledger over the given store.
func NewLedger(s store.Store) *Ledger {
	return &Ledger{store: s}
}

// ApplyTransaction applies a signed delta for the user. The sign must
// match the kind: bets debit, payoffs credit, reversals carry whatever
// sign the caller declared. Replaying a txID returns the previously
// computed transaction without touching the balance.
func (l *Ledger) ApplyTransaction(ctx context.Context, userID, txID string, amount decimal.Decimal, kind store.TransactionKind, meta map[string]any) (store.Transaction, error) {
	if userID == "" {
		return store.Transaction{}, errs.New(errs.InvalidParameter, "missing user id")
	}
	if txID == "" {
		return store.Transaction{}, errs.New(errs.InvalidParameter, "missing parameter: `txId`")
	}
	switch kind {
	case store.TxBet:
		if amount.IsPositive() {
			return store.Transaction{}, errs.New(errs.InvalidParameter, "bet amount must not be positive")
		}
	case store.TxPayoff:
		if amount.IsNegative() {
			return store.Transaction{}, errs.New(errs.InvalidParameter, "payoff amount must not be negative")
		}
	case store.TxReversal:
		// Caller controls the sign; a reversal may restore funds or
		// correct an over-credit.
	default:
		return store.Transaction{}, errs.Newf(errs.InvalidParameter, "unknown transaction kind %q", kind)
	}

	allowNegative := kind != store.TxBet
	tx, err := l.store.Users(ctx).ApplyTransaction(ctx, userID, txID, amount, kind, meta, allowNegative)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return store.Transaction{}, errs.New(errs.InvalidGrant, "unknown user")
		case errors.Is(err, store.ErrUserInactive):
			return store.Transaction{}, errs.New(errs.InvalidState, "user is not active")
		case errors.Is(err, store.ErrInsufficientFunds):
			return store.Transaction{}, errs.New(errs.InsufficientFunds, "balance is insufficient").With("txId", txID)
		default:
			return store.Transaction{}, err
		}
	}
	return tx, nil
}

// PlaceBets debits the sum of the bet legs.
func (l *Ledger) PlaceBets(ctx context.Context, userID, txID string, bets []Bet, meta map[string]any) (store.Transaction, error) {
	if len(bets) == 0 {
		return store.Transaction{}, errs.New(errs.InvalidParameter, "missing parameter: `bets`")
	}
	total := decimal.Zero
	for _, b := range bets {
		if b.BetAmount.IsNegative() {
			return store.Transaction{}, errs.Newf(errs.InvalidParameter, "negative bet amount for %s", b.BetType)
		}
		total = total.Add(b.BetAmount)
	}
	meta = withLegs(meta, "bets", bets)
	return l.ApplyTransaction(ctx, userID, txID, total.Neg(), store.TxBet, meta)
}

// PayPayoffs credits the sum of the payoff legs.
func (l *Ledger) PayPayoffs(ctx context.Context, userID, txID string, payoffs []Payoff, meta map[string]any) (store.Transaction, error) {
	if len(payoffs) == 0 {
		return store.Transaction{}, errs.New(errs.InvalidParameter, "missing parameter: `payoffs`")
	}
	total := decimal.Zero
	for _, p := range payoffs {
		if p.PayoffAmount.IsNegative() {
			return store.Transaction{}, errs.Newf(errs.InvalidParameter, "negative payoff amount for %s", p.BetType)
		}
		total = total.Add(p.PayoffAmount)
	}
	meta = withLegs(meta, "payoffs", payoffs)
	return l.ApplyTransaction(ctx, userID, txID, total, store.TxPayoff, meta)
}

// ReverseTransaction applies a caller-signed correction.
func (l *Ledger) ReverseTransaction(ctx context.Context, userID, txID string, amount decimal.Decimal, meta map[string]any) (store.Transaction, error) {
	return l.ApplyTransaction(ctx, userID, txID, amount, store.TxReversal, meta)
}

// Transactions returns the user's applied transaction log.
func (l *Ledger) Transactions(ctx context.Context, userID string) ([]store.Transaction, error) {
	txs, err := l.store.Users(ctx).Transactions(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.InvalidGrant, "unknown user")
		}
		return nil, err
	}
	return txs, nil
}

func withLegs(meta map[string]any, key string, legs any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = legs
	return out
}
