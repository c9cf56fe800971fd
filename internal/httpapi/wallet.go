package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/audit"
	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/obs"
	"vegaslounge.live/internal/store"
	"vegaslounge.live/internal/stream"
	"vegaslounge.live/internal/wallet"
)

type betRequest struct {
	TxID     string          `json:"txId"`
	TableID  string          `json:"tableId"`
	Live     bool            `json:"live"`
	GameType string          `json:"gameType"`
	GameID   string          `json:"gameId"`
	MinBet   decimal.Decimal `json:"minBet"`
	MaxBet   decimal.Decimal `json:"maxBet"`
	Bets     []wallet.Bet    `json:"bets"`
}

type payoffRequest struct {
	TxID     string          `json:"txId"`
	TableID  string          `json:"tableId"`
	Live     bool            `json:"live"`
	GameType string          `json:"gameType"`
	GameID   string          `json:"gameId"`
	Payoffs  []wallet.Payoff `json:"payoffs"`
}

type reverseRequest struct {
	TxID           string          `json:"txId"`
	TableID        string          `json:"tableId"`
	GameType       string          `json:"gameType"`
	GameID         string          `json:"gameId"`
	ReversalAmount decimal.Decimal `json:"reversalAmount"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
	TxID    string          `json:"txId"`
}

func (a *API) handleBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req betRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	meta := gameMeta(req.TableID, req.GameType, req.GameID, req.Live)
	tx, err := a.ledger.PlaceBets(r.Context(), p.User.ID, req.TxID, req.Bets, meta)
	a.respondTransaction(w, r, store.TxBet, tx, err)
}

func (a *API) handlePayoff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req payoffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	meta := gameMeta(req.TableID, req.GameType, req.GameID, req.Live)
	tx, err := a.ledger.PayPayoffs(r.Context(), p.User.ID, req.TxID, req.Payoffs, meta)
	a.respondTransaction(w, r, store.TxPayoff, tx, err)
}

func (a *API) handleReverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req reverseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	meta := gameMeta(req.TableID, req.GameType, req.GameID, false)
	tx, err := a.ledger.ReverseTransaction(r.Context(), p.User.ID, req.TxID, req.ReversalAmount, meta)
	a.respondTransaction(w, r, store.TxReversal, tx, err)
}

func (a *API) respondTransaction(w http.ResponseWriter, r *http.Request, kind store.TransactionKind, tx store.Transaction, err error) {
	if err != nil {
		result := "error"
		if _, tagged := errs.As(err); tagged {
			result = "rejected"
		}
		obs.WalletTransaction(string(kind), result)
		a.writeError(w, r, err)
		return
	}
	obs.WalletTransaction(string(kind), "ok")
	a.events.Publish(stream.FromTransaction(tx))
	_ = audit.LogEvent(r.Context(), "wallet."+string(kind), map[string]any{
		"tx_id":   tx.TxID,
		"amount":  tx.Amount.String(),
		"balance": tx.Balance.String(),
	})
	writeJSON(w, http.StatusOK, balanceResponse{Balance: tx.Balance, TxID: tx.TxID})
}

func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":  p.SessionID,
		"currency":   p.User.Currency,
		"balance":    p.User.Balance,
		"language":   p.User.Language,
		"playerId":   p.User.Username,
		"playerName": p.User.Name,
		"avatarUrl":  p.User.AvatarURL,
	})
}

func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": p.User.Balance})
}

func gameMeta(tableID, gameType, gameID string, live bool) map[string]any {
	meta := map[string]any{"live": live}
	if tableID != "" {
		meta["tableId"] = tableID
	}
	if gameType != "" {
		meta["gameType"] = gameType
	}
	if gameID != "" {
		meta["gameId"] = gameID
	}
	return meta
}
