package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/wallet"
)

// stubWallet fakes the service endpoints the client drives.
func stubWallet(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth2.0/authorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("authorize method = %s", r.Method)
		}
		if r.PostFormValue("response_type") != "code" {
			t.Errorf("response_type = %q", r.PostFormValue("response_type"))
		}
		if r.PostFormValue("username") == "locked" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errorCode": 400,
				"error":     "invalid_grant",
			})
			return
		}
		http.Redirect(w, r, r.PostFormValue("redirect_uri")+"?code=code-1", http.StatusFound)
	})

	mux.HandleFunc("/oauth2.0/token", func(w http.ResponseWriter, r *http.Request) {
		if r.PostFormValue("client_id") != "lobby" || r.PostFormValue("client_secret") != "s3cret" {
			t.Errorf("client credentials missing from exchange")
		}
		switch r.PostFormValue("grant_type") {
		case "authorization_code":
			if r.PostFormValue("code") != "code-1" {
				t.Errorf("code = %q", r.PostFormValue("code"))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "at-1",
				"refresh_token": "rt-1",
				"expires_in":    3600,
			})
		case "refresh_token":
			if r.PostFormValue("refresh_token") != "rt-1" {
				t.Errorf("refresh_token = %q", r.PostFormValue("refresh_token"))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "at-2",
				"refresh_token": "rt-2",
				"expires_in":    3600,
			})
		default:
			t.Errorf("grant_type = %q", r.PostFormValue("grant_type"))
		}
	})

	requireBearer := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") == "Bearer at-1" || r.Header.Get("Authorization") == "Bearer at-2" {
			return true
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"errorCode": 400, "error": "invalid_grant"})
		return false
	}

	mux.HandleFunc("/bet", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		var req struct {
			TxID string       `json:"txId"`
			Bets []wallet.Bet `json:"bets"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bet body: %v", err)
		}
		total := decimal.Zero
		for _, b := range req.Bets {
			total = total.Add(b.BetAmount)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"balance": decimal.NewFromInt(10000).Sub(total),
			"txId":    req.TxID,
		})
	})

	mux.HandleFunc("/balance", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": 9700})
	})

	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sessionId":  "sess-1",
			"currency":   "USD",
			"balance":    9700,
			"playerId":   "alice",
			"playerName": "Alice",
		})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestLoginAndBet(t *testing.T) {
	ts := stubWallet(t)
	c, err := New(ts.URL, "lobby", "s3cret", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "secret", "http://localhost/lobby"); err != nil {
		t.Fatal(err)
	}
	if c.AccessToken() != "at-1" {
		t.Fatalf("access token = %q", c.AccessToken())
	}

	res, err := c.Bet(ctx, "tx-1", []wallet.Bet{{BetType: "player", BetAmount: decimal.NewFromInt(300)}})
	if err != nil {
		t.Fatal(err)
	}
	if res.TxID != "tx-1" || !res.Balance.Equal(decimal.NewFromInt(9700)) {
		t.Fatalf("bet result = %+v", res)
	}

	bal, err := c.Balance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Equal(decimal.NewFromInt(9700)) {
		t.Fatalf("balance = %s", bal)
	}

	acct, err := c.Account(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if acct.PlayerID != "alice" || acct.SessionID != "sess-1" {
		t.Fatalf("account = %+v", acct)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	ts := stubWallet(t)
	c, err := New(ts.URL, "lobby", "s3cret", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := c.Login(ctx, "alice", "secret", "http://localhost/lobby"); err != nil {
		t.Fatal(err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if c.AccessToken() != "at-2" {
		t.Fatalf("access token after refresh = %q", c.AccessToken())
	}
}

func TestLoginErrorSurfacesAPIError(t *testing.T) {
	ts := stubWallet(t)
	c, err := New(ts.URL, "lobby", "s3cret", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatal(err)
	}
	err = c.Login(context.Background(), "locked", "secret", "http://localhost/lobby")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Name != "invalid_grant" || apiErr.Code != 400 {
		t.Fatalf("api error = %+v", apiErr)
	}
}

func TestRequestsWithoutLoginAreRejected(t *testing.T) {
	ts := stubWallet(t)
	c, err := New(ts.URL, "lobby", "s3cret", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Balance(context.Background()); err == nil {
		t.Fatal("expected error without login")
	}
}
