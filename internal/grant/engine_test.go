package grant

import (
	"context"
	"sync"
	"testing"
	"time"

	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/store"
)

var testClient = client.View{
	ID:           "1",
	GrantKinds:   []string{client.GrantAuthorizationCode, client.GrantRefreshToken},
	RedirectURIs: []string{"http://localhost"},
}

func TestIssueAndRedeemAuthorizationCode(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())

	code, err := e.IssueAuthorizationCode(ctx, testClient, "u1", "http://localhost/cb")
	if err != nil {
		t.Fatal(err)
	}
	if code.Code == "" || code.UserID != "u1" || code.ClientID != "1" {
		t.Fatalf("unexpected code: %#v", code)
	}

	redeemed, err := e.RedeemAuthorizationCode(ctx, code.Code)
	if err != nil {
		t.Fatal(err)
	}
	if redeemed.UserID != "u1" {
		t.Fatalf("unexpected user: %s", redeemed.UserID)
	}

	if _, err := e.RedeemAuthorizationCode(ctx, code.Code); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected invalid_grant on reuse, got %v", err)
	}
}

func TestIssueRejectsForeignRedirectURI(t *testing.T) {
	e := NewEngine(store.NewMemory())
	_, err := e.IssueAuthorizationCode(context.Background(), testClient, "u1", "http://evil.example/cb")
	if !errs.IsKind(err, errs.InvalidParameter) {
		t.Fatalf("expected invalid_parameter, got %v", err)
	}
}

func TestRedeemExpiredCode(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	e := NewEngine(store.NewMemory(), WithClock(func() time.Time { return now }))

	code, err := e.IssueAuthorizationCode(ctx, testClient, "u1", "http://localhost/cb")
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(61 * time.Second)
	if _, err := e.RedeemAuthorizationCode(ctx, code.Code); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected invalid_grant after expiry, got %v", err)
	}
}

func TestConcurrentCodeRedemption(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	code, err := e.IssueAuthorizationCode(ctx, testClient, "u1", "http://localhost/cb")
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.RedeemAuthorizationCode(ctx, code.Code); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", wins)
	}
}

func TestTokenPairAndResolve(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())

	tok, err := e.IssueTokenPair(ctx, testClient, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if tok.SessionID == "" || tok.AccessToken == tok.RefreshToken {
		t.Fatalf("unexpected token pair: %#v", tok)
	}

	resolved, err := e.ResolveAccessToken(ctx, tok.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.UserID != "u1" || resolved.SessionID != tok.SessionID {
		t.Fatalf("unexpected resolution: %#v", resolved)
	}
}

func TestResolveExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	e := NewEngine(store.NewMemory(), WithClock(func() time.Time { return now }))

	tok, err := e.IssueTokenPair(ctx, testClient, "u1")
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Hour + time.Second)
	if _, err := e.ResolveAccessToken(ctx, tok.AccessToken); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected invalid_grant, got %v", err)
	}
}

func TestClientTTLOverride(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	e := NewEngine(store.NewMemory(), WithClock(func() time.Time { return now }))

	c := testClient
	c.AccessTokenTTL = 2 * time.Hour
	tok, err := e.IssueTokenPair(ctx, c, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got := tok.AccessExpiresAt.Sub(tok.CreatedAt); got != 2*time.Hour {
		t.Fatalf("expected 2h access ttl, got %s", got)
	}
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())

	first, err := e.IssueTokenPair(ctx, testClient, "u1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.RedeemRefreshToken(ctx, first.RefreshToken)
	if err != nil {
		t.Fatal(err)
	}
	if second.RefreshToken == first.RefreshToken || second.AccessToken == first.AccessToken {
		t.Fatal("rotation must mint fresh tokens")
	}
	if second.UserID != "u1" || second.ClientID != "1" {
		t.Fatalf("rotation lost identity: %#v", second)
	}
	// The consumed refresh token is dead.
	if _, err := e.RedeemRefreshToken(ctx, first.RefreshToken); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected invalid_grant on reuse, got %v", err)
	}
}

func TestRevokeUserGrants(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())

	code, _ := e.IssueAuthorizationCode(ctx, testClient, "u1", "http://localhost/cb")
	tok, _ := e.IssueTokenPair(ctx, testClient, "u1")

	if err := e.RevokeUserGrants(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.RedeemAuthorizationCode(ctx, code.Code); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected code revoked, got %v", err)
	}
	if _, err := e.ResolveAccessToken(ctx, tok.AccessToken); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected access token revoked, got %v", err)
	}
	if _, err := e.RedeemRefreshToken(ctx, tok.RefreshToken); !errs.IsKind(err, errs.InvalidGrant) {
		t.Fatalf("expected refresh token revoked, got %v", err)
	}
}
