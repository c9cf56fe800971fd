package client

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/store"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(store.NewMemory(), bcrypt.MinCost)
}

func register(t *testing.T, r *Registry) View {
	t.Helper()
	v, err := r.Register(context.Background(), "1", "1",
		[]string{GrantAuthorizationCode, GrantRefreshToken},
		[]string{"http://localhost"}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestRegisterAndResolve(t *testing.T) {
	r := newRegistry(t)
	v := register(t, r)
	if v.ID != "1" || len(v.GrantKinds) != 2 {
		t.Fatalf("unexpected view: %#v", v)
	}

	got, err := r.ResolveByID(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "1" {
		t.Fatalf("unexpected client: %#v", got)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRegistry(t)
	register(t, r)
	_, err := r.Register(context.Background(), "1", "other", nil, nil, 0, 0)
	if !errs.IsKind(err, errs.InvalidParameter) {
		t.Fatalf("expected invalid_parameter, got %v", err)
	}
}

func TestResolveUnknownClient(t *testing.T) {
	r := newRegistry(t)
	if _, err := r.ResolveByID(context.Background(), "missing"); !errs.IsKind(err, errs.InvalidClient) {
		t.Fatalf("expected invalid_client, got %v", err)
	}
}

func TestResolveBySecret(t *testing.T) {
	r := newRegistry(t)
	register(t, r)

	if _, err := r.ResolveBySecret(context.Background(), "1", "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.ResolveBySecret(context.Background(), "1", "wrong"); !errs.IsKind(err, errs.InvalidClient) {
		t.Fatalf("expected invalid_client on mismatch, got %v", err)
	}
	if _, err := r.ResolveBySecret(context.Background(), "1", ""); !errs.IsKind(err, errs.InvalidParameter) {
		t.Fatalf("expected invalid_parameter on empty secret, got %v", err)
	}
}

func TestValidateRedirectURI(t *testing.T) {
	v := View{RedirectURIs: []string{"http://localhost", "https://lobby.example"}}
	cases := []struct {
		uri string
		ok  bool
	}{
		{"http://localhost", true},
		{"http://localhost/game?round=1", true},
		{"https://lobby.example/cb", true},
		{"http://evil.example", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidateRedirectURI(v, c.uri); got != c.ok {
			t.Fatalf("ValidateRedirectURI(%q) = %v, want %v", c.uri, got, c.ok)
		}
	}
}

func TestValidateGrantKind(t *testing.T) {
	v := View{GrantKinds: []string{GrantAuthorizationCode}}
	if !ValidateGrantKind(v, GrantAuthorizationCode) {
		t.Fatal("expected authorization_code allowed")
	}
	if ValidateGrantKind(v, GrantRefreshToken) {
		t.Fatal("expected refresh_token denied")
	}
}
