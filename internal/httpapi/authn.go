package httpapi

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"vegaslounge.live/internal/audit"
	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/store"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// Principal is the resolved (session, user, client) triple attached to
// authenticated requests.
type Principal struct {
	SessionID   string
	AccessToken string
	User        *store.User
	Client      client.View
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &p)
}

// PrincipalFromContext extracts the authenticated principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// authenticate resolves the bearer credential — Authorization header
// first, then the access_token query parameter, then a form body field —
// and loads the user and client it identifies.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		token, err := a.engine.ResolveAccessToken(r.Context(), raw)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		user, err := a.accounts.GetByID(r.Context(), token.UserID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		c, err := a.registry.ResolveByID(r.Context(), token.ClientID)
		if err != nil {
			if errs.IsKind(err, errs.InvalidClient) {
				err = errs.New(errs.InvalidGrant, "access token references an unknown client")
			}
			a.writeError(w, r, err)
			return
		}
		ctx := audit.WithActor(r.Context(), user.ID)
		ctx = ContextWithPrincipal(ctx, Principal{
			SessionID:   token.SessionID,
			AccessToken: token.AccessToken,
			User:        user,
			Client:      c,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal fetches the request principal, answering invalid_grant when
// the middleware did not run.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		a.writeError(w, r, errs.New(errs.InvalidGrant, "access token is missing"))
	}
	return p, ok
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if strings.HasPrefix(header, bearerPrefix) {
		if token := strings.TrimSpace(header[len(bearerPrefix):]); token != "" {
			return token
		}
	}
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if token := r.PostFormValue("access_token"); token != "" {
			return token
		}
	}
	return ""
}
