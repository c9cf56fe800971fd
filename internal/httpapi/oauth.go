package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"vegaslounge.live/internal/audit"
	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/obs"
	"vegaslounge.live/internal/store"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// handleAuthorize runs the authorization-code front channel. GET requires
// a live session cookie; POST accepts player credentials or guest=true,
// establishes the session, then falls through to code issuance.
func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID, ok := a.sessions.UserID(r)
		if !ok {
			a.writeError(w, r, errs.New(errs.InvalidParameter, "session did not return a user"))
			return
		}
		user, err := a.accounts.GetByID(r.Context(), userID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.authorize(w, r, user)
	case http.MethodPost:
		var (
			user *store.User
			err  error
		)
		if r.PostFormValue("guest") == "true" {
			lang := negotiateLanguage(r.Header.Get("Accept-Language"), a.opts.SupportedLanguages)
			user, err = a.accounts.CreateGuestUser(r.Context(), lang)
		} else {
			user, err = a.accounts.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
		}
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := a.sessions.Issue(w, user.ID); err != nil {
			a.writeError(w, r, err)
			return
		}
		a.authorize(w, r, user)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) authorize(w http.ResponseWriter, r *http.Request, user *store.User) {
	if rt := formOrQuery(r, "response_type"); rt != "code" {
		a.writeError(w, r, errs.Newf(errs.InvalidParameter, "invalid parameter: `response_type` %q", rt))
		return
	}
	c, err := a.registry.ResolveByID(r.Context(), formOrQuery(r, "client_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !client.ValidateGrantKind(c, client.GrantAuthorizationCode) {
		a.writeError(w, r, errs.New(errs.InvalidGrant, "unauthorized client: `grant_type` is invalid"))
		return
	}
	redirectURI := formOrQuery(r, "redirect_uri")
	code, err := a.engine.IssueAuthorizationCode(r.Context(), c, user.ID, redirectURI)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		a.writeError(w, r, errs.New(errs.InvalidParameter, "invalid request: `redirect_uri` is not a valid URI"))
		return
	}
	q := target.Query()
	q.Del("code")
	q.Del("state")
	q.Set("code", code.Code)
	if state := formOrQuery(r, "state"); state != "" {
		q.Set("state", state)
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// handleToken is the back-channel exchange: an authorization code or a
// refresh token for a fresh access/refresh pair.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	grantType := r.PostFormValue("grant_type")
	if grantType == "" {
		a.writeError(w, r, errs.New(errs.InvalidParameter, "missing parameter: `grant_type`"))
		return
	}
	c, err := a.registry.ResolveBySecret(r.Context(), r.PostFormValue("client_id"), r.PostFormValue("client_secret"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !client.ValidateGrantKind(c, grantType) {
		a.writeError(w, r, errs.New(errs.InvalidParameter, "invalid parameter: `grant_type`"))
		return
	}

	var token *store.Token
	switch grantType {
	case client.GrantAuthorizationCode:
		code, err := a.engine.RedeemAuthorizationCode(r.Context(), r.PostFormValue("code"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if code.ClientID != c.ID {
			a.writeError(w, r, errs.New(errs.InvalidGrant, "authorization code was issued to another client"))
			return
		}
		token, err = a.engine.IssueTokenPair(r.Context(), c, code.UserID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
	case client.GrantRefreshToken:
		token, err = a.engine.RedeemRefreshToken(r.Context(), r.PostFormValue("refresh_token"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
	default:
		a.writeError(w, r, errs.New(errs.InvalidParameter, "invalid parameter: `grant_type`"))
		return
	}

	obs.GrantIssued(grantType)
	_ = audit.LogEvent(r.Context(), "grant.issue", map[string]any{
		"grant_type": grantType,
		"client_id":  token.ClientID,
		"user_id":    token.UserID,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  token.AccessToken,
		ExpiresIn:    int64(token.AccessExpiresAt.Sub(token.CreatedAt).Seconds()),
		RefreshToken: token.RefreshToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	a.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusMovedPermanently)
}

func formOrQuery(r *http.Request, key string) string {
	if v := r.PostFormValue(key); v != "" {
		return v
	}
	return r.URL.Query().Get(key)
}

// negotiateLanguage picks the first Accept-Language tag present in the
// supported list, ignoring quality weights beyond their ordering.
func negotiateLanguage(header string, supported []string) string {
	if header == "" || len(supported) == 0 {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		for _, s := range supported {
			if strings.EqualFold(tag, s) {
				return s
			}
		}
	}
	return ""
}
