package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/account"
	"vegaslounge.live/internal/audit"
	"vegaslounge.live/internal/store"
)

// Operator endpoints used by back-office tooling to manage users. They
// live on the internal route prefix and are expected to be shielded by
// the deployment, not by bearer tokens.

type createUserRequest struct {
	Username  string          `json:"username"`
	Password  string          `json:"password"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Language  string          `json:"language"`
	Type      string          `json:"type"`
	AvatarURL string          `json:"avatarUrl"`
}

type updateUserRequest struct {
	Username  string           `json:"username"`
	Name      *string          `json:"name"`
	Password  *string          `json:"password"`
	Balance   *decimal.Decimal `json:"balance"`
	Language  *string          `json:"language"`
	AvatarURL *string          `json:"avatarUrl"`
}

type setUserActiveRequest struct {
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

type userView struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Language  string          `json:"language"`
	Type      store.UserKind  `json:"type"`
	Active    bool            `json:"active"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	AvatarURL string          `json:"avatarUrl,omitempty"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.accounts.CreateUser(r.Context(), account.NewUserInput{
		Username:  req.Username,
		Password:  req.Password,
		Name:      req.Name,
		Currency:  req.Currency,
		Balance:   req.Balance,
		Language:  req.Language,
		Kind:      store.UserKind(req.Type),
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.create", map[string]any{"username": user.Username})
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.accounts.UpdateUser(r.Context(), account.UpdateInput{
		Username:  req.Username,
		Name:      req.Name,
		Password:  req.Password,
		Balance:   req.Balance,
		Language:  req.Language,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.update", map[string]any{"username": user.Username})
	writeJSON(w, http.StatusOK, newUserView(user))
}

func (a *API) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req setUserActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.accounts.SetUserActive(r.Context(), req.Username, req.Active)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.set_active", map[string]any{
		"username": user.Username,
		"active":   user.Active,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"username": user.Username,
		"active":   user.Active,
	})
}

func newUserView(u *store.User) userView {
	v := userView{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Currency:  u.Currency,
		Balance:   u.Balance,
		Language:  u.Language,
		Type:      u.Kind,
		Active:    u.Active,
		AvatarURL: u.AvatarURL,
	}
	if !u.ExpiresAt.IsZero() {
		expires := u.ExpiresAt
		v.ExpiresAt = &expires
	}
	return v
}
