// Package httpapi is the HTTP boundary: OAuth endpoints, wallet
// endpoints, operator endpoints, bearer authentication and the error
// mapping table.
package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/account"
	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/errs"
	"vegaslounge.live/internal/grant"
	"vegaslounge.live/internal/obs"
	"vegaslounge.live/internal/stream"
	"vegaslounge.live/internal/wallet"
)

func init() {
	// Balances travel as JSON numbers, matching the wire format the game
	// providers integrate against.
	decimal.MarshalJSONWithoutQuotes = true
}

// Options carries the boundary configuration.
type Options struct {
	Version            string
	DefaultClientID    string
	SupportedLanguages []string
	SessionSecret      string
	SessionTTL         time.Duration
	SecureSession      bool
	TrustProxy         int
	RateBurst          int
	RatePerSec         int

	// DB, when set, backs the readiness probe.
	DB *sql.DB
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	registry *client.Registry
	engine   *grant.Engine
	ledger   *wallet.Ledger
	accounts *account.Service
	sessions *sessions
	events   *stream.Stream
	opts     Options
}

// New wires the handlers onto a fresh mux.
func New(reg *client.Registry, eng *grant.Engine, led *wallet.Ledger, accts *account.Service, opts Options) *API {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 25
	}
	a := &API{
		mux:      http.NewServeMux(),
		registry: reg,
		engine:   eng,
		ledger:   led,
		accounts: accts,
		sessions: newSessions(opts.SessionSecret, opts.SessionTTL, opts.SecureSession),
		events:   stream.New(),
		opts:     opts,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/oauth2.0/authorize", a.handleAuthorize)
	a.mux.HandleFunc("/oauth2.0/token", a.handleToken)
	a.mux.HandleFunc("/logout", a.handleLogout)

	a.mux.Handle("/account", a.authenticate(http.HandlerFunc(a.handleAccount)))
	a.mux.Handle("/balance", a.authenticate(http.HandlerFunc(a.handleBalance)))
	a.mux.Handle("/bet", a.authenticate(http.HandlerFunc(a.handleBet)))
	a.mux.Handle("/payoff", a.authenticate(http.HandlerFunc(a.handlePayoff)))
	a.mux.Handle("/reverse", a.authenticate(http.HandlerFunc(a.handleReverse)))

	a.mux.HandleFunc("/internal/createUser", a.handleCreateUser)
	a.mux.HandleFunc("/internal/updateUser", a.handleUpdateUser)
	a.mux.HandleFunc("/internal/setUserActive", a.handleSetUserActive)
	a.mux.HandleFunc("/internal/events", a.handleEvents)

	a.mux.HandleFunc("/", a.handleRoot)

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec, a.opts.TrustProxy)
	h = SecurityHeaders(h)
	h = Logging(h, a.opts.TrustProxy)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "wallet-oauth",
		"version": a.opts.Version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.opts.DB != nil {
		if err := a.opts.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleRoot redirects to the default client's authorize URL, mirroring a
// casino lobby landing on the login flow.
func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	c, err := a.registry.ResolveByID(r.Context(), a.opts.DefaultClientID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(c.RedirectURIs) == 0 {
		a.writeError(w, r, errs.Newf(errs.InvalidParameter, "client %s has no redirect URIs", c.ID))
		return
	}
	target := "/oauth2.0/authorize?response_type=code&client_id=" + c.ID + "&redirect_uri=" + c.RedirectURIs[0]
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}
