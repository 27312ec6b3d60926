package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/cookshare/internal/auth"
	"github.com/sakif/cookshare/internal/model"
	"github.com/sakif/cookshare/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler manages password and GitHub logins and the session cookie.
//
// github may be nil, in which case the GitHub routes are never mounted.
type AuthHandler struct {
	auth         *service.AuthService
	github       *auth.GitHubProvider
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	authSvc *service.AuthService,
	github *auth.GitHubProvider,
	sessionTTL time.Duration,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authSvc,
		github:       github,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// UserResponse wraps the account returned by the auth endpoints.
type UserResponse struct {
	User *model.User `json:"user"`
}

// setSession stores the token in an HttpOnly cookie. SameSite=Lax keeps it
// off cross-site POSTs.
func (h *AuthHandler) setSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSession(w, res.Token)
	writeJSON(w, http.StatusCreated, UserResponse{User: res.User})
}

// HandleLogin checks an email/password pair and sets the session cookie.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSession(w, res.Token)
	writeJSON(w, http.StatusOK, UserResponse{User: res.User})
}

// HandleLogout clears the session cookie. Tokens are stateless, so an
// already copied token stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// HandleMe returns the caller's account.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUser(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

// HandleGitHubLogin redirects to GitHub's consent page. The random state is
// kept in a short-lived cookie and checked on callback.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback finishes the OAuth flow and redirects home.
//
// HTTP: GET /auth/github/callback?code=...&state=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || q.Get("state") != c.Value {
		h.logger.Warn("github callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid OAuth state"})
		return
	}
	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing OAuth code"})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "authentication failed"})
		return
	}

	res, err := h.auth.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSession(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
