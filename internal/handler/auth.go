package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/middleware"
)

type AuthHandler struct {
	gateway      *auth.Gateway
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(g *auth.Gateway, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{gateway: g, secureCookie: secureCookie, logger: logger}
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPatchRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

func (req userPatchRequest) patch() auth.UserPatch {
	return auth.UserPatch{Name: req.Name, Email: req.Email, Role: req.Role, Password: req.Password}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.gateway.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("user registered", "user_id", view.ID)
	writeJSON(w, http.StatusOK, view)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, u, err := h.gateway.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	cookie := &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge := h.gateway.Tokens().MaxAge(); maxAge > 0 {
		cookie.MaxAge = int(maxAge / time.Second)
	}
	http.SetCookie(w, cookie)

	h.logger.Info("user logged in", "user_id", u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"jwt": token})
}

// Logout clears the cookie. A copy of the token held elsewhere stays valid
// until it reaches its max age.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "success"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	view, err := h.gateway.WhoAmI(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req userPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.gateway.UpdateSelf(r.Context(), req.patch())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
