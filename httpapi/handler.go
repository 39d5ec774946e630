// Package httpapi exposes the auth Manager over a small JSON RPC surface.
// Handlers decode, trim and delegate; every domain decision stays in the
// Manager.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/flamma/auth"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	manager *auth.Manager
}

func NewHandler(manager *auth.Manager) *Handler {
	return &Handler{manager: manager}
}

// Routes wires every endpoint onto a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /token/validate", h.ValidateToken)
	mux.HandleFunc("POST /token/refresh", h.RefreshToken)
	mux.HandleFunc("POST /token/revoke", h.RevokeToken)
	mux.HandleFunc("POST /token/revoke-all", h.RevokeAllTokens)
	mux.HandleFunc("POST /accounts/ban", h.Ban)
	mux.HandleFunc("POST /accounts/ban/permanent", h.PermanentBan)
	mux.HandleFunc("POST /accounts/unban", h.Unban)
	mux.HandleFunc("POST /accounts/ban/status", h.IsBanned)
	return mux
}

type registerRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	PrimaryLocationID string `json:"primary_location_id"`
	BirthDate         string `json:"birth_date"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPairResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenValidTo time.Time `json:"token_valid_to"`
}

type validateRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type refreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type revokeRequest struct {
	Username string `json:"username"`
}

type banRequest struct {
	AccountID string `json:"account_id"`
	// Duration uses Go duration syntax, e.g. "72h".
	Duration string `json:"duration"`
}

type accountRequest struct {
	AccountID string `json:"account_id"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	req := auth.RegisterRequest{
		Username:          strings.TrimSpace(body.Username),
		Password:          body.Password,
		FirstName:         strings.TrimSpace(body.FirstName),
		LastName:          strings.TrimSpace(body.LastName),
		PrimaryLocationID: strings.TrimSpace(body.PrimaryLocationID),
	}
	if body.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", body.BirthDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "birth_date must be YYYY-MM-DD")
			return
		}
		req.BirthDate = birth
	}

	if err := h.manager.Register(r.Context(), req); err != nil {
		h.writeDomainError(w, err, "failed to register")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	pair, err := h.manager.Login(r.Context(), strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		h.writeDomainError(w, err, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokenPairResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		TokenValidTo: pair.TokenValidTo,
	})
}

func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var body validateRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Token == "" || body.Username == "" {
		writeError(w, http.StatusBadRequest, "token and username are required")
		return
	}

	valid, err := h.manager.ValidateCredential(r.Context(), body.Token, strings.TrimSpace(body.Username))
	if err != nil {
		h.writeDomainError(w, err, "failed to validate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	pair, err := h.manager.RefreshSession(r.Context(), body.Token, strings.TrimSpace(body.RefreshToken))
	if err != nil {
		h.writeDomainError(w, err, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokenPairResponse{
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		TokenValidTo: pair.TokenValidTo,
	})
}

func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	var body revokeRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := h.manager.RevokeSession(r.Context(), username); err != nil {
		h.writeDomainError(w, err, "failed to revoke token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokeAllTokens(w http.ResponseWriter, r *http.Request) {
	result, err := h.manager.RevokeAllSessions(r.Context())
	if err != nil {
		h.writeDomainError(w, err, "failed to revoke tokens")
		return
	}

	failed := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, f.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"revoked": result.Revoked,
		"failed":  failed,
	})
}

func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	var body banRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	duration, err := time.ParseDuration(body.Duration)
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "duration must be a positive Go duration")
		return
	}

	if err := h.manager.Ban(r.Context(), body.AccountID, duration); err != nil {
		h.writeDomainError(w, err, "failed to ban account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PermanentBan(w http.ResponseWriter, r *http.Request) {
	var body accountRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	if err := h.manager.PermanentBan(r.Context(), body.AccountID); err != nil {
		h.writeDomainError(w, err, "failed to ban account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) {
	var body accountRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	if err := h.manager.Unban(r.Context(), body.AccountID); err != nil {
		h.writeDomainError(w, err, "failed to unban account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IsBanned(w http.ResponseWriter, r *http.Request) {
	var body accountRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	info, err := h.manager.CheckBanStatus(r.Context(), body.AccountID)
	if err != nil {
		h.writeDomainError(w, err, "failed to check ban status")
		return
	}

	resp := map[string]any{"banned": info.Banned}
	if info.Banned {
		resp["until"] = info.Until.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrValidationFailed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAccountNotFound):
		writeError(w, http.StatusBadRequest, "account not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, auth.ErrStoreUnavailable):
		sentry.CaptureException(err)
		writeError(w, http.StatusServiceUnavailable, "account store unavailable")
	default:
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
