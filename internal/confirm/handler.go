// Package confirm serves the confirmation landing endpoint. A subscriber
// clicking the link in an opt-in email arrives here with their address and
// token as URL parameters; the handler verifies the pair and reports the
// outcome. It shares the token algorithm with the sending pipeline and
// nothing else.
package confirm

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/optin-mailer/internal/pkg/logger"
	"github.com/ignite/optin-mailer/internal/token"
)

// Handler validates confirmation requests.
type Handler struct {
	tokens *token.Generator
}

// NewHandler creates a Handler.
func NewHandler(tokens *token.Generator) *Handler {
	return &Handler{tokens: tokens}
}

// Router builds the HTTP router for the confirmation endpoint.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/confirm", h.handleConfirm)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	tok := r.URL.Query().Get("token")
	if email == "" || tok == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and token parameters are required"})
		return
	}

	// Expiring tokens are tri-part; plain tokens are a bare hash.
	var err error
	if strings.Contains(tok, ".") {
		err = h.tokens.ValidateExpiringToken(email, tok)
	} else {
		err = h.tokens.ValidateConfirmRequest(email, tok)
	}

	switch {
	case err == nil:
		logger.Info("subscription confirmed", "email", email)
		writeJSON(w, http.StatusOK, map[string]interface{}{"confirmed": true})
	case errors.Is(err, token.ErrExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": "confirmation link expired"})
	case errors.Is(err, token.ErrMalformed):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed confirmation link"})
	default:
		logger.Warn("confirmation rejected", "email", email, "error", err.Error())
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "confirmation link is not valid for this address"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
