// auth.go - Bearer token gate and the admin login/profile handlers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"asset-catalog/internal/db"
)

type identityKey struct{}

// IdentityFromContext returns the identity the gate attached to a request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// gate wraps next with the access check. Open routes pass through untouched.
// On gated routes a missing or invalid token ends the request with 401 and
// next never runs.
func (s *Server) gate(required bool, next http.Handler) http.Handler {
	if !required {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		id, err := s.sessions.Authenticate(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type loginResponse struct {
	Token string    `json:"token"`
	Admin adminView `json:"admin"`
}

// handleLogin handles POST /api/admin/login. Unknown email and wrong password
// produce identical responses.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	sess, err := s.sessions.Login(r.Context(), body.Email, body.Password)
	s.metrics.RecordLogin(err)
	if err != nil {
		status, msg := errorStatus(err, s.maxBytes, "Server error during login")
		if status == http.StatusInternalServerError {
			s.log.Error("login failed", zap.String("rid", RequestIDFromContext(r.Context())), zap.Error(err))
		} else {
			s.log.Info("login rejected", zap.String("rid", RequestIDFromContext(r.Context())), zap.String("ip", getClientIP(r)))
		}
		writeMessage(w, status, msg)
		return
	}

	s.log.Info("admin logged in", zap.String("admin_id", sess.Admin.AdminID))
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "Login successful",
		Data: loginResponse{
			Token: sess.Token,
			Admin: adminView{ID: sess.Admin.AdminID, Email: sess.Admin.Email},
		},
	})
}

type profileView struct {
	adminView
	CreatedAt time.Time `json:"created_at"`
}

// handleProfile handles GET /api/admin/profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	adm, err := s.accounts.FindByID(r.Context(), id.AdminID)
	if errors.Is(err, db.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Admin not found")
		return
	}
	if err != nil {
		s.log.Error("load profile failed", zap.String("admin_id", id.AdminID), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeData(w, http.StatusOK, profileView{
		adminView: adminView{ID: adm.ID, Email: adm.Email},
		CreatedAt: adm.CreatedAt,
	})
}
