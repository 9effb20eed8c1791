package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/the-vibe-thread/admin-orders/internal/repository"
)

const (
	sessionCookieName = "admin_session"
	sessionTTL        = 24 * time.Hour
)

type contextKey string

const usernameContextKey contextKey = "username"

func usernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameContextKey).(string)
	return username
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if credentials.Username == "" || credentials.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	valid, err := s.userRepo.ValidateUser(r.Context(), credentials.Username, credentials.Password)
	if err != nil {
		s.logger.Error("failed to validate user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !valid {
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(sessionTTL)
	if err := s.userRepo.CreateSession(r.Context(), token, credentials.Username, expiresAt); err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"username": credentials.Username})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"username": usernameFromContext(r.Context()),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		if err := s.userRepo.DeleteSession(r.Context(), cookie.Value); err != nil {
			s.logger.Warn("failed to delete session", zap.Error(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		username, err := s.userRepo.GetSession(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, repository.ErrObjectNotFound) {
				respondError(w, http.StatusUnauthorized, "Session expired")
				return
			}
			s.logger.Error("failed to look up session", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), usernameContextKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
