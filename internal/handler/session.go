package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
)

// SessionCookieName is the cookie carrying the opaque review session id.
const SessionCookieName = "assessor_session"

// sessionMiddleware resolves the review session from the cookie, creating
// a new one when the cookie is missing, unknown or expired.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			if _, perr := uuid.Parse(cookie.Value); perr == nil {
				ok, err := h.sessions.SessionExists(ctx, cookie.Value)
				if err != nil {
					slog.Error("session lookup failed", "error", err)
					writeError(w, http.StatusInternalServerError, appI18n.T(ctx, "ErrInternal"))
					return
				}
				if ok {
					next.ServeHTTP(w, r.WithContext(model.ContextWithSessionID(ctx, cookie.Value)))
					return
				}
			}
		}

		id := uuid.New().String()
		if err := h.sessions.CreateSession(ctx, id); err != nil {
			slog.Error("failed to create session", "error", err)
			writeError(w, http.StatusInternalServerError, appI18n.T(ctx, "ErrInternal"))
			return
		}
		cookie := &http.Cookie{
			Name:     SessionCookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   h.config.SecureCookies,
		}
		if h.config.SessionTTL > 0 {
			cookie.MaxAge = int(h.config.SessionTTL.Seconds())
		}
		http.SetCookie(w, cookie)
		slog.Debug("session created", "session_id", id)
		next.ServeHTTP(w, r.WithContext(model.ContextWithSessionID(ctx, id)))
	})
}
