package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"oscar-gateway/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

// mountAuth подключает вход через провайдера OIDC. Эти маршруты доступны
// без сессии.
func (s *Server) mountAuth(r chi.Router) {
	r.Handle("/login", methods{http.MethodGet: s.handleLogin})
	r.Handle("/callback", methods{http.MethodGet: s.handleCallback})
	r.Handle("/session", methods{http.MethodGet: s.handleSession})
	r.Handle("/logout", methods{http.MethodPost: s.handleLogout})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil || s.sessions == nil {
		writeError(w, http.StatusInternalServerError, "identity provider is not configured", nil)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   !s.cfg.Auth.InsecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Location", s.provider.AuthCodeURL(state))
	w.WriteHeader(http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil || s.sessions == nil {
		writeError(w, http.StatusInternalServerError, "identity provider is not configured", nil)
		return
	}
	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		log.Printf("AUTH fail: identity provider returned %s", idpErr)
		writeError(w, http.StatusUnauthorized, "Login failed", nil)
		return
	}
	cookie, err := r.Cookie(auth.StateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		writeError(w, http.StatusBadRequest, "Invalid login state", nil)
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameter: code", nil)
		return
	}

	sess, err := s.provider.Exchange(r.Context(), code)
	if err != nil {
		log.Printf("AUTH fail: %v", err)
		writeError(w, http.StatusUnauthorized, "Login failed", nil)
		return
	}
	if err := s.sessions.Write(w, *sess); err != nil {
		writeFailure(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: auth.StateCookie, Value: "", Path: "/api/auth", MaxAge: -1, HttpOnly: true})
	log.Printf("AUTH ok user=%s role=%s", sess.Username, sess.Role)

	w.Header().Set("Location", s.cfg.Auth.PostLoginURL)
	w.WriteHeader(http.StatusFound)
}

type sessionView struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleSession отдает консоли текущего пользователя. Токены наружу не
// выходят.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	sess, err := s.sessions.Read(r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			s.sessions.Clear(w)
		}
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{
		Username:  sess.Username,
		Email:     sess.Email,
		Role:      sess.Role,
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleLogout всегда очищает cookie; ошибка выхода у провайдера только
// логируется.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if sess, err := s.sessions.Read(r); err == nil && s.provider != nil {
		if err := s.provider.Logout(r.Context(), sess.IDToken); err != nil {
			log.Printf("Logout at identity provider failed for %s: %v", sess.Username, err)
		}
	}
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}
