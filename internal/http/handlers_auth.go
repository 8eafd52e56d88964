package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"transferencias/internal/api"
)

type authPageData struct {
	Registered bool
	Error      string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "login.html", authPageData{
		Registered: r.URL.Query().Get("cadastro") == "ok",
	})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "cadastro.html", authPageData{})
}

// handleLogin exchanges form credentials for API credentials and opens a
// session bound to a browser cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}

	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("senha")
	if email == "" || password == "" {
		UnprocessableEntityError("Informe e-mail e senha").Write(w)
		return
	}

	creds, err := s.backend.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			slog.InfoContext(r.Context(), "Login rejected", "email", email)
			ErrorResponse(http.StatusUnauthorized, "E-mail ou senha inválidos").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Login request failed", "error", err, "email", email)
		InternalServerError("Não foi possível entrar, tente novamente").Write(w)
		return
	}

	sess, err := s.sessions.Create(r.Context(), creds.Token, creds.User)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session creation failed", "error", err, "user_id", creds.User.ID)
		InternalServerError("Não foi possível entrar, tente novamente").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Login succeeded", "user_id", creds.User.ID)
	setSessionCookie(w, sess.ID)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/transferencias")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/transferencias", http.StatusSeeOther)
}

// handleSignup registers an account on the API. Signup never opens a
// session; the user logs in afterwards.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		BadRequestError("Formato de requisição inválido").Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("nome"))
	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("senha")
	confirm := r.Form.Get("confirmacao")

	switch {
	case name == "":
		UnprocessableEntityError("Informe o nome").Write(w)
		return
	case email == "" || !strings.Contains(email, "@"):
		UnprocessableEntityError("E-mail inválido").Write(w)
		return
	case password == "":
		UnprocessableEntityError("Informe a senha").Write(w)
		return
	case password != confirm:
		UnprocessableEntityError("As senhas não conferem").Write(w)
		return
	}

	if err := s.backend.Register(r.Context(), name, email, password); err != nil {
		slog.ErrorContext(r.Context(), "Signup rejected by API", "error", err, "email", email)
		UnprocessableEntityError("Não foi possível concluir o cadastro").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Signup completed", "email", email)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login?cadastro=ok")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login?cadastro=ok", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.sessions.Logout(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Logout cleanup failed", "error", err)
		}
	}
	clearSessionCookie(w)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// renderPage executes a full-page template, degrading to a 500 when
// templates failed to load at startup.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
