package main

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"
)

type loginData struct {
	Error     bool
	CSRFToken string
	Version   string
	Year      int
}

type indexData struct {
	Version string
	Year    int
	Width   int
	Height  int
}

var securityHeaderValues = map[string]string{
	"X-Frame-Options":        "DENY",
	"X-Content-Type-Options": "nosniff",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range securityHeaderValues {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// renderHTML executes tmpl into w, logging rather than failing: headers
// are already sent once execution starts.
func renderHTML(w http.ResponseWriter, name string, exec func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := exec(w); err != nil {
		slog.Error("failed to render page", "page", name, "error", err)
	}
}

// handleFavicon draws the icon in the waveform stroke color.
func (s *Server) handleFavicon(w http.ResponseWriter, _ *http.Request) {
	color := s.config.Snapshot().Waveform.StrokeColor
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := faviconTmpl.Execute(w, struct{ Color string }{color}); err != nil {
		slog.Error("failed to render favicon", "error", err)
	}
}

// handleIndex renders the recorder page. Any other unrouted path is 404.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	wf := s.config.Snapshot().Waveform
	data := indexData{Version: Version, Year: time.Now().Year(), Width: wf.Width, Height: wf.Height}
	renderHTML(w, "index", func(w http.ResponseWriter) error { return indexTmpl.Execute(w, data) })
}

// handleLogin shows the login form and checks submissions. Every form
// carries a fresh single-use CSRF token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions.ValidateRequest(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	failed := false
	if r.Method == http.MethodPost {
		if !s.sessions.ValidateCSRFToken(r.FormValue("csrf_token")) {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		cfg := s.config.Snapshot()
		if s.sessions.Login(w, r, r.FormValue("username"), r.FormValue("password"), cfg.WebUser, cfg.WebPassword) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		slog.Warn("failed login attempt", "remote", r.RemoteAddr)
		failed = true
	}

	data := loginData{
		Error:     failed,
		CSRFToken: s.sessions.CreateCSRFToken(),
		Version:   Version,
		Year:      time.Now().Year(),
	}
	renderHTML(w, "login", func(w http.ResponseWriter) error { return loginTmpl.Execute(w, data) })
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// apiKeyAuth admits requests whose X-API-Key header matches the configured
// key. Without a configured key the API is unavailable.
func (s *Server) apiKeyAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := s.config.APIKey()
		if want == "" {
			http.Error(w, "API key not configured", http.StatusServiceUnavailable)
			return
		}
		got := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
