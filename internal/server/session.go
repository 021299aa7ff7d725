package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sync"
	"time"
)

const (
	sessionCookieName = "voicenote_session"
	sessionTTL        = 24 * time.Hour
	csrfTTL           = 10 * time.Minute
	tokenBytes        = 32
)

// tokenSet holds random tokens until they expire. Not safe for concurrent
// use; SessionManager guards it.
type tokenSet struct {
	ttl     time.Duration
	expires map[string]time.Time
}

func newTokenSet(ttl time.Duration) tokenSet {
	return tokenSet{ttl: ttl, expires: make(map[string]time.Time)}
}

func (ts tokenSet) add(token string, now time.Time) {
	for t, exp := range ts.expires {
		if now.After(exp) {
			delete(ts.expires, t)
		}
	}
	ts.expires[token] = now.Add(ts.ttl)
}

// live reports whether token exists and has not expired. Expired tokens
// are dropped on lookup.
func (ts tokenSet) live(token string, now time.Time) bool {
	exp, ok := ts.expires[token]
	if !ok {
		return false
	}
	if now.After(exp) {
		delete(ts.expires, token)
		return false
	}
	return true
}

func newToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// SessionManager tracks browser logins and single-use CSRF tokens for the
// login form. It is safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions tokenSet
	csrf     tokenSet
}

// NewSessionManager returns an empty SessionManager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: newTokenSet(sessionTTL),
		csrf:     newTokenSet(csrfTTL),
	}
}

func (sm *SessionManager) issue(set *tokenSet) string {
	token := newToken()
	if token == "" {
		return ""
	}
	sm.mu.Lock()
	set.add(token, time.Now())
	sm.mu.Unlock()
	return token
}

// Create starts a session and returns its token, or "" when no random
// token could be generated.
func (sm *SessionManager) Create() string {
	return sm.issue(&sm.sessions)
}

// Count returns the number of sessions held, including any that expired
// since the last sweep.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions.expires)
}

// Validate reports whether token names a live session.
func (sm *SessionManager) Validate(token string) bool {
	if token == "" {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.sessions.live(token, time.Now())
}

// ValidateRequest reports whether r carries a live session cookie.
func (sm *SessionManager) ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return false
	}
	return sm.Validate(cookie.Value)
}

// Delete ends a session.
func (sm *SessionManager) Delete(token string) {
	sm.mu.Lock()
	delete(sm.sessions.expires, token)
	sm.mu.Unlock()
}

// AuthMiddleware redirects requests without a live session to /login.
func (sm *SessionManager) AuthMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !sm.ValidateRequest(r) {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			next(w, r)
		}
	}
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

// credentialsMatch compares both fields in constant time, always checking
// both so timing does not reveal which one was wrong.
func credentialsMatch(user, pass, wantUser, wantPass string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass))
	return u&p == 1
}

// Login checks the credentials and, when they match, starts a session and
// sets its cookie on w.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, username, password, configUser, configPass string) bool {
	if !credentialsMatch(username, password, configUser, configPass) {
		return false
	}
	token := sm.Create()
	if token == "" {
		return false
	}
	writeSessionCookie(w, r, token, int(sessionTTL.Seconds()))
	return true
}

// Logout ends the request's session, if any, and clears the cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		sm.Delete(cookie.Value)
	}
	writeSessionCookie(w, r, "", -1)
}

// CreateCSRFToken issues a token for one login form submission.
func (sm *SessionManager) CreateCSRFToken() string {
	return sm.issue(&sm.csrf)
}

// ValidateCSRFToken consumes token and reports whether it was live.
func (sm *SessionManager) ValidateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	ok := sm.csrf.live(token, time.Now())
	delete(sm.csrf.expires, token)
	return ok
}
