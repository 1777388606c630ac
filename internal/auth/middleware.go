package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"school-directory/internal/httputil"
)

type contextKey string

const sessionKey contextKey = "session"

const (
	SignInPath    = "/auth"
	flowCookieTTL = 15 * time.Minute
)

// WithSession returns a context carrying the signed-in session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by LoadSession, if any.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

type CookieConfig struct {
	Name   string
	Secure bool
}

func (c CookieConfig) flowName() string {
	return c.Name + "_flow"
}

type Middleware struct {
	provider Provider
	cookies  CookieConfig
	logger   *slog.Logger
}

func NewMiddleware(provider Provider, cookies CookieConfig, logger *slog.Logger) *Middleware {
	return &Middleware{
		provider: provider,
		cookies:  cookies,
		logger:   logger,
	}
}

// LoadSession restores the session named by the session cookie and stores it
// in the request context. Stale cookies are cleared.
func (m *Middleware) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookies.Name)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.provider.Restore(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionNotFound) {
				m.logger.DebugContext(r.Context(), "discarding stale session cookie", "error", err)
				m.clearSessionCookie(w)
			} else {
				m.logger.ErrorContext(r.Context(), "failed to restore session", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireSession rejects requests without a session and tells the client
// where to sign in.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			m.logger.WarnContext(r.Context(), "unauthenticated request", "path", r.URL.Path)
			httputil.RespondWithJSON(w, http.StatusUnauthorized, map[string]string{
				"error":   "unauthorized",
				"sign_in": SignInURL(r.URL.Path),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SignInURL is the sign-in page carrying the path to return to afterwards.
func SignInURL(from string) string {
	return SignInPath + "?" + url.Values{"from": {SafeReturnPath(from)}}.Encode()
}

func (m *Middleware) setSessionCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookies.Name,
		Value:    s.Token,
		HttpOnly: true,
		Secure:   m.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		Expires:  s.ExpiresAt,
	})
}

func (m *Middleware) clearSessionCookie(w http.ResponseWriter) {
	m.expireCookie(w, m.cookies.Name)
}

func (m *Middleware) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		HttpOnly: true,
		Secure:   m.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

// saveFlow stores an unfinished flow. The authenticated step is never
// persisted here; the session cookie covers it.
func (m *Middleware) saveFlow(w http.ResponseWriter, st State) {
	if st.Step == StepAuthenticated {
		m.expireCookie(w, m.cookies.flowName())
		return
	}
	st.Session = nil

	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookies.flowName(),
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		HttpOnly: true,
		Secure:   m.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(flowCookieTTL.Seconds()),
	})
}

// loadFlow rebuilds the caller's flow from the flow cookie and the session in
// context. from only applies to a flow that is not yet saved.
func (m *Middleware) loadFlow(r *http.Request, from string) *Flow {
	if s, ok := SessionFromContext(r.Context()); ok {
		return ResumeFlow(m.provider, State{Step: StepAuthenticated, Session: s, ReturnTo: from})
	}

	cookie, err := r.Cookie(m.cookies.flowName())
	if err != nil {
		return NewFlow(m.provider, from)
	}
	payload, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return NewFlow(m.provider, from)
	}
	var st State
	if err := json.Unmarshal(payload, &st); err != nil || st.Step == StepAuthenticated {
		return NewFlow(m.provider, from)
	}
	st.Session = nil
	if from != "" {
		st.ReturnTo = from
	}
	return ResumeFlow(m.provider, st)
}
