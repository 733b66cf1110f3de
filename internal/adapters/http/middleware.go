package httpadapter

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/intervu-api/internal/observability"
)

// withLogging assigns a request id and logs every request.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := observability.WithRequestID(r.Context(), uuid.New().String())
		next.ServeHTTP(w, r.WithContext(ctx))

		observability.LoggerFromContext(ctx).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// withCORS adds basic CORS headers to allow calls from a web front-end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// chainMiddlewares applies multiple middlewares in order.
func chainMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middlewares {
		h = m(h)
	}
	return h
}

const (
	adminCookieName = "admin_auth"
	adminSessionTTL = 8 * time.Hour
)

// adminAuth issues and checks the admin session cookie. Credentials come
// from the environment; with none configured the admin surface stays off.
type adminAuth struct {
	username string
	password string

	mu     sync.Mutex
	tokens map[string]time.Time
}

func newAdminAuth(username, password string) *adminAuth {
	return &adminAuth{
		username: username,
		password: password,
		tokens:   make(map[string]time.Time),
	}
}

func (a *adminAuth) login(username, password string) (*http.Cookie, bool) {
	if a.username == "" || a.password == "" {
		return nil, false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return nil, false
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, false
	}
	token := hex.EncodeToString(buf)
	expires := time.Now().Add(adminSessionTTL)

	a.mu.Lock()
	a.tokens[token] = expires
	a.mu.Unlock()

	return &http.Cookie{
		Name:     adminCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, true
}

func (a *adminAuth) valid(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	expires, ok := a.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expires) {
		delete(a.tokens, token)
		return false
	}
	return true
}

// require guards a handler behind the admin cookie.
func (a *adminAuth) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err != nil || !a.valid(cookie.Value) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}
