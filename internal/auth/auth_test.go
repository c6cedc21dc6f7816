package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newEnv(t *testing.T) *Authenv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return &Authenv{
		JWTkey:            []byte("test-key"),
		AdminLogin:        "admin",
		AdminPasswordHash: string(hash),
		Log:               logger,
	}
}

func login(t *testing.T, env *Authenv, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	env.LoginHandler(w, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body)))
	return w
}

func TestLoginHandler(t *testing.T) {
	env := newEnv(t)

	t.Run("should set session cookie", func(t *testing.T) {
		w := login(t, env, `{"login":"admin","password":"s3cret-pass"}`)
		require.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		who, err := env.parse(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "admin", who)
	})

	t.Run("should reject wrong password", func(t *testing.T) {
		w := login(t, env, `{"login":"admin","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("should reject wrong login", func(t *testing.T) {
		w := login(t, env, `{"login":"root","password":"s3cret-pass"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject empty fields", func(t *testing.T) {
		w := login(t, env, `{"login":" ","password":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should be disabled without a hash", func(t *testing.T) {
		w := login(t, &Authenv{JWTkey: []byte("k")}, `{"login":"admin","password":"x"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	env := newEnv(t)
	var seen string
	protected := env.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	sign := func(claims jwt.MapClaims, key []byte) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		}
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		return w.Code
	}
	exp := time.Now().Add(time.Hour).Unix()

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("garbage"))
	assert.Equal(t, http.StatusUnauthorized, call(sign(jwt.MapClaims{"login": "admin", "role": "admin", "exp": exp}, []byte("other-key"))))
	assert.Equal(t, http.StatusUnauthorized, call(sign(jwt.MapClaims{"login": "admin", "role": "viewer", "exp": exp}, env.JWTkey)))
	assert.Equal(t, http.StatusUnauthorized, call(sign(jwt.MapClaims{"login": "admin", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}, env.JWTkey)))

	assert.Equal(t, http.StatusOK, call(sign(jwt.MapClaims{"login": "admin", "role": "admin", "exp": exp}, env.JWTkey)))
	assert.Equal(t, "admin", seen)
}

func TestRedirectIfLoggedIn(t *testing.T) {
	env := newEnv(t)
	w := login(t, env, `{"login":"admin","password":"s3cret-pass"}`)
	cookie := w.Result().Cookies()[0]

	page := env.RedirectIfLoggedIn("/admin/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/login/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	page.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	page.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/login/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	h := limiter.LimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/leads", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	// the port changes per connection but the budget is per host
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000"))
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(0.001, 1)
	limiter.now = func() time.Time { return clock }

	first := limiter.getLimiter("10.0.0.1")
	require.True(t, first.Allow())
	clock = clock.Add(5 * time.Minute)
	limiter.getLimiter("10.0.0.2")

	clock = clock.Add(6 * time.Minute)
	assert.Equal(t, 1, limiter.Sweep(10*time.Minute))
	assert.Len(t, limiter.ips, 1)
	assert.Contains(t, limiter.ips, "10.0.0.2")

	// a returning client gets a fresh budget
	assert.True(t, limiter.getLimiter("10.0.0.1").Allow())
	assert.Zero(t, limiter.Sweep(10*time.Minute))
}

func TestIPRateLimiter_StartCleanup(t *testing.T) {
	var mu sync.Mutex
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(1, 1)
	limiter.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	limiter.getLimiter("10.0.0.1")

	mu.Lock()
	clock = clock.Add(time.Hour)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartCleanup(ctx, 5*time.Millisecond, time.Minute)

	assert.Eventually(t, func() bool {
		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		return len(limiter.ips) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("other")))
}

func TestLogoutHandler(t *testing.T) {
	w := httptest.NewRecorder()
	(&Authenv{}).LogoutHandler(w, httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, w.Result().Cookies(), 1)
	assert.True(t, w.Result().Cookies()[0].MaxAge < 0)
}
