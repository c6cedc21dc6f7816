package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type contextKey string

const adminKey contextKey = "admin"

const (
	CookieName  = "session_token"
	sessionTTL  = 30 * 24 * time.Hour
	adminRole   = "admin"
	loginMaxLen = 128
)

// Authenv guards the lead inbox. Calculator and catalog routes are public.
type Authenv struct {
	JWTkey            []byte
	AdminLogin        string
	AdminPasswordHash string
	SecureCookie      bool
	Log               *logrus.Logger
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type IPRateLimiter struct {
	ips map[string]*visitor
	mu  sync.Mutex
	r   rate.Limit
	b   int
	now func() time.Time
}

type Loginrequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*visitor),
		r:   r,
		b:   b,
		now: time.Now,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exists := i.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = v
	}
	v.lastSeen = i.now()
	return v.limiter
}

// Sweep forgets clients idle for longer than maxIdle and returns how many
// were removed. A forgotten client starts again with a full burst.
func (i *IPRateLimiter) Sweep(maxIdle time.Duration) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	removed := 0
	for ip, v := range i.ips {
		if v.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps every interval until ctx is done.
func (i *IPRateLimiter) StartCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				i.Sweep(maxIdle)
			}
		}
	}()
}

// ClientIP is the remote host without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Rate limiting middleware
func (i *IPRateLimiter) LimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.getLimiter(ClientIP(r)).Allow() {
			http.Error(w, "Too Many Requests. Try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (env *Authenv) enabled() bool {
	return len(env.JWTkey) > 0 && env.AdminPasswordHash != ""
}

func (env *Authenv) parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return env.JWTkey, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if role, _ := claims["role"].(string); role != adminRole {
		return "", jwt.ErrTokenInvalidClaims
	}
	login, _ := claims["login"].(string)
	if login == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return login, nil
}

func (env *Authenv) RedirectIfLoggedIn(target string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err == nil && env.enabled() {
			if _, err := env.parse(cookie.Value); err == nil {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware admits requests carrying a valid admin session cookie.
func (env *Authenv) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !env.enabled() {
			http.Error(w, "Admin access disabled", http.StatusServiceUnavailable)
			return
		}
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		login, err := env.parse(cookie.Value)
		if err != nil {
			if env.Log != nil {
				env.Log.Debugf("rejected session token: %v", err)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), adminKey, login)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func AdminFromContext(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(adminKey).(string)
	return login, ok && login != ""
}

func (env *Authenv) addCookie(w http.ResponseWriter, login string) error {
	expiration := time.Now().Add(sessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"login": login,
		"role":  adminRole,
		"exp":   expiration.Unix(),
	})
	tokenString, err := token.SignedString(env.JWTkey)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Expires:  expiration,
		Path:     "/",
		HttpOnly: true,
		Secure:   env.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

var errBadCredentials = errors.New("invalid login or password")

func (env *Authenv) checkCredentials(login, password string) error {
	if subtle.ConstantTimeCompare([]byte(login), []byte(env.AdminLogin)) != 1 {
		// keep timing similar to a wrong password
		bcrypt.CompareHashAndPassword([]byte(env.AdminPasswordHash), []byte(password))
		return errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(env.AdminPasswordHash), []byte(password)); err != nil {
		return errBadCredentials
	}
	return nil
}

func (env *Authenv) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !env.enabled() {
		http.Error(w, "Admin access disabled", http.StatusServiceUnavailable)
		return
	}
	var req Loginrequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" || len(req.Login) > loginMaxLen {
		http.Error(w, "Login and password required", http.StatusBadRequest)
		return
	}
	if err := env.checkCredentials(req.Login, req.Password); err != nil {
		if env.Log != nil {
			env.Log.WithField("ip", ClientIP(r)).Warn("failed admin login")
		}
		http.Error(w, "Invalid login or password", http.StatusUnauthorized)
		return
	}
	if err := env.addCookie(w, req.Login); err != nil {
		if env.Log != nil {
			env.Log.Errorf("sign session token: %v", err)
		}
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Authentication successful"))
}

func (env *Authenv) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   env.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
