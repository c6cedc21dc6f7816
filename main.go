package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"Voltaris/internal/auth"
	"Voltaris/internal/calc/batch"
	"Voltaris/internal/calc/cable"
	"Voltaris/internal/calc/importer"
	"Voltaris/internal/calc/power"
	"Voltaris/internal/calc/report"
	"Voltaris/internal/calc/voltagedrop"
	"Voltaris/internal/catalog"
	"Voltaris/internal/config"
	"Voltaris/internal/leads"
	"Voltaris/internal/notify"
	"Voltaris/internal/repo"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var wg sync.WaitGroup

const (
	limiterSweepInterval = time.Minute
	limiterMaxIdle       = 10 * time.Minute
)

func CORS(mux *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
				"remote":   auth.ClientIP(r),
			}).Info("request")
		})
	}
}

type deps struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *repo.SQLRepository
	notifier notify.Notifier
	power    *power.Calculator
	drop     *voltagedrop.Calculator
	limiter  *auth.IPRateLimiter
}

func HandleList(m *mux.Router, d deps) {
	authEnv := &auth.Authenv{
		JWTkey:            []byte(d.cfg.Auth.TokenKey),
		AdminLogin:        d.cfg.Auth.AdminLogin,
		AdminPasswordHash: d.cfg.Auth.AdminPasswordHash,
		SecureCookie:      d.cfg.Server.TLSCert != "",
		Log:               d.log,
	}

	m.Use(requestLogger(d.log))

	api := m.PathPrefix("/api").Subrouter()
	api.Use(d.limiter.LimitMiddleware)

	powerH := &power.Handler{Calculator: d.power}
	dropH := &voltagedrop.Handler{Calculator: d.drop}
	cableH := &cable.Handler{Calculator: d.drop}
	batchH := &batch.Handler{Calculator: &batch.Calculator{Power: d.power, VoltageDrop: d.drop}}
	importH := &importer.Handler{Power: d.power, VoltageDrop: d.drop, Log: d.log}
	reportH := &report.Handler{Power: d.power, VoltageDrop: d.drop, Log: d.log}

	tools := api.PathPrefix("/tools").Subrouter()
	tools.HandleFunc("/power/calc", powerH.Calc).Methods("POST")
	tools.HandleFunc("/voltage-drop/calc", dropH.Calc).Methods("POST")
	tools.HandleFunc("/cable/recommend", cableH.Recommend).Methods("POST")
	tools.HandleFunc("/batch/calc", batchH.Calc).Methods("POST")
	tools.HandleFunc("/import/voltage-drop", importH.VoltageDropSheet).Methods("POST")
	tools.HandleFunc("/import/power", importH.PowerSheet).Methods("POST")
	tools.HandleFunc("/report/pdf", reportH.Generate).Methods("POST")
	tools.HandleFunc("/disclaimer", report.DisclaimerHandler).Methods("GET")

	catalogH := &catalog.Handler{Repo: d.store, Log: d.log}
	api.HandleFunc("/catalog/products", catalogH.List).Methods("GET")
	api.HandleFunc("/catalog/products/{slug}", catalogH.Get).Methods("GET")

	leadsH := &leads.Handler{Repo: d.store, Notifier: d.notifier, UploadDir: d.cfg.Server.UploadDir, Log: d.log}
	api.HandleFunc("/leads", leadsH.Submit).Methods("POST")

	api.HandleFunc("/admin/login", authEnv.LoginHandler).Methods("POST")
	api.HandleFunc("/admin/logout", authEnv.LogoutHandler).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authEnv.AuthMiddleware)
	admin.HandleFunc("/leads", leadsH.List).Methods("GET")
	admin.HandleFunc("/leads/export", leadsH.Export).Methods("GET")
	admin.HandleFunc("/leads/{id:[0-9]+}", leadsH.Get).Methods("GET")
	admin.HandleFunc("/leads/{id:[0-9]+}", leadsH.UpdateStatus).Methods("PATCH")

	static := d.cfg.Server.StaticDir
	m.PathPrefix("/uploads/").
		Handler(authEnv.AuthMiddleware(http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.cfg.Server.UploadDir)))))
	m.PathPrefix("/admin/login/").
		Handler(authEnv.RedirectIfLoggedIn("/admin/", http.StripPrefix("/admin", http.FileServer(http.Dir(filepath.Join(static, "admin"))))))
	m.PathPrefix("/admin/").
		Handler(authEnv.AuthMiddleware(http.StripPrefix("/admin", http.FileServer(http.Dir(filepath.Join(static, "admin"))))))
	m.PathPrefix("/").
		Handler(http.FileServer(http.Dir(filepath.Join(static, "main"))))
}

func buildNotifier(cfg *config.Config, logger *logrus.Logger) (notify.Notifier, func()) {
	var out notify.Multi
	cleanup := func() {}

	if tg := notify.NewTelegram(cfg.Telegram, logger); tg.Enabled() {
		out = append(out, tg)
		logger.Info("Telegram lead notifications enabled")
	}
	if cfg.MQTT.Broker != "" {
		mq := notify.NewMQTT(cfg.MQTT, logger)
		if err := mq.Connect(5 * time.Second); err != nil {
			logger.Errorf("MQTT notifications disabled: %v", err)
		} else {
			out = append(out, mq)
			cleanup = mq.Disconnect
		}
	}
	return out, cleanup
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Unknown log level %q, using info", cfg.Server.LogLevel)
	}
	if cfg.Auth.TokenKey == "" {
		logger.Warn("TOKEN_KEY is not set, admin inbox disabled")
	}

	powerCalc, err := power.NewCalculator(cfg.Calc.PowerPolicy())
	if err != nil {
		logger.Fatalf("Invalid power sizing policy: %v", err)
	}
	dropCalc, err := voltagedrop.NewCalculator(cfg.Calc.VoltageDropPolicy())
	if err != nil {
		logger.Fatalf("Invalid voltage drop policy: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repo.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	notifier, closeNotifier := buildNotifier(cfg, logger)
	defer closeNotifier()

	limiter := auth.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	limiter.StartCleanup(ctx, limiterSweepInterval, limiterMaxIdle)

	m := mux.NewRouter()
	HandleList(m, deps{
		cfg:      cfg,
		log:      logger,
		store:    repo.NewSQLRepository(db),
		notifier: notifier,
		power:    powerCalc,
		drop:     dropCalc,
		limiter:  limiter,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           CORS(m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Infof("Starting server on %s", cfg.Server.Addr)
		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, closing active connections")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	wg.Wait()
	logger.Info("Server stopped")
}
