package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"github.com/xivicWon/ssh-monitor/internal/broker"
	"github.com/xivicWon/ssh-monitor/internal/config"
	"github.com/xivicWon/ssh-monitor/internal/database"
	"github.com/xivicWon/ssh-monitor/internal/handlers"
	"github.com/xivicWon/ssh-monitor/internal/logging"
	"github.com/xivicWon/ssh-monitor/internal/sshaudit"
	"github.com/xivicWon/ssh-monitor/internal/sshinfo"
	"github.com/xivicWon/ssh-monitor/internal/sshkeys"
	"github.com/xivicWon/ssh-monitor/internal/sshproxy"
	"github.com/xivicWon/ssh-monitor/internal/sshterminal"
)

func main() {
	config.Load()
	logging.Init()
	defer logging.Close()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	sshaudit.InitGlobal(database.DB, config.Cfg.AuditRetentionDays)
	jobs := cron.New()
	if _, err := jobs.AddFunc("@daily", purgeAuditLogs); err != nil {
		log.Fatalf("Schedule audit purge: %v", err)
	}
	jobs.Start()
	log.Printf("Audit trail initialized (retention=%d days)", config.Cfg.AuditRetentionDays)

	hostKeyCallback, err := sshkeys.HostKeyCallback(config.Cfg.KnownHostsPath)
	if err != nil {
		log.Fatalf("SSH host keys: %v", err)
	}
	dialer := sshproxy.NewDialer(config.Cfg.ConnectionTimeout, hostKeyCallback)
	dialer.KeepaliveInterval = config.Cfg.KeepaliveInterval
	if dialer.KeepaliveInterval <= 0 {
		dialer.KeepaliveInterval = -1
	}

	b := broker.New(broker.Config{
		MessageRate:  config.Cfg.MessageRate,
		MessageBurst: config.Cfg.MessageBurst,
	})

	termMgr := sshterminal.NewManager(sshterminal.Config{
		MaxSessions:    config.Cfg.MaxSessions,
		ConnectTimeout: config.Cfg.ConnectionTimeout,
		SessionTimeout: config.Cfg.SessionTimeout,
		BufferSize:     config.Cfg.BufferSize,
		ExpiryInterval: config.Cfg.ExpiryInterval,
		HealthInterval: config.Cfg.HealthInterval,
		CommandTimeout: config.Cfg.CommandTimeout,
	}, sshterminal.SSHDialer(dialer), b)
	termMgr.Start()
	log.Printf("Terminal session manager initialized (max=%d, session_timeout=%s)",
		config.Cfg.MaxSessions, config.Cfg.SessionTimeout)

	handlers.Broker = b
	handlers.TermMgr = termMgr
	handlers.Tracker = handlers.NewSessionTracker(termMgr.Cleanup)
	handlers.InfoSvc = sshinfo.New(dialer, config.Cfg.CommandTimeout)
	handlers.AllowedOrigins = config.Cfg.AllowedOrigins
	handlers.RegisterTerminalDestinations()

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(config.Cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.HealthCheck)
	r.Get("/ws/terminal", handlers.TerminalWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/connections/validate", handlers.ValidateConnection)
		r.Post("/connections/info", handlers.GetConnectionInfo)
		r.Post("/frontend-logs", handlers.ReceiveFrontendLogs)

		r.Get("/sessions", handlers.ListSessions)
		r.Delete("/sessions/{sessionId}", handlers.CloseSession)

		r.Get("/audit", handlers.GetAuditLogs)
		r.Post("/audit/purge", handlers.PurgeAuditLogs)
		r.Get("/server-logs", handlers.GetServerLogs)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	<-jobs.Stop().Done()
	termMgr.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// purgeAuditLogs drops audit entries past the configured retention.
func purgeAuditLogs() {
	a := sshaudit.GetAuditor()
	if a == nil {
		return
	}
	if _, err := a.PurgeOlderThan(0); err != nil {
		log.Printf("[ssh-audit] scheduled purge failed: %v", err)
	}
}

// corsOrigins maps the WebSocket origin patterns onto CORS origins. With no
// patterns configured every origin is allowed.
func corsOrigins(patterns []string) []string {
	if len(patterns) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, "http://"+p, "https://"+p)
	}
	return out
}
