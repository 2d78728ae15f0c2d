package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oscar-gateway/internal/auth"
	"oscar-gateway/internal/config"
	"oscar-gateway/internal/crypto"
	"oscar-gateway/internal/server"
	"oscar-gateway/internal/service"
	storage_gorm "oscar-gateway/internal/storage/gorm"
	"oscar-gateway/internal/upstream"

	"github.com/robfig/cron/v3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Клиенты апстримов ---
	newClient := func(name, baseURL string) *upstream.Client {
		if baseURL == "" {
			log.Printf("Upstream %s is not configured; its routes will fail", name)
		}
		return upstream.NewClient(upstream.Config{
			Name:      name,
			BaseURL:   baseURL,
			APIKey:    cfg.Upstream.APIKey,
			VerifyTLS: !cfg.Upstream.SkipTLSVerify,
			Timeout:   cfg.Upstream.Timeout,
		})
	}
	middlewareClient := newClient("middleware", cfg.Upstream.MiddlewareURL)
	inventoryClient := newClient("inventory", cfg.Upstream.InventoryURL)
	mappingClient := newClient("mapping", cfg.Upstream.MappingURL)

	// --- Сессии и доступ ---
	encryptor, err := crypto.FromSecret(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}
	if cfg.Security.EncryptionKey == "" {
		log.Println("Encryption key is not set. Session login is disabled.")
	}
	sessions := auth.NewSessionCodec(encryptor, cfg.Auth.SessionTTL, !cfg.Auth.InsecureCookie)

	var provider *auth.Provider
	if cfg.Auth.Configured() {
		provider = auth.NewProvider(auth.ProviderConfig{
			Issuer:       cfg.Auth.Issuer,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			RedirectURL:  cfg.Auth.RedirectURL,
		}, middlewareClient.HTTPClient())
	} else {
		log.Println("Identity provider is not configured. Only bearer-token callers are accepted.")
	}

	acl, err := auth.NewACL()
	if err != nil {
		log.Fatalf("Failed to load access policy: %v", err)
	}
	searcher, err := service.NewSearcher()
	if err != nil {
		log.Fatalf("Failed to load search index: %v", err)
	}

	// --- Журнал аудита ---
	var auditService *service.AuditService
	if cfg.Audit.DSN != "" {
		db, err := storage_gorm.Open(cfg.Audit.DSN)
		if err != nil {
			log.Fatalf("Failed to open audit database: %v", err)
		}

		auditRepo, err := storage_gorm.NewGormAuditRepository(db)
		if err != nil {
			log.Fatalf("Failed to create audit repository: %v", err)
		}
		auditService = service.NewAuditService(auditRepo)

		// --- Фоновая очистка журнала ---
		if cfg.Audit.PruneSchedule != "" && cfg.Audit.Retention > 0 {
			scheduler := cron.New()
			_, err := scheduler.AddFunc(cfg.Audit.PruneSchedule, func() {
				pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				if _, err := auditService.Prune(pruneCtx, cfg.Audit.Retention); err != nil {
					log.Printf("Failed to prune audit journal: %v", err)
				}
			})
			if err != nil {
				log.Fatalf("Failed to schedule audit pruning: %v", err)
			}
			scheduler.Start()
			defer scheduler.Stop()
		}
	} else {
		log.Println("Audit DSN is not set. Audit journal is disabled.")
	}

	// --- Запуск сервера ---
	srv := server.New(cfg, server.Dependencies{
		Middleware: middlewareClient,
		Inventory:  inventoryClient,
		Mapping:    mappingClient,
		Sessions:   sessions,
		Provider:   provider,
		ACL:        acl,
		Audit:      auditService,
		Searcher:   searcher,
	})
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("OSCAR gateway stopped.")
}
