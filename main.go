package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "restaurant-ops/internal/api/http"
	"restaurant-ops/internal/audit"
	"restaurant-ops/internal/auth"
	equipmentapp "restaurant-ops/internal/equipment/application"
	equipmentrepo "restaurant-ops/internal/equipment/infrastructure/postgres"
	equipmenthttp "restaurant-ops/internal/equipment/interfaces/http"
	equipmentnotify "restaurant-ops/internal/equipment/notify"
	"restaurant-ops/internal/eventing"
	firmwareapp "restaurant-ops/internal/firmware/application"
	firmwarerepo "restaurant-ops/internal/firmware/infrastructure/postgres"
	firmwarehttp "restaurant-ops/internal/firmware/interfaces/http"
	franchiseapp "restaurant-ops/internal/franchise/application"
	franchiserepo "restaurant-ops/internal/franchise/infrastructure/postgres"
	franchisehttp "restaurant-ops/internal/franchise/interfaces/http"
	"restaurant-ops/internal/gateway"
	identityapp "restaurant-ops/internal/identity/application"
	identityrepo "restaurant-ops/internal/identity/infrastructure/postgres"
	identityhttp "restaurant-ops/internal/identity/interfaces/http"
	locationsapp "restaurant-ops/internal/locations/application"
	locationsrepo "restaurant-ops/internal/locations/infrastructure/postgres"
	locationshttp "restaurant-ops/internal/locations/interfaces/http"
	"restaurant-ops/internal/observability/metrics"
	reportsapp "restaurant-ops/internal/reports/application"
	reportsrepo "restaurant-ops/internal/reports/infrastructure/postgres"
	reportshttp "restaurant-ops/internal/reports/interfaces/http"
	reportsnotify "restaurant-ops/internal/reports/notify"
	soprepo "restaurant-ops/internal/sop/infrastructure/postgres"
	sophttp "restaurant-ops/internal/sop/interfaces/http"
	"restaurant-ops/internal/statestore"
	trainingapp "restaurant-ops/internal/training/application"
	trainingrepo "restaurant-ops/internal/training/infrastructure/postgres"
	traininghttp "restaurant-ops/internal/training/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	restaurantChecker := auth.NewRestaurantChecker(db)
	auditRepo := audit.NewRepository(db)
	bus := eventing.NewBus()
	states := statestore.New()

	userRepo := identityrepo.NewUserRepository(db)
	sessionRepo := identityrepo.NewSessionRepository(db)
	restaurantRepo := locationsrepo.NewRestaurantRepository(db)
	locSessionRepo := locationsrepo.NewLocationSessionRepository(db)

	loginService, err := identityapp.NewLoginService(
		userRepo,
		sessionRepo,
		locSessionRepo,
		auditRepo,
		logger,
		identityapp.WithJWT([]byte(cfg.JWTSecret), cfg.JWTTTL),
	)
	if err != nil {
		logger.Fatalf("login service error: %v", err)
	}
	authHandler, err := identityhttp.NewHandler(loginService, cfg.SecureCookies)
	if err != nil {
		logger.Fatalf("auth handler error: %v", err)
	}

	bindingService, err := locationsapp.NewBindingService(restaurantRepo, locSessionRepo, auditRepo)
	if err != nil {
		logger.Fatalf("binding service error: %v", err)
	}
	locationsHandler, err := locationshttp.NewHandler(restaurantRepo, bindingService)
	if err != nil {
		logger.Fatalf("locations handler error: %v", err)
	}

	equipmentRepo := equipmentrepo.NewEquipmentRepository(db)
	telemetryRepo := equipmentrepo.NewTelemetryRepository(db)
	maintenanceRepo := equipmentrepo.NewMaintenanceRepository(db)

	monitorOpts := []equipmentapp.MonitorOption{equipmentapp.WithBus(bus)}
	if cfg.AlertWebhookURL != "" {
		webhook, err := equipmentnotify.NewWebhookNotifier(cfg.AlertWebhookURL, logger)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		monitorOpts = append(monitorOpts, equipmentapp.WithNotifier(equipmentnotify.NewMultiNotifier(logger, webhook)))
	}
	monitorService, err := equipmentapp.NewMonitorService(equipmentRepo, telemetryRepo, maintenanceRepo, states, logger, monitorOpts...)
	if err != nil {
		logger.Fatalf("monitor service error: %v", err)
	}
	maintenanceService, err := equipmentapp.NewMaintenanceService(equipmentRepo, maintenanceRepo, logger)
	if err != nil {
		logger.Fatalf("maintenance service error: %v", err)
	}
	equipmentHandler, err := equipmenthttp.NewHandler(equipmentRepo, telemetryRepo, maintenanceRepo, maintenanceService, states)
	if err != nil {
		logger.Fatalf("equipment handler error: %v", err)
	}
	ingestHandler, err := equipmenthttp.NewIngestHandler(monitorService)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	streamHandler := equipmenthttp.NewStreamHandler(bus, logger)

	sweeper := equipmentapp.NewSweeper(monitorService, maintenanceRepo, equipmentRepo, logger)
	go sweeper.Run(context.Background())

	gatewayClient, err := gateway.NewClient(cfg.GatewayURL, cfg.GatewayToken)
	if err != nil {
		logger.Fatalf("gateway client error: %v", err)
	}
	firmwareService, err := firmwareapp.NewService(
		firmwarerepo.NewUpdateRepository(db),
		equipmentRepo,
		gatewayClient,
		logger,
		firmwareapp.WithBus(bus),
		firmwareapp.WithAudit(auditRepo),
	)
	if err != nil {
		logger.Fatalf("firmware service error: %v", err)
	}
	firmwareHandler, err := firmwarehttp.NewHandler(firmwareService)
	if err != nil {
		logger.Fatalf("firmware handler error: %v", err)
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for tick := range ticker.C {
			cutoff := tick.UTC().Add(-cfg.FirmwareAckTimeout)
			if _, err := firmwareService.MarkTimeouts(context.Background(), cutoff); err != nil {
				logger.Printf("firmware timeout sweep error: %v", err)
			}
		}
	}()

	sopHandler, err := sophttp.NewHandler(soprepo.NewCategoryRepository(db), soprepo.NewDocumentRepository(db))
	if err != nil {
		logger.Fatalf("sop handler error: %v", err)
	}

	progressRepo := trainingrepo.NewProgressRepository(db)
	trainingService, err := trainingapp.NewService(progressRepo, logger)
	if err != nil {
		logger.Fatalf("training service error: %v", err)
	}
	trainingHandler, err := traininghttp.NewHandler(trainingService)
	if err != nil {
		logger.Fatalf("training handler error: %v", err)
	}

	franchiseRepo := franchiserepo.NewFranchiseRepository(db)
	statementService, err := franchiseapp.NewStatementService(franchiseRepo, franchiserepo.NewStatementRepository(db))
	if err != nil {
		logger.Fatalf("statement service error: %v", err)
	}
	franchiseHandler, err := franchisehttp.NewHandler(franchiseRepo, statementService, auditRepo)
	if err != nil {
		logger.Fatalf("franchise handler error: %v", err)
	}

	reportsCfg, err := reportsapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reports config error: %v", err)
	}
	var reportNotifier reportsnotify.Notifier
	if reportsCfg.WebhookURL != "" {
		webhook, err := reportsnotify.NewWebhookNotifier(reportsCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("report webhook error: %v", err)
		}
		reportNotifier = webhook
	}
	reportIndex := reportsrepo.NewRepository(db)
	reportRunner, err := reportsapp.NewRunner(
		reportIndex,
		equipmentRepo,
		telemetryRepo,
		maintenanceRepo,
		progressRepo,
		reportsCfg,
		reportNotifier,
		bus,
		logger,
	)
	if err != nil {
		logger.Fatalf("report runner error: %v", err)
	}
	reportsHandler, err := reportshttp.NewHandler(reportRunner, reportIndex)
	if err != nil {
		logger.Fatalf("reports handler error: %v", err)
	}
	reportScheduler := reportsapp.NewScheduler(reportRunner, cfg.TenantID, reportsCfg.Schedule.Restaurants, reportsCfg.Schedule.DailyAt, logger)
	go reportScheduler.Start(context.Background())

	auditHandler, err := audit.NewListHandler(auditRepo)
	if err != nil {
		logger.Fatalf("audit handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/v1/auth/staff-login", "/api/v1/auth/login", "/api/v1/firmware/results"},
		[]string{"/ingest/"},
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, loginService)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/equipment/telemetry", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/auth/staff-login", authHandler)
	mux.Handle("/api/v1/auth/login", authHandler)
	mux.Handle("/api/v1/auth/me", authHandler)
	mux.Handle("/api/v1/auth/logout", authHandler)
	mux.Handle("/api/v1/locations/bind", locationsHandler)
	mux.Handle("/api/v1/restaurants", locationsHandler)
	mux.Handle("/api/v1/restaurants/", locationsHandler)
	mux.Handle("/api/v1/provisioning/equipment", equipmentHandler)
	mux.Handle("/api/v1/equipment", equipmentHandler)
	mux.Handle("/api/v1/equipment/", equipmentHandler)
	mux.Handle("/api/v1/equipment/status", equipmentHandler)
	mux.Handle("/api/v1/maintenance", equipmentHandler)
	mux.Handle("/api/v1/maintenance/", equipmentHandler)
	mux.Handle("/api/v1/alerts/stream", streamHandler)
	mux.Handle("/api/v1/firmware/updates", firmwareHandler)
	mux.Handle("/api/v1/firmware/results", ingestAuth.Wrap(firmwareHandler))
	mux.Handle("/api/v1/sop/categories", sopHandler)
	mux.Handle("/api/v1/sop/categories/", sopHandler)
	mux.Handle("/api/v1/sop/documents", sopHandler)
	mux.Handle("/api/v1/sop/documents/", sopHandler)
	mux.Handle("/api/v1/training/progress", trainingHandler)
	mux.Handle("/api/v1/training/summary", trainingHandler)
	mux.Handle("/api/v1/exports/training.xlsx", trainingHandler)
	mux.Handle("/api/v1/franchises", franchiseHandler)
	mux.Handle("/api/v1/franchises/", franchiseHandler)
	mux.Handle("/api/v1/royalties/calculate", franchiseHandler)
	mux.Handle("/api/v1/statements", franchiseHandler)
	mux.Handle("/api/v1/statements/", franchiseHandler)
	mux.Handle("/api/v1/statements/generate", franchiseHandler)
	mux.Handle("/api/v1/reports", reportsHandler)
	mux.Handle("/api/v1/reports/", reportsHandler)
	mux.Handle("/api/v1/reports/run", reportsHandler)
	mux.Handle("/api/v1/audit", auditHandler)
	mux.Handle("/api/v1/dashboard", apihttp.NewDashboardHandler(db, restaurantChecker))
	mux.Handle("/api/v1/stats/telemetry", apihttp.NewTelemetryStatsHandler(db))
	mux.Handle("/api/v1/exports/telemetry.csv", apihttp.NewExportTelemetryCSVHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	TenantID           string
	JWTSecret          string
	JWTTTL             time.Duration
	SecureCookies      bool
	IngestSecret       string
	IngestSkewSeconds  int
	GatewayURL         string
	GatewayToken       string
	AlertWebhookURL    string
	FirmwareAckTimeout time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:           getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		JWTTTL:             getenvDuration("AUTH_JWT_TTL", 12*time.Hour),
		SecureCookies:      getenvDefault("ENV", "") == "production",
		IngestSecret:       getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds:  getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		GatewayURL:         getenvDefault("GATEWAY_URL", ""),
		GatewayToken:       getenvDefault("GATEWAY_TOKEN", ""),
		AlertWebhookURL:    getenvDefault("ALERT_WEBHOOK_URL", ""),
		FirmwareAckTimeout: getenvDuration("FIRMWARE_ACK_TIMEOUT", 5*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.IngestSecret == "" {
		log.Fatal("INGEST_HMAC_SECRET is required")
	}
	if cfg.GatewayURL == "" {
		log.Fatal("GATEWAY_URL is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
