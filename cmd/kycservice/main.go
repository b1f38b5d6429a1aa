package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/louiezhelee-uway/kyc-system/config"
	"github.com/louiezhelee-uway/kyc-system/internal/auth"
	"github.com/louiezhelee-uway/kyc-system/internal/db"
	"github.com/louiezhelee-uway/kyc-system/internal/handlers"
	"github.com/louiezhelee-uway/kyc-system/internal/middleware"
	"github.com/louiezhelee-uway/kyc-system/internal/report"
	"github.com/louiezhelee-uway/kyc-system/internal/sumsub"
	"github.com/louiezhelee-uway/kyc-system/internal/verification"
	"github.com/louiezhelee-uway/kyc-system/logging"
)

func main() {
	logger := logging.GetSugaredLogger()
	defer logger.Sync()

	cfg := config.GetConfig()
	if cfg.SumsubAppToken == "" || cfg.SumsubSecretKey == "" {
		logger.Fatal("SUMSUB_APP_TOKEN and SUMSUB_SECRET_KEY must be configured")
	}

	database, err := db.NewManager(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer database.Close()

	provider := sumsub.NewClient(cfg, logger)
	registry := &report.Registry{Root: cfg.ReportStorageDir}

	reportJobs := make(chan report.Job)
	rm := report.NewManager(reportJobs, database, provider, registry, cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rm.StartReportProcessing(ctx)

	sessions := &verification.SessionManager{
		Database: database,
		Provider: provider,
		Reports:  rm,
		Config:   cfg,
		Logger:   logger,
	}

	authManager := &auth.Manager{
		JWTSecret:    cfg.JWTSecret,
		AdminKeyHash: cfg.AdminKeyHash,
	}

	h := handlers.Handler{
		Database: database,
		Sessions: sessions,
		Registry: registry,
		Auth:     authManager,
		Config:   cfg,
		Logger:   logger,
	}

	r := initRouter(h, authManager)

	err = http.ListenAndServe(cfg.RunAddress, r)
	logger.Fatalw("failed to start server", "error", err)
}

func initRouter(h handlers.Handler, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Post(`/webhook/taobao/order`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.OrderWebhook),
				h.Logger,
				middleware.VerifyWebhookSignature(h.Config.WebhookSecret),
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/webhook/sumsub/verification`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.ProviderWebhook),
				h.Logger,
				middleware.VerifyWebhookSignature(h.Config.WebhookSecret),
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/verify/{token}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.VerificationPage),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/verify/status/{token}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.VerificationStatus),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/verify/refresh-token`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.RefreshToken),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/report/{token}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.ReportView),
				h.Logger,
				middleware.WriteWithCompression,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/report/{token}/files/{filename}`,
		func(w http.ResponseWriter, r *http.Request) {
			h.ReportDownload(w, r)
		},
	)
	r.Post(`/admin/login`,
		func(w http.ResponseWriter, r *http.Request) {
			h.AdminLogin(w, r)
		},
	)
	r.Post(`/admin/orders`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.AdminCreateOrder),
				h.Logger,
				middleware.ValidateAdminAuth(authManager),
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/admin/verifications/{token}/expire`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.AdminExpireVerification),
				h.Logger,
				middleware.ValidateAdminAuth(authManager),
			).ServeHTTP(w, r)
		},
	)
	return r
}
