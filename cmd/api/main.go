package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/buildra/service-onboarding-go/internal/account"
	accountrepo "github.com/buildra/service-onboarding-go/internal/account/repo"
	"github.com/buildra/service-onboarding-go/internal/auth"
	"github.com/buildra/service-onboarding-go/internal/gateway"
	gatewayrepo "github.com/buildra/service-onboarding-go/internal/gateway/repo"
	"github.com/buildra/service-onboarding-go/internal/invitation"
	invitationrepo "github.com/buildra/service-onboarding-go/internal/invitation/repo"
	"github.com/buildra/service-onboarding-go/internal/notification"
	notificationrepo "github.com/buildra/service-onboarding-go/internal/notification/repo"
	"github.com/buildra/service-onboarding-go/internal/router"
	"github.com/buildra/service-onboarding-go/internal/verification"
	verificationrepo "github.com/buildra/service-onboarding-go/internal/verification/repo"
	"github.com/buildra/service-onboarding-go/pkg/database"
	"github.com/buildra/service-onboarding-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-onboarding-go")

	// app db: caller-scoped, subject to the row-level policies
	appDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer appDB.Close()
	app := sqlx.NewDb(appDB, "postgres")

	// elevated db: the policy-gateway role, separate connection on purpose
	elevDB, err := database.Connect(database.ElevatedConfigFromEnv())
	if err != nil {
		sugar.Fatalf("elevated db connect: %v", err)
	}
	defer elevDB.Close()
	elevated := sqlx.NewDb(elevDB, "postgres")

	// optional redis cache for the gateway's display-name lookups
	var cache gateway.NameCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		defer rdb.Close()
		cache = rdb
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repos and dev-mode schema
	invitationRepo := invitationrepo.NewInvitationRepo(app)
	accountRepo := accountrepo.NewAccountRepo(app)
	gatewayRepo := gatewayrepo.NewRepo(elevated)
	queueRepo := verificationrepo.NewQueueRepo(app)
	notificationRepo := notificationrepo.NewNotificationRepo(app)
	if os.Getenv("DB_ENSURE_TABLES") == "1" {
		setupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		for _, ensure := range []func(context.Context) error{
			invitationRepo.EnsureTable,
			accountRepo.EnsureTable,
			gatewayRepo.EnsureTable,
			queueRepo.EnsureTables,
			notificationRepo.EnsureTables,
		} {
			if err := ensure(setupCtx); err != nil {
				cancel()
				sugar.Fatalf("ensure tables: %v", err)
			}
		}
		cancel()
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "service-onboarding"
	}
	tokens, err := auth.NewTokenService(issuer, envDuration("SESSION_TTL", 12*time.Hour))
	if err != nil {
		sugar.Fatalf("token service: %v", err)
	}

	baseURL := os.Getenv("INVITE_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8452"
	}

	gatewaySvc := gateway.NewService(gatewayRepo, cache, sugar)
	invitationSvc := invitation.NewService(invitationRepo, nil, sugar, baseURL)
	provisioner := account.NewProvisioner(invitationSvc, accountRepo, gatewaySvc, tokens, nil, sugar)
	verificationSvc := verification.NewService(queueRepo, gatewaySvc, sugar)
	notificationSvc := notification.NewService(notificationRepo, sugar)

	invitationSvc.StartExpirySweep(ctx,
		envDuration("INVITATION_SWEEP_INTERVAL", time.Hour),
		envDuration("INVITATION_MAX_AGE", 14*24*time.Hour))

	handler := router.RegisterRoutes(sugar, tokens, router.Handlers{
		Invitations:   invitation.NewHandler(invitationSvc, sugar),
		Accounts:      account.NewHandler(provisioner, sugar),
		Verification:  verification.NewHandler(verificationSvc, sugar),
		Notifications: notification.NewHandler(notificationSvc, sugar),
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8452"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Infow("service is running", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
