// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"maproom-service/internal/config"
	"maproom-service/internal/db"
	authHandler "maproom-service/internal/handlers/auth"
	exportHandler "maproom-service/internal/handlers/export"
	liveHandler "maproom-service/internal/handlers/livesession"
	membershipHandler "maproom-service/internal/handlers/membership"
	notifyH "maproom-service/internal/handlers/notification"
	orgHandler "maproom-service/internal/handlers/organization"
	planHandler "maproom-service/internal/handlers/plans"
	quotaHandler "maproom-service/internal/handlers/quota"
	wsHandler "maproom-service/internal/handlers/websocket"
	"maproom-service/internal/livesession"
	"maproom-service/internal/middleware"
	"maproom-service/internal/pkg/jwt"
	"maproom-service/internal/pkg/session"
	"maproom-service/internal/repository/postgres"
	authUsecase "maproom-service/internal/service/auth"
	exportUsecase "maproom-service/internal/service/export"
	membershipUsecase "maproom-service/internal/service/membership"
	notifyUsecase "maproom-service/internal/service/notification"
	orgadminUsecase "maproom-service/internal/service/orgadmin"
	planUsecase "maproom-service/internal/service/plans"
	quotaUsecase "maproom-service/internal/service/quota"
	"maproom-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	cancel context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := postgres.Connect(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- JWT / Sessions -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(jwtManager, sessionManager, logger)
	go hub.Run(ctx)

	// ----- Live Session Store -----
	liveStore := livesession.NewStore(s.cfg.LiveSessionTTL, logger)
	go liveStore.Run(ctx)

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	authRepo := postgres.NewAuthRepository(pool)
	planRepo := postgres.NewPlanRepository(pool)
	membershipRepo := postgres.NewMembershipRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	addonRepo := postgres.NewAddonRepository(pool)
	orgRepo := postgres.NewOrganizationRepository(pool)
	exportRepo := postgres.NewExportRepository(pool)
	notifyRepo := postgres.NewNotificationRepository(pool)

	// ----- Services -----
	authService := authUsecase.NewAuthService(
		authRepo,
		jwtManager,
		sessionManager,
		rateLimiter,
		s.cfg.JWT.TTL,
		logger,
	)
	notifService := notifyUsecase.NewNotificationService(notifyRepo, hub, logger)
	planService := planUsecase.NewPlanService(planRepo, redisClient, logger)

	// quota checks resolve plans through the plan service so they ride its cache
	quotaService := quotaUsecase.NewQuotaService(
		membershipRepo,
		planService,
		usageRepo,
		addonRepo,
		notifService,
		s.cfg.QuotaWarningThreshold,
		logger,
	)
	membershipService := membershipUsecase.NewMembershipService(
		membershipRepo,
		planRepo,
		addonRepo,
		usageRepo,
		dbWrapper,
		logger,
	)
	orgAdminService := orgadminUsecase.NewOrgAdminService(
		orgRepo,
		membershipRepo,
		usageRepo,
		addonRepo,
		planRepo,
		logger,
	)
	exportService := exportUsecase.NewExportService(
		exportRepo,
		quotaService,
		notifService,
		logger,
	)

	// ----- Background sweeps -----
	go s.runSweeps(ctx, quotaService, membershipService)

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService)
	planHandlerInst := planHandler.NewPlanHandler(planService)
	quotaHandlerInst := quotaHandler.NewQuotaHandler(quotaService)
	membershipHandlerInst := membershipHandler.NewMembershipHandler(membershipService)
	orgHandlerInst := orgHandler.NewOrganizationHandler(orgAdminService)
	exportHandlerInst := exportHandler.NewExportHandler(exportService, orgAdminService)
	notifHandlerInst := notifyH.NewNotificationHandler(notifService)
	liveHandlerInst := liveHandler.NewLiveSessionHandler(liveStore, hub)
	wsHandlerInst := wsHandler.NewWebSocketHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:        authHandlerInst,
		PlanHandler:        planHandlerInst,
		QuotaHandler:       quotaHandlerInst,
		MembershipHandler:  membershipHandlerInst,
		OrgHandler:         orgHandlerInst,
		ExportHandler:      exportHandlerInst,
		NotifHandler:       notifHandlerInst,
		LiveSessionHandler: liveHandlerInst,
		WSHandler:          wsHandlerInst,
		AuthMiddleware:     authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Stop cancels the background goroutines (hub, janitor, sweeps)
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// runSweeps periodically expires overdue memberships and emits quota
// warnings. Both sweeps tolerate failure; they retry on the next tick.
func (s *Server) runSweeps(ctx context.Context, quotaService *quotaUsecase.QuotaService, membershipService *membershipUsecase.MembershipService) {
	ticker := time.NewTicker(s.cfg.QuotaSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := membershipService.ExpireOverdueMemberships(ctx); err != nil {
				s.logger.Error("membership expiry sweep failed", zap.Error(err))
			}
			if err := quotaService.CheckAndNotifyQuotaWarnings(ctx); err != nil {
				s.logger.Error("quota warning sweep failed", zap.Error(err))
			}
		}
	}
}
