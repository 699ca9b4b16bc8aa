package main

import (
	"log"

	_ "github.com/fabiodmueller-cmd/CASSINO/api/swagger" // swagger docs
	"github.com/fabiodmueller-cmd/CASSINO/internal/config"
	"github.com/fabiodmueller-cmd/CASSINO/internal/database"
	"github.com/fabiodmueller-cmd/CASSINO/internal/handler"
	"github.com/fabiodmueller-cmd/CASSINO/internal/metrics"
	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Slot Settlement API
// @version         1.0
// @description     Meter readings, commission settlement and reports for slot machines placed at client venues.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	metrics.Init()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Repositories
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	clientRepo := repository.NewClientRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	regionRepo := repository.NewRegionRepository(db)
	machineRepo := repository.NewMachineRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	readingRepo := repository.NewReadingRepository(db)

	// Services
	userService := service.NewUserService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	auditService := service.NewAuditService(auditRepo)
	clientService := service.NewClientService(clientRepo, auditRepo, txManager)
	operatorService := service.NewOperatorService(operatorRepo, auditRepo, txManager)
	regionService := service.NewRegionService(regionRepo, auditRepo, txManager)
	machineService := service.NewMachineService(machineRepo, clientRepo, regionRepo, operatorRepo, auditRepo, txManager)
	linkService := service.NewLinkService(linkRepo, clientRepo, operatorRepo, auditRepo, txManager)
	resolver := service.NewLinkResolver(linkRepo, operatorRepo)
	readingService := service.NewReadingService(readingRepo, machineRepo, clientRepo, operatorRepo, resolver, auditRepo, txManager, wsHub)
	reportService := service.NewReportService(readingRepo, machineRepo, clientRepo, regionRepo, operatorRepo)
	backupService := service.NewBackupService(clientRepo, operatorRepo, regionRepo, machineRepo, linkRepo, readingRepo, auditRepo, txManager)

	// Handlers
	userHandler := handler.NewUserHandler(userService, cfg.TokenTTL, cfg.SecureCookies())
	protectedHandlers := []interface {
		RegisterRoutes(router *gin.RouterGroup)
	}{
		handler.NewAuditHandler(auditService),
		handler.NewClientHandler(clientService),
		handler.NewOperatorHandler(operatorService),
		handler.NewRegionHandler(regionService),
		handler.NewMachineHandler(machineService),
		handler.NewLinkHandler(linkService),
		handler.NewReadingHandler(readingService),
		handler.NewReportHandler(reportService),
		handler.NewBackupHandler(backupService),
	}

	// Set up Gin Router
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, cfg.JWTSecret)
	})

	requireAuth := middleware.RequireAuth(cfg.JWTSecret)
	api := router.Group("/api")
	userHandler.RegisterRoutes(api, requireAuth)

	protected := api.Group("", requireAuth)
	for _, h := range protectedHandlers {
		h.RegisterRoutes(protected)
	}

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
