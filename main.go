package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"dredd-service/internal/cache"
	"dredd-service/internal/config"
	"dredd-service/internal/database"
	"dredd-service/internal/handlers"
	"dredd-service/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := cache.NewClient(cfg.Redis)
	transient := cache.NewTransient(redisClient)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Init Services
	creditService := services.NewCreditService(db)
	validationService := services.NewValidationService(cfg.Pricing)
	priceService := services.NewPriceService(cfg.Chains, transient)

	stripeService := services.NewStripeService(db, creditService, cfg.Stripe, asynqClient)
	nowPaymentsService := services.NewNOWPaymentsService(db, creditService, cfg.NOWPayments, asynqClient)
	chainPaymentService := services.NewChainPaymentService(db, creditService, priceService, cfg.Chains, redisClient, asynqClient)
	paymentService := services.NewPaymentService(db, validationService, stripeService, nowPaymentsService, chainPaymentService, cfg.Chains)

	n8nClient := services.NewN8NClient(cfg.N8N)
	analysisService := services.NewAnalysisService(db, creditService, n8nClient, cfg.Pricing, cfg.Retention)
	promotionService := services.NewPromotionService(db)
	userService := services.NewUserService(db, transient, asynqClient)
	dashboardService := services.NewDashboardService(db, creditService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, chainPaymentService, nowPaymentsService)
	webhookHandler := handlers.NewWebhookHandler(stripeService, nowPaymentsService)
	chatHandler := handlers.NewChatHandler(analysisService)
	promotionHandler := handlers.NewPromotionHandler(promotionService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, creditService)

	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Judge Dredd token analysis service",
		})
	})

	// Public
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/forgot-password", authHandler.ForgotPassword)
	r.POST("/api/auth/reset-password", authHandler.ResetPassword)
	r.GET("/api/promotions", promotionHandler.ListActive)
	r.POST("/api/promotions/:id/click", promotionHandler.Click)
	r.POST("/api/promotions/:id/impression", promotionHandler.Impression)

	// Provider callbacks
	r.POST("/webhooks/stripe", webhookHandler.StripeWebhook)
	r.POST("/webhooks/nowpayments", webhookHandler.NOWPaymentsIPN)

	// Authenticated
	auth := r.Group("/api", authHandler.RequireAuth())
	auth.POST("/auth/logout", authHandler.Logout)
	auth.POST("/chat", chatHandler.Chat)
	auth.GET("/chat/history", chatHandler.History)
	auth.POST("/payments", paymentHandler.CreatePayment)
	auth.POST("/payments/verify", paymentHandler.VerifyChainPayment)
	auth.GET("/payments/status/:id", paymentHandler.PaymentStatus)
	auth.GET("/payments/transactions", paymentHandler.ListTransactions)
	auth.GET("/payments/transactions/:id", paymentHandler.GetTransaction)
	auth.GET("/dashboard", dashboardHandler.UserDashboard)
	auth.GET("/credits/balance", dashboardHandler.Balance)
	auth.POST("/promotions", promotionHandler.Create)
	auth.GET("/promotions/mine", promotionHandler.ListMine)
	auth.PUT("/promotions/:id", promotionHandler.Update)
	auth.DELETE("/promotions/:id", promotionHandler.Delete)
	auth.POST("/promotions/:id/cancel", promotionHandler.Cancel)

	// Operator
	admin := r.Group("/admin", handlers.RequireAdmin(cfg.Server.AdminToken))
	admin.GET("/summary", dashboardHandler.AdminSummary)
	admin.POST("/promotions/:id/approve", promotionHandler.Approve)

	// Start Cron Schedulers
	cleanupService := services.NewCleanupService(db, promotionService)
	cleanupService.StartScheduler()

	log.Printf("HTTP Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
