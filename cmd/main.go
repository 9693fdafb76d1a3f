package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"commerce-app/subscription-service/internal/config"
	"commerce-app/subscription-service/internal/handler"
	"commerce-app/subscription-service/internal/monitoring"
	"commerce-app/subscription-service/internal/repository"
	"commerce-app/subscription-service/internal/services"
	"commerce-app/subscription-service/internal/utils"
)

func main() {
	log := monitoring.NewLogger()

	baseCtx := context.Background()
	ctx, shutdownManager := utils.NewShutdownManager(baseCtx, log)
	shutdownManager.StartListening()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("mongo connection failed: ", err)
	}
	shutdownManager.Register(func(ctx context.Context) error {
		log.Info("closing MongoDB connection")
		return mongoClient.Disconnect(ctx)
	})

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	shutdownManager.Register(func(ctx context.Context) error {
		log.Info("closing Redis connection")
		return rdb.Close()
	})

	db := mongoClient.Database(cfg.MongoDatabase)

	repo := repository.NewSubscriptionRepository(db)
	orderClient := utils.NewOrderClient(cfg.OrderServiceURL)
	billingClient := utils.NewBillingClient(cfg.BillingServiceURL)
	publisher := services.NewRedisChangePublisher(rdb, log)
	locker := utils.NewRedsyncLocker(rdb)

	subscriptionService := services.NewSubscriptionService(repo, billingClient, publisher, log)
	renewalOrchestrator := services.NewRenewalOrchestrator(subscriptionService, repo, orderClient, locker, log)
	orderConverter := services.NewOrderConverter(subscriptionService, orderClient, log)

	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, orderConverter, renewalOrchestrator)

	scheduler, err := utils.NewScheduler(log)
	if err != nil {
		log.Fatal("scheduler init failed: ", err)
	}
	if err := scheduler.RegisterRenewalJob(cfg.RenewalCron, renewalOrchestrator); err != nil {
		log.Fatal("scheduler job registration failed: ", err)
	}
	scheduler.Start()
	shutdownManager.Register(func(ctx context.Context) error {
		log.Info("stopping scheduler")
		return scheduler.Shutdown()
	})

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authMiddleware := utils.AuthMiddleware(cfg.AuthServiceURL)

	api := router.Group("/api/subscriptions")
	{
		api.GET("/", authMiddleware, subscriptionHandler.List)
		api.POST("/", authMiddleware, subscriptionHandler.Save)
		api.POST("/import", authMiddleware, subscriptionHandler.Import)
		api.POST("/run", authMiddleware, subscriptionHandler.Run)
		api.POST("/:id/suspend", authMiddleware, subscriptionHandler.Suspend)
		api.POST("/:id/reactivate", authMiddleware, subscriptionHandler.Reactivate)

		// internal endpoints for the order service
		api.POST("/order-to-subscription", subscriptionHandler.OrderToSubscription)
		api.GET("/next-order-date", subscriptionHandler.NextOrderDate)
	}

	server := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Info("subscription service running on ", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error: ", err)
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	select {}
}
