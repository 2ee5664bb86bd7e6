package main

import (
	"log"
	"os"
	"time"

	"galia-orders/internal/auth"
	httpc "galia-orders/internal/controllers/http"
	"galia-orders/internal/infra"
	mmysql "galia-orders/internal/infra/mysql"
	"galia-orders/internal/infra/rabbitmq"
	mysqlrepo "galia-orders/internal/repository/mysql"
	"galia-orders/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	db, err := mmysql.NewMySQLFromEnv()
	if err != nil {
		log.Fatalf("db: connect: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	repo := mysqlrepo.NewOrderRepository(db)

	catalog := infra.NewCatalogClient(
		os.Getenv("CATALOG_SERVICE_URL"),
		os.Getenv("CATALOG_WRITE_TOKEN"),
		2*time.Second,
	)
	identity := infra.NewIdentityClient(os.Getenv("IDENTITY_SERVICE_URL"), 2*time.Second)

	publisher, err := rabbitmq.NewPublisher(os.Getenv("RABBITMQ_URL"), "order.exchange")
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	orderService := services.NewOrderService(repo, publisher)
	inventoryService := services.NewInventoryService(catalog)
	adminService := services.NewAdminService(repo, inventoryService, publisher)

	var (
		redisClient *redis.Client
		limiter     httpc.RateLimiter = httpc.NewMemoryRateLimiter(8, time.Minute)
	)
	if host := os.Getenv("REDIS_HOST"); host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         host + ":6379",
			DB:           0,
			PoolSize:     50,
			MinIdleConns: 10,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		adminService.SetRedisClient(redisClient)
		limiter = httpc.NewRedisRateLimiter(redisClient, 8, time.Minute)
	}

	allowlist := auth.ParseAllowlist(os.Getenv("ADMIN_EMAIL_ALLOWLIST"))
	handler := httpc.NewHandler(orderService, adminService, redisClient, limiter, allowlist)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(auth.Middleware(identity))

	handler.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting order service on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server run: %v", err)
	}
}
