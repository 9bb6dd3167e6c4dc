package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dogworld/dogworld-backend/internal/config"
	"github.com/dogworld/dogworld-backend/internal/handler"
	"github.com/dogworld/dogworld-backend/internal/middleware"
	"github.com/dogworld/dogworld-backend/internal/migration"
	"github.com/dogworld/dogworld-backend/internal/repository"
	"github.com/dogworld/dogworld-backend/internal/routes"
	"github.com/dogworld/dogworld-backend/internal/service"
	pkgcache "github.com/dogworld/dogworld-backend/pkg/cache"
	"github.com/dogworld/dogworld-backend/pkg/jwt"
	pkglogger "github.com/dogworld/dogworld-backend/pkg/logger"
	pkgredis "github.com/dogworld/dogworld-backend/pkg/redis"
	pkgstorage "github.com/dogworld/dogworld-backend/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	logger := pkglogger.GetLogger()
	logger.Info().Str("env", env).Strs("dotenv", dotenvFiles).Msg("starting dogworld-backend")

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	logger.Info().Msg("connected to MySQL")

	// Redis (optional; the badge cache degrades to DB counts without it)
	var cacheService pkgcache.Service
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
	} else {
		cacheService = pkgcache.NewService(redisClient)
		logger.Info().Msg("connected to Redis")
	}

	// S3-compatible attachment storage (optional)
	var attachmentStorage service.AttachmentStorage
	if cfg.Storage.Enabled && cfg.Storage.Bucket != "" {
		s3Client, s3Err := pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
		})
		if s3Err != nil {
			logger.Warn().Err(s3Err).Msg("S3 storage init failed, attachments disabled")
		} else {
			attachmentStorage = s3Client
		}
	}

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	// Repositories
	memberRepo := repository.NewMemberRepository(db)
	if cacheService != nil {
		memberRepo = repository.NewCachedMemberRepository(memberRepo, cacheService)
	}
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	productRepo := repository.NewProductRepository(db)

	// Services
	notificationSvc := service.NewNotificationService(
		notificationRepo, memberRepo, cacheService, cfg.Notifications.CoalesceWindow)
	messageSvc := service.NewMessageService(messageRepo, memberRepo, notificationSvc, attachmentStorage)
	commentSvc := service.NewCommentService(commentRepo, notificationSvc)
	productSvc := service.NewProductService(productRepo, memberRepo, notificationSvc)

	// Handlers
	messageHandler := handler.NewMessageHandler(messageSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	productHandler := handler.NewProductHandler(productSvc)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.Metrics())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		cacheStatus := "disabled"
		if cacheService != nil {
			cacheStatus = "ok"
			if err := cacheService.Ping(c.Request.Context()); err != nil {
				cacheStatus = "down"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "dogworld-backend",
			"cache":   cacheStatus,
			"time":    time.Now().Unix(),
		})
	})

	routes.Setup(router, messageHandler, notificationHandler, commentHandler, productHandler, jwtManager)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("listening")
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.IsDevelopment() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}
	return gorm.Open(mysql.Open(cfg.Database.DSN()), gormCfg)
}
