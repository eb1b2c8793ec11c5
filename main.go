package main

import (
	"context"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shop-admin/backend/internal/blacklist"
	"github.com/shop-admin/backend/internal/client"
	"github.com/shop-admin/backend/internal/config"
	"github.com/shop-admin/backend/internal/db"
	"github.com/shop-admin/backend/internal/handler"
	"github.com/shop-admin/backend/internal/service"
)

// @title Shop Admin Auth API
// @version 1.0
// @description Authentication and session API for the shop administration backend.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := newLogger(cfg.Server.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatal("schema init failed", zap.Error(err))
	}

	codec, err := service.NewTokenCodec(cfg.Auth)
	if err != nil {
		log.Fatal("token codec init failed", zap.Error(err))
	}

	// Single-process deployments keep the blacklist in memory; REDIS_ADDR
	// switches to the shared store.
	var revoked blacklist.Store = blacklist.NewMemory()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}
		revoked = blacklist.NewRedis(rdb)
		log.Info("using redis token blacklist", zap.String("addr", cfg.Redis.Addr))
	}

	authService, err := service.NewAuthService(pg, codec, revoked, log, cfg.Auth)
	if err != nil {
		log.Fatal("auth service init failed", zap.Error(err))
	}

	if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminIdentifier, cfg.Auth.AdminPassword); err != nil {
		log.Fatal("admin seed failed", zap.Error(err))
	}

	var sender service.CodeSender
	smsClient := client.NewSMSClient(cfg.SMS)
	if smsClient.IsConfigured() {
		sender = smsClient
	} else {
		log.Warn("SMS gateway not configured, codes will only be logged")
		sender = client.NewLogSender(log)
	}

	resetService := service.NewPasswordResetService(pg, sender, log)

	router := buildRouter(authService, resetService, cfg)

	log.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func buildRouter(authService *service.AuthService, resetService *service.PasswordResetService, cfg config.Config) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	origins := strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",")
	router.Use(handler.CORSMiddleware(origins, true))

	router.GET("/", handler.Root)
	router.GET("/ping", handler.Ping)
	router.GET("/openapi.json", handler.OpenAPIDoc)

	authHandler := handler.NewAuthHandler(authService)
	resetHandler := handler.NewPasswordResetHandler(resetService)

	auth := router.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", resetHandler.ForgotPassword)
		auth.POST("/verify-reset-otp", resetHandler.VerifyResetOTP)
		auth.POST("/reset-password", resetHandler.ResetPassword)

		authed := auth.Group("", handler.AuthMiddleware(authService))
		{
			authed.GET("/check", authHandler.Check)
			authed.POST("/logout", authHandler.Logout)
			authed.POST("/logout-all", authHandler.LogoutAll)
			authed.POST("/change-password", resetHandler.ChangePassword)
		}
	}

	return router
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
