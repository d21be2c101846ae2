package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/manumu/auth-api/internal/config"
	"github.com/manumu/auth-api/internal/handler"
	"github.com/manumu/auth-api/internal/middleware"
	pgRepo "github.com/manumu/auth-api/internal/repository/postgres"
	"github.com/manumu/auth-api/internal/service"
	"github.com/manumu/auth-api/pkg/auth"
	"github.com/manumu/auth-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := pgRepo.NewUserRepo(db)
	tokenRepo := pgRepo.NewVerificationTokenRepo(db)
	identityRepo := pgRepo.NewUserIdentityRepo(db)

	// Session tokens
	jwtService, err := auth.NewJWTService(cfg.Session.Secret, cfg.Session.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Outbound email: Resend when an API key is configured, otherwise a
	// log-only channel for local development.
	var emailService service.EmailService
	if cfg.Email.ResendAPIKey != "" {
		emailService, err = service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize ResendEmailService: %v", err)
			os.Exit(1)
		}
		log.Println("Email delivery via Resend")
	} else {
		emailService = &service.NoopEmailService{}
		log.Println("RESEND_API_KEY not set, verification links go to the log only")
	}

	// Services
	verificationService, err := service.NewVerificationService(
		userRepo,
		tokenRepo,
		emailService,
		cfg.Verification.TokenTTL(),
		cfg.Verification.ResendCooldown(),
		cfg.App.URL,
	)
	if err != nil {
		log.Printf("Failed to initialize VerificationService: %v", err)
		os.Exit(1)
	}

	authService, err := service.NewAuthService(userRepo, jwtService, verificationService)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}

	oauthService, err := service.NewOAuthService(userRepo, identityRepo, cfg.OAuth, cfg.App.URL)
	if err != nil {
		log.Printf("Failed to initialize OAuthService: %v", err)
		os.Exit(1)
	}

	// Handlers and middleware
	authHandler := handler.NewAuthHandler(authService)
	verificationHandler := handler.NewVerificationHandler(verificationService, cfg.App.URL)
	oauthHandler := handler.NewOAuthHandler(oauthService, authService, cfg.App.URL)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	router := gin.Default()

	// Trusted proxies for a correct c.ClientIP(). Production behind a load
	// balancer should list the balancer's address instead of nil.
	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	corsOrigins := cfg.App.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{cfg.App.URL}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Verification link landing; lives outside /api so the emailed URL stays
	// short and stable.
	router.GET("/verify", verificationHandler.Verify)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/verify/resend", verificationHandler.Resend)

			oauthGroup := authGroup.Group("/oauth")
			{
				oauthGroup.GET("/:provider", oauthHandler.SignIn)
				oauthGroup.GET("/:provider/callback", oauthHandler.Callback)
			}
		}

		users := api.Group("/users")
		users.Use(authMiddleware.RequireAuth())
		{
			users.GET("/me", authHandler.GetMe)
			users.PUT("/me", authHandler.UpdateProfile)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
