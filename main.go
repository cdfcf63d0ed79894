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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-michi/michi"
	"github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"

	"shop/auth"
	"shop/config"
	"shop/controllers"
	"shop/database"
	"shop/payment"
	"shop/store"
	"shop/utils"
	"shop/web"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(utils.ErrorWithTrace(err, "failed to load config"))
	}

	// Connect to the database
	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(utils.ErrorWithTrace(err, err.Error()))
	}
	defer db.Close()

	// Handle migrations
	if err := database.Migrate(db, cfg.DBDriver, cfg.DatabaseURL); err != nil {
		log.Fatal(utils.ErrorWithTrace(err, err.Error()))
	}

	st := store.New(db, cfg.DBDriver)
	if err := bootstrapAdmin(st, cfg); err != nil {
		log.Fatal(utils.ErrorWithTrace(err, "failed to create admin user"))
	}

	revoker, sessions, closeRedis := setupTokenState(cfg)
	defer closeRedis()

	var payments payment.Provider = payment.Disabled{}
	if cfg.StripeKey != "" {
		payments = payment.NewStripe(cfg.StripeKey, nil)
	} else {
		log.Println("STRIPE_SECRET_KEY not set, checkout payments are disabled")
	}

	api := controllers.NewAPI(st, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), revoker, payments, cfg)
	site, err := web.NewSite(st, sessions, cfg)
	if err != nil {
		log.Fatal(utils.ErrorWithTrace(err, "failed to load templates"))
	}

	r := michi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(cfg.RequestTimeout),
	)
	api.Routes(r)
	site.Routes(r)

	// Enable CORS
	corsOptions := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsOptions(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(utils.ErrorWithTrace(err, err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println(utils.ErrorWithTrace(err, "server forced to shutdown"))
	}
	log.Println("Server exited")
}

func bootstrapAdmin(st *store.Store, cfg *config.Config) error {
	if cfg.AdminUsername == "" {
		return nil
	}
	hash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, hash); err != nil {
		return err
	}
	log.Printf("admin user %q is ready", cfg.AdminUsername)
	return nil
}

// setupTokenState picks Redis for revocations and sessions when REDIS_ADDR is
// set and falls back to process memory otherwise.
func setupTokenState(cfg *config.Config) (auth.Revoker, auth.SessionStore, func()) {
	if cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, revoked tokens and sessions are kept in memory and lost on restart")
		return auth.NewMemoryRevoker(), auth.NewMemorySessions(cfg.SessionTTL), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal(utils.ErrorWithTrace(err, "failed to connect to redis"))
	}

	return auth.NewRedisRevoker(client), auth.NewRedisSessions(client, cfg.SessionTTL), func() {
		if err := client.Close(); err != nil {
			log.Println(utils.ErrorWithTrace(err, "failed to close redis"))
		}
	}
}
