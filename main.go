package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wanderplan/config"
	"wanderplan/db"
	"wanderplan/expenses"
	"wanderplan/globals"
	"wanderplan/itinerary"
	"wanderplan/llm"
	"wanderplan/maps"
	"wanderplan/plans"
	"wanderplan/prefs"
	"wanderplan/ratelim"
	"wanderplan/rdx"
	"wanderplan/routes"
	"wanderplan/speech"
	"wanderplan/sysconfig"
	"wanderplan/vault"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "no-referrer")
		// the speech relay needs the microphone
		w.Header().Set("Permissions-Policy", "geolocation=(self), microphone=(self), camera=()")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s – %v", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func setupRouter(h routes.Handlers, rateLimiter *ratelim.RateLimiter) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)
	routes.RoutesWrapper(router, h, rateLimiter)
	return router
}

func newVault(secret string) *vault.Vault {
	if secret == "" {
		log.Println("⚠️ CONFIG_SECRET not set; stored API keys will be unreadable after a restart")
		return vault.NewEphemeral()
	}
	v, err := vault.New(secret)
	if err != nil {
		log.Fatalf("❌ CONFIG_SECRET: %v", err)
	}
	return v
}

func newProvider(cfg *config.Config) llm.Provider {
	if cfg.LLMMock {
		log.Println("⚠️ LLM_MOCK enabled; itineraries are generated locally")
		return &llm.MockProvider{Delay: 500 * time.Millisecond}
	}
	return llm.NewOpenAIProvider(nil)
}

func main() {
	cfg := config.Load()
	globals.JwtSecret = []byte(cfg.SupabaseJWTSecret)
	if cfg.SupabaseJWTSecret == "" {
		log.Println("⚠️ SUPABASE_JWT_SECRET not set; every authenticated route will answer 401")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := db.Open(startCtx, db.Options{
		Driver:   cfg.StoreDriver,
		DSN:      cfg.DatabaseURL,
		MongoURI: cfg.MongoURI,
		MongoDB:  cfg.MongoDB,
	})
	if err != nil {
		cancelStart()
		log.Fatalf("❌ Store: %v", err)
	}
	cache := rdx.Open(startCtx, cfg.RedisAddr, cfg.RedisPassword)
	cancelStart()

	settings := sysconfig.NewService(store, newVault(cfg.ConfigSecret), sysconfig.Defaults{
		LLM:       cfg.LLM,
		MapAPIKey: cfg.MapAPIKey,
	})
	planService := plans.NewService(store)
	prefService := prefs.NewService(store)
	gateway := llm.NewGateway(newProvider(cfg), cache, cfg.CacheTTL)

	handlers := routes.Handlers{
		Itinerary: itinerary.NewHandler(itinerary.Deps{
			Generator: itinerary.NewGenerator(gateway, settings, prefService),
			Plans:     planService,
			Expenses:  expenses.NewService(store, store),
			Prefs:     prefService,
			Settings:  settings,
			Export: itinerary.ExportOptions{
				FontPath:        cfg.PDFFontPath,
				PublicBaseURL:   cfg.PublicBaseURL,
				DefaultTimezone: cfg.DefaultTimezone,
			},
			Public: itinerary.PublicConfig{
				SupabaseURL:     cfg.SupabaseURL,
				SupabaseAnonKey: cfg.SupabaseAnonKey,
			},
		}),
		Maps:   maps.NewHandler(maps.NewLoader(cfg.MapSDKURL, nil), settings),
		Speech: speech.NewRelay(),
	}

	rateLimiter := ratelim.NewRateLimiter(cfg.GenerateRatePerMin)
	router := setupRouter(handlers, rateLimiter)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      150 * time.Second, // generate waits on the model
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}

	if err := cache.Close(); err != nil {
		log.Printf("⚠️ cache close: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("⚠️ store close: %v", err)
	}

	log.Println("✅ Server stopped cleanly")
}
