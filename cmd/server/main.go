package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/creditbook/backend/docs"
	"github.com/creditbook/backend/internal/config"
	"github.com/creditbook/backend/internal/database"
	"github.com/creditbook/backend/internal/handlers"
	mW "github.com/creditbook/backend/internal/middleware"
	"github.com/creditbook/backend/internal/services"
	"github.com/shopspring/decimal"
)

// @title Credit Book API
// @version 1.0
// @description Shop credit ledger: customers, credit limits and pending/settled entries
// @host localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg := config.Load()
	reporting := config.LoadReportingConfig()

	// Money goes over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port

	ctx := context.Background()

	db := database.InitDatabase(ctx)
	defer db.Close()

	redisClient := database.InitRedis(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}

	limitService := services.NewLimitService(db)
	customerService := services.NewCustomerService(db, reporting.SearchLimit)
	ledgerService := services.NewLedgerService(db)
	reportService := services.NewReportService(db, reporting)
	authService := services.NewAuthService(db, redisClient)

	r := handlers.NewRouter(handlers.RouterDeps{
		Auth:         authService,
		Ledger:       handlers.NewLedgerHandler(ledgerService),
		Customers:    handlers.NewCustomerHandler(customerService, limitService),
		Limits:       handlers.NewLimitHandler(limitService),
		Reports:      handlers.NewReportHandler(reportService),
		Authenticate: mW.InitAuthMiddleware(redisClient),
		CORSOrigins:  cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
