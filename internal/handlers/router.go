package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	mW "github.com/creditbook/backend/internal/middleware"
	"github.com/creditbook/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterDeps is everything the router wires to a URL.
type RouterDeps struct {
	Auth      *services.AuthService
	Ledger    *LedgerHandler
	Customers *CustomerHandler
	Limits    *LimitHandler
	Reports   *ReportHandler

	// Authenticate guards every route except signup, login, health and swagger.
	Authenticate func(http.Handler) http.Handler

	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter creates a new router with all routes configured.
func NewRouter(d RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/users/signup", d.Auth.Signup)
		r.Post("/users/login", d.Auth.Login)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(d.Authenticate)

			r.Route("/users", func(r chi.Router) {
				r.Post("/logout", d.Auth.Logout)
				r.Get("/profile", d.Auth.Profile)
				r.Get("/global-limit", d.Limits.GetGlobalLimit)
				r.Put("/global-limit", d.Limits.SetGlobalLimit)
				r.Delete("/global-limit", d.Limits.ClearGlobalLimit)
				r.Get("/most-credit-customer", d.Reports.MostCreditCustomer)
			})

			r.Route("/credits", func(r chi.Router) {
				r.Post("/", d.Ledger.CreateEntry)
				r.Get("/limit", d.Limits.GetGlobalLimit)
				r.Put("/limit", d.Limits.SetGlobalLimit)
				r.Get("/{id}", d.Ledger.GetEntry)
				r.Patch("/{id}/settle", d.Ledger.SettleEntry)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Post("/", d.Ledger.CreateEntry)
				r.Patch("/{id}/settle", d.Ledger.SettleEntry)
				r.Get("/total-credit", d.Ledger.TotalCredit)
				r.Get("/recent-transactions", d.Reports.RecentTransactions)
				r.Get("/all-transactions", d.Reports.AllTransactions)
				r.Get("/summary-last-week", d.Reports.SummaryLastWeek)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", d.Customers.ListCustomers)
				r.Post("/", d.Customers.CreateCustomer)
				r.Get("/search", d.Customers.SearchCustomers)
				r.Get("/{id}", d.Customers.GetCustomer)
				r.Delete("/{id}", d.Customers.DeleteCustomer)
				r.Put("/{id}/limit", d.Customers.SetCustomerLimit)
				r.Get("/{id}/transactions", d.Ledger.CustomerEntries)
			})

			r.Get("/analytics/customer-usage", d.Reports.CustomerUsage)
		})
	})

	return r
}
