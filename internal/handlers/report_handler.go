package handlers

import (
	"net/http"
	"strconv"

	"github.com/creditbook/backend/internal/services"
)

type ReportHandler struct {
	service *services.ReportService
}

func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// RecentTransactions lists the newest entries
// @Summary Recent transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries (default 5)"
// @Success 200 {array} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Router /transactions/recent-transactions [get]
func (h *ReportHandler) RecentTransactions(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			services.SendErrorResponse(w, "limit must be between 1 and 100", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	entries, err := h.service.RecentEntries(r.Context(), acct, limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// AllTransactions lists entries inside a time window
// @Summary Transactions in window
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param filter query string false "15d, 1m or all"
// @Success 200 {array} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Router /transactions/all-transactions [get]
func (h *ReportHandler) AllTransactions(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.EntriesInWindow(r.Context(), acct, r.URL.Query().Get("filter"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// SummaryLastWeek groups recent entries by day
// @Summary Weekly summary
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.DaySummary
// @Router /transactions/summary-last-week [get]
func (h *ReportHandler) SummaryLastWeek(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.WeeklySummary(r.Context(), acct)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// MostCreditCustomer returns the customer with the most credit
// @Summary Top customer
// @Description Responds with null when the account has no customer entries
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.TopCustomer
// @Router /users/most-credit-customer [get]
func (h *ReportHandler) MostCreditCustomer(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	top, err := h.service.TopCustomer(r.Context(), acct)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, top)
}

// CustomerUsage reports each customer's pending credit against its limit
// @Summary Customer usage
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CustomerUsage
// @Router /analytics/customer-usage [get]
func (h *ReportHandler) CustomerUsage(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	usage, err := h.service.CustomerUsage(r.Context(), acct)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}
