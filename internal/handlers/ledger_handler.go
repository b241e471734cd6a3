package handlers

import (
	"net/http"

	"github.com/creditbook/backend/internal/models"
	"github.com/creditbook/backend/internal/services"
	"github.com/shopspring/decimal"
)

// CreateEntryRequest is the payload for extending credit.
// @Description Omit customer_id to record credit against the account itself.
type CreateEntryRequest struct {
	CustomerID  *int64          `json:"customer_id" validate:"omitempty,gt=0" example:"12"`
	Amount      decimal.Decimal `json:"amount" validate:"required,gt=0" swaggertype:"number" example:"250.50"`
	Description *string         `json:"description" validate:"omitempty,max=500" example:"Rice 5kg"`
}

// TotalResponse is a single aggregated amount.
type TotalResponse struct {
	Total decimal.Decimal `json:"total" swaggertype:"number" example:"1250.00"`
}

type LedgerHandler struct {
	service   *services.LedgerService
	validator *services.ValidationHelper
}

func NewLedgerHandler(service *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateEntry extends credit
// @Summary Create credit entry
// @Description Record a pending credit after checking the effective credit limit
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateEntryRequest true "Credit entry"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse "Invalid argument or limit exceeded"
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse "Customer not found"
// @Router /credits [post]
func (h *LedgerHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	var req CreateEntryRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), acct, services.CreateEntryInput{
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// GetEntry returns one credit entry
// @Summary Get credit entry
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 404 {object} services.ErrorResponse
// @Router /credits/{id} [get]
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.service.GetEntry(r.Context(), acct, id)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// SettleEntry marks a pending entry settled
// @Summary Settle credit entry
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param id path int true "Entry ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse "Already settled"
// @Failure 404 {object} services.ErrorResponse
// @Router /credits/{id}/settle [patch]
func (h *LedgerHandler) SettleEntry(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.service.SettleEntry(r.Context(), acct, id)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// TotalCredit sums entry amounts
// @Summary Total credit
// @Description Sum of entry amounts. status defaults to pending; pass all to include every status.
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, settled or all"
// @Param customer_id query int false "Restrict to one customer"
// @Success 200 {object} TotalResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/total-credit [get]
func (h *LedgerHandler) TotalCredit(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	customerID, ok := optionalInt64(w, r, "customer_id")
	if !ok {
		return
	}

	filter := services.TotalsFilter{CustomerID: customerID}
	switch raw := r.URL.Query().Get("status"); raw {
	case "":
		status := models.EntryStatusPending
		filter.Status = &status
	case "all":
	default:
		status := models.EntryStatus(raw)
		filter.Status = &status
	}

	total, err := h.service.ComputeTotals(r.Context(), acct, filter)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TotalResponse{Total: total})
}

// CustomerEntries lists a customer's entries
// @Summary Customer transactions
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {array} models.LedgerEntry
// @Failure 404 {object} services.ErrorResponse
// @Router /customers/{id}/transactions [get]
func (h *LedgerHandler) CustomerEntries(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.service.ListCustomerEntries(r.Context(), acct, id)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
