package handlers

import (
	"net/http"

	"github.com/creditbook/backend/internal/services"
	"github.com/shopspring/decimal"
)

// GlobalLimitRequest replaces the account-wide credit limit.
type GlobalLimitRequest struct {
	GlobalCreditLimit *decimal.Decimal `json:"global_credit_limit" swaggertype:"number" example:"1000"`
}

// GlobalLimitResponse carries the limit; null means unbounded.
type GlobalLimitResponse struct {
	GlobalCreditLimit decimal.NullDecimal `json:"global_credit_limit" swaggertype:"number" example:"1000"`
}

type LimitHandler struct {
	service   *services.LimitService
	validator *services.ValidationHelper
}

func NewLimitHandler(service *services.LimitService) *LimitHandler {
	return &LimitHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GetGlobalLimit returns the account-wide credit limit
// @Summary Get global credit limit
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} GlobalLimitResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/global-limit [get]
func (h *LimitHandler) GetGlobalLimit(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	limit, err := h.service.GetGlobalLimit(r.Context(), acct)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GlobalLimitResponse{GlobalCreditLimit: limit})
}

// SetGlobalLimit replaces the account-wide credit limit
// @Summary Set global credit limit
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GlobalLimitRequest true "New limit"
// @Success 200 {object} GlobalLimitResponse
// @Failure 400 {object} services.ErrorResponse "Invalid limit"
// @Router /users/global-limit [put]
func (h *LimitHandler) SetGlobalLimit(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	var req GlobalLimitRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}
	if req.GlobalCreditLimit == nil {
		services.SendErrorResponse(w, "global_credit_limit is required", http.StatusBadRequest, nil)
		return
	}

	limit, err := h.service.SetGlobalLimit(r.Context(), acct, *req.GlobalCreditLimit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GlobalLimitResponse{GlobalCreditLimit: decimal.NewNullDecimal(limit)})
}

// ClearGlobalLimit removes the account-wide credit limit
// @Summary Clear global credit limit
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} GlobalLimitResponse
// @Router /users/global-limit [delete]
func (h *LimitHandler) ClearGlobalLimit(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearGlobalLimit(r.Context(), acct); err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GlobalLimitResponse{})
}
