package handlers

import (
	"net/http"

	"github.com/creditbook/backend/internal/services"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest registers a customer.
type CreateCustomerRequest struct {
	FullName    string           `json:"full_name" validate:"required,min=2,max=255" example:"Anita Sharma"`
	PhoneNumber string           `json:"phone_number" validate:"required,max=32" example:"9123456780"`
	CreditLimit *decimal.Decimal `json:"credit_limit" swaggertype:"number" example:"500"`
}

// CustomerLimitRequest sets a customer's override. A null or missing credit_limit clears it.
type CustomerLimitRequest struct {
	CreditLimit decimal.NullDecimal `json:"credit_limit" swaggertype:"number" example:"750"`
}

type CustomerHandler struct {
	customers *services.CustomerService
	limits    *services.LimitService
	validator *services.ValidationHelper
}

func NewCustomerHandler(customers *services.CustomerService, limits *services.LimitService) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		limits:    limits,
		validator: services.NewValidationHelper(),
	}
}

// CreateCustomer registers a customer
// @Summary Create customer
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCustomerRequest true "Customer"
// @Success 201 {object} models.Customer
// @Failure 400 {object} services.ErrorResponse
// @Router /customers [post]
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	var req CreateCustomerRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	customer, err := h.customers.CreateCustomer(r.Context(), acct, services.CreateCustomerInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, customer)
}

// ListCustomers lists the account's customers
// @Summary List customers
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Customer
// @Router /customers [get]
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	customers, err := h.customers.ListCustomers(r.Context(), acct)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, customers)
}

// SearchCustomers finds customers by phone digits or name
// @Summary Search customers
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param q query string true "Digits match phone numbers, anything else matches names"
// @Success 200 {array} models.Customer
// @Failure 400 {object} services.ErrorResponse
// @Router /customers/search [get]
func (h *CustomerHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}

	customers, err := h.customers.SearchCustomers(r.Context(), acct, r.URL.Query().Get("q"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, customers)
}

// GetCustomer returns one customer
// @Summary Get customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {object} models.Customer
// @Failure 404 {object} services.ErrorResponse
// @Router /customers/{id} [get]
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	customer, err := h.customers.GetCustomer(r.Context(), acct, id)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

// DeleteCustomer removes a customer and its entries
// @Summary Delete customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} services.ErrorResponse
// @Router /customers/{id} [delete]
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.customers.DeleteCustomer(r.Context(), acct, id); err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Customer deleted"})
}

// SetCustomerLimit sets or clears a customer's credit limit override
// @Summary Set customer limit
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Customer ID"
// @Param request body CustomerLimitRequest true "Limit override"
// @Success 200 {object} models.Customer
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /customers/{id}/limit [put]
func (h *CustomerHandler) SetCustomerLimit(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req CustomerLimitRequest
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	customer, err := h.limits.SetCustomerLimit(r.Context(), acct, id, req.CreditLimit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, customer)
}
