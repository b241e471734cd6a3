package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Kind    ErrorKind         `json:"kind,omitempty"`    // Stable error class
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper.
// Decimal fields validate as float64 so numeric tags like gt=0 apply to them.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
	return &ValidationHelper{
		validator: v,
	}
}

func decimalValue(field reflect.Value) any {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		f, _ := d.Float64()
		return f
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		f, _ := d.Decimal.Float64()
		return f
	}
	return nil
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	sendError(w, ErrorResponse{Error: message}, statusCode, validationErr)
}

// SendServiceError maps a service error to its HTTP status and writes it.
// Internal errors are logged and reported without their cause.
func SendServiceError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	status := StatusForKind(kind)

	message := err.Error()
	if kind == KindInternal {
		log.Printf("[HTTP] Internal error: %v", err)
		message = "Internal server error"
	}

	resp := ErrorResponse{Error: message, Kind: kind}
	var fieldErr *ValidationError
	if errors.As(err, &fieldErr) {
		resp.Details = map[string]string{fieldErr.Field: fieldErr.Message}
	}
	sendError(w, resp, status, nil)
}

// StatusForKind is the HTTP status for each error kind.
func StatusForKind(kind ErrorKind) int {
	switch kind {
	case KindInvalidArgument, KindLimitExceeded, KindAlreadySettled:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// kindForStatus names the kind of an error written without a service error.
func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return KindInvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthenticated
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindAlreadyExists
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable:
		return KindUnavailable
	default:
		return KindInternal
	}
}

func sendError(w http.ResponseWriter, resp ErrorResponse, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	var validationErrors validator.ValidationErrors
	if errors.As(validationErr, &validationErrors) {
		resp.Details = make(map[string]string)
		for _, err := range validationErrors {
			resp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
		if resp.Kind == "" {
			resp.Kind = KindInvalidArgument
		}
	}
	if resp.Kind == "" {
		resp.Kind = kindForStatus(statusCode)
	}

	json.NewEncoder(w).Encode(resp)
}
