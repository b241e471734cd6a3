package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/creditbook/backend/internal/middleware"
	"github.com/creditbook/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const accountColumns = `id, full_name, phone_number, password, global_credit_limit, created_at`

type AuthService struct {
	db         DB
	redis      *redis.Client
	validation *ValidationHelper
	clock      Clock
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required" example:"9876543210"` // Account phone number
	Password    string `json:"password" validate:"required,min=6" example:"password123"` // Account password
}

// SignupRequest represents the signup request payload
// @Description Signup request structure
type SignupRequest struct {
	FullName    string `json:"full_name" validate:"required,min=2" example:"Ravi Kumar"`   // Shop owner name
	PhoneNumber string `json:"phone_number" validate:"required,min=7" example:"9876543210"` // Login handle
	Password    string `json:"password" validate:"required,min=6" example:"password123"`   // Account password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string         `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  models.Account `json:"user"`                                                    // Account information
}

func NewAuthService(db DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:         db,
		redis:      redisClient,
		validation: NewValidationHelper(),
		clock:      systemClock,
	}
}

func (s *AuthService) sendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendErrorResponse(w, message, statusCode, validationErr)
}

// Signup handles account registration
// @Summary Register a shop owner account
// @Description Create an account keyed by phone number and return a token
// @Tags users
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} AuthResponse "Signup successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Phone number already registered"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /users/signup [post]
func (s *AuthService) Signup(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Signup attempt from IP: %s", r.RemoteAddr)

	var req SignupRequest
	if !s.decode(w, r, &req) {
		return
	}

	phone := strings.TrimSpace(req.PhoneNumber)
	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", phone, err)
		s.sendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	account, err := scanAccount(s.db.QueryRowContext(r.Context(), `
		INSERT INTO users (full_name, phone_number, password, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		strings.TrimSpace(req.FullName), phone, hashedPassword, s.clock()))
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			log.Printf("[AUTH] Signup rejected, phone number %s already registered", phone)
			s.sendErrorResponse(w, "Phone number already registered", http.StatusConflict, nil)
			return
		}
		log.Printf("[AUTH] Account creation failed for %s: %v", phone, err)
		SendServiceError(w, err)
		return
	}

	token, err := generateJWT(account.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for account %d: %v", account.ID, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Account created successfully - ID: %d", account.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: *account})
}

// Login handles account authentication
// @Summary Login
// @Description Authenticate with phone number and password
// @Tags users
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 429 {object} ErrorResponse "Too many failed attempts"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /users/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)

	if s.lockedOut(r.Context(), phone) {
		log.Printf("[AUTH] Login throttled for phone number: %s", phone)
		s.sendErrorResponse(w, "Too many failed login attempts, try again later", http.StatusTooManyRequests, nil)
		return
	}

	account, err := scanAccount(s.db.QueryRowContext(r.Context(), `
		SELECT `+accountColumns+` FROM users WHERE phone_number = $1
	`, phone))
	if errors.Is(err, ErrNotFound) {
		log.Printf("[AUTH] Account not found for phone number: %s", phone)
		s.recordFailure(r.Context(), phone)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Account lookup failed for %s: %v", phone, err)
		SendServiceError(w, err)
		return
	}

	if !verifyPassword(req.Password, account.PasswordHash) {
		log.Printf("[AUTH] Invalid password for account: %d", account.ID)
		s.recordFailure(r.Context(), phone)
		s.sendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	s.clearFailures(r.Context(), phone)

	token, err := generateJWT(account.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for account %d: %v", account.ID, err)
		s.sendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for account %d", account.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: *account})
}

// Logout handles account logout
// @Summary Logout
// @Description Revoke the presented token until it expires
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /users/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		s.sendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if s.redis != nil && claims.ID != "" {
		expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
		if claims.ExpiresAt != nil {
			expiry = claims.ExpiresAt.Time.Sub(s.clock())
		}
		if expiry > 0 {
			if err := s.redis.Set(r.Context(), middleware.BlacklistKey(claims.ID), "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	log.Printf("[AUTH] Logout for account %d", claims.UserID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// Profile returns the authenticated account
// @Summary Get profile
// @Description Account display fields and global credit limit
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Account "Account details"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Account not found"
// @Router /users/profile [get]
func (s *AuthService) Profile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		log.Printf("[AUTH] Unauthorized profile request - no account in context")
		s.sendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := scanAccount(s.db.QueryRowContext(r.Context(), `
		SELECT `+accountColumns+` FROM users WHERE id = $1
	`, accountID))
	if err != nil {
		log.Printf("[AUTH] Failed to fetch account %d: %v", accountID, err)
		SendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// decode reads a single JSON object and validates it, writing the error response on failure.
func (s *AuthService) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		log.Printf("[AUTH] Invalid request: %v", err)
		s.sendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		s.sendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := s.validation.ValidateStruct(dst); err != nil {
		log.Printf("[AUTH] Validation failed: %v", err)
		s.sendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

func loginAttemptsKey(phone string) string {
	return fmt.Sprintf("login_attempts:%s", phone)
}

// lockedOut reports whether phone has used up its failed attempts. Redis
// errors fail open so an outage does not block every login.
func (s *AuthService) lockedOut(ctx context.Context, phone string) bool {
	maxAttempts := viper.GetInt("auth.max_login_attempts")
	if s.redis == nil || maxAttempts <= 0 {
		return false
	}
	attempts, err := s.redis.Get(ctx, loginAttemptsKey(phone)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[AUTH] Failed to read login attempts for %s: %v", phone, err)
		}
		return false
	}
	return attempts >= maxAttempts
}

func (s *AuthService) recordFailure(ctx context.Context, phone string) {
	if s.redis == nil {
		return
	}
	key := loginAttemptsKey(phone)
	attempts, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[AUTH] Failed to record login attempt for %s: %v", phone, err)
		return
	}
	if attempts == 1 {
		s.redis.Expire(ctx, key, viper.GetDuration("auth.lockout_window"))
	}
}

func (s *AuthService) clearFailures(ctx context.Context, phone string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, loginAttemptsKey(phone)).Err(); err != nil {
		log.Printf("[AUTH] Failed to clear login attempts for %s: %v", phone, err)
	}
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.FullName, &a.PhoneNumber, &a.PasswordHash, &a.GlobalCreditLimit, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &a, nil
}

func generateJWT(accountID int64) (string, error) {
	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		return "", errors.New("jwt secret key is not configured")
	}

	now := time.Now()
	claims := middleware.Claims{
		UserID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    viper.GetString("jwt.issuer"),
			Subject:   fmt.Sprintf("%d", accountID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

// verifyPassword accepts argon2 "salt$hash" credentials and legacy bcrypt hashes.
func verifyPassword(password, hashedPassword string) bool {
	if strings.HasPrefix(hashedPassword, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
	}

	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
