package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/creditbook/backend/internal/middleware"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var authNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func setupAuthConfig() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.issuer", "creditbook")
	viper.Set("jwt.expiry_hours", 24)
	viper.Set("auth.max_login_attempts", 5)
	viper.Set("auth.lockout_window", 15*time.Minute)
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "phone_number", "password", "global_credit_limit", "created_at"})
}

func TestAuthService_Signup(t *testing.T) {
	setupAuthConfig()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)
	service.clock = func() time.Time { return authNow }

	t.Run("successful signup", func(t *testing.T) {
		req := SignupRequest{FullName: "Ravi Kumar", PhoneNumber: "9876543210", Password: "password123"}

		mock.ExpectQuery("INSERT INTO users").
			WithArgs("Ravi Kumar", "9876543210", sqlmock.AnyArg(), authNow).
			WillReturnRows(accountRows().AddRow(1, "Ravi Kumar", "9876543210", "hash", nil, authNow))

		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/api/users/signup", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Signup(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, int64(1), response.User.ID)

		claims, err := middleware.ValidateToken(response.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(1), claims.UserID)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("duplicate phone number", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		body, _ := json.Marshal(SignupRequest{FullName: "Ravi Kumar", PhoneNumber: "9876543210", Password: "password123"})
		r := httptest.NewRequest("POST", "/api/users/signup", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Signup(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/users/signup", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Signup(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password", func(t *testing.T) {
		body, _ := json.Marshal(SignupRequest{FullName: "Ravi Kumar", PhoneNumber: "9876543210", Password: "123"})
		r := httptest.NewRequest("POST", "/api/users/signup", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Signup(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Login(t *testing.T) {
	setupAuthConfig()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)
	key := loginAttemptsKey("9876543210")

	login := func(password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(LoginRequest{PhoneNumber: "9876543210", Password: password})
		r := httptest.NewRequest("POST", "/api/users/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()
		service.Login(w, r)
		return w
	}

	t.Run("successful login", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		redisMock.ExpectGet(key).RedisNil()
		mock.ExpectQuery("SELECT (.+) FROM users WHERE phone_number").
			WithArgs("9876543210").
			WillReturnRows(accountRows().AddRow(1, "Ravi Kumar", "9876543210", hashedPassword, "1000.00", authNow))
		redisMock.ExpectDel(key).SetVal(1)

		w := login("password123")

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "1000", response.User.GlobalCreditLimit.Decimal.String())
	})

	t.Run("wrong password records a failure", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		redisMock.ExpectGet(key).SetVal("1")
		mock.ExpectQuery("SELECT (.+) FROM users WHERE phone_number").
			WithArgs("9876543210").
			WillReturnRows(accountRows().AddRow(1, "Ravi Kumar", "9876543210", hashedPassword, nil, authNow))
		redisMock.ExpectIncr(key).SetVal(2)

		w := login("wrong-password")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown account starts the lockout window", func(t *testing.T) {
		redisMock.ExpectGet(key).RedisNil()
		mock.ExpectQuery("SELECT (.+) FROM users WHERE phone_number").
			WithArgs("9876543210").
			WillReturnRows(accountRows())
		redisMock.ExpectIncr(key).SetVal(1)
		redisMock.ExpectExpire(key, 15*time.Minute).SetVal(true)

		w := login("password123")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("throttled after too many failures", func(t *testing.T) {
		redisMock.ExpectGet(key).SetVal("5")

		w := login("password123")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), `"kind":"RATE_LIMITED"`)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestAuthService_Logout(t *testing.T) {
	setupAuthConfig()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewAuthService(nil, redisClient)
	service.clock = func() time.Time { return authNow }

	t.Run("blacklists the token until expiry", func(t *testing.T) {
		claims := &middleware.Claims{
			UserID: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "token-1",
				ExpiresAt: jwt.NewNumericDate(authNow.Add(time.Hour)),
			},
		}
		redisMock.ExpectSet(middleware.BlacklistKey("token-1"), "1", time.Hour).SetVal("OK")

		r := httptest.NewRequest("POST", "/api/users/logout", nil)
		r = r.WithContext(middleware.WithClaims(r.Context(), claims))
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/users/logout", nil)
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestAuthService_Profile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(accountRows().AddRow(7, "Ravi Kumar", "9876543210", "secret-hash", "2500.00", authNow))

	r := httptest.NewRequest("GET", "/api/users/profile", nil)
	r = r.WithContext(middleware.WithClaims(r.Context(), &middleware.Claims{UserID: 7}))
	w := httptest.NewRecorder()

	service.Profile(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"full_name":"Ravi Kumar"`)
	assert.NotContains(t, w.Body.String(), "secret-hash")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig()

	password := "testpassword"

	hashed, err := hashPassword(password)
	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)

	assert.True(t, verifyPassword(password, hashed))
	assert.False(t, verifyPassword("wrongpassword", hashed))
	assert.False(t, verifyPassword(password, "not-a-hash"))
}

func TestVerifyPassword_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, verifyPassword("oldpassword", string(legacy)))
	assert.False(t, verifyPassword("newpassword", string(legacy)))
}

func TestGenerateJWT(t *testing.T) {
	setupAuthConfig()

	token, err := generateJWT(123)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := middleware.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(123), claims.UserID)
	assert.Equal(t, "creditbook", claims.Issuer)
}
