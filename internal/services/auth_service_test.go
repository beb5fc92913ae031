package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	viper.Set("jwt.secret_key", "test-secret-key")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func TestPasswordHashing(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		hashed, err := hashPassword("secret123")
		require.NoError(t, err)
		assert.Contains(t, hashed, "$")
		assert.True(t, verifyPassword("secret123", hashed))
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		hashed, err := hashPassword("secret123")
		require.NoError(t, err)
		assert.False(t, verifyPassword("secret124", hashed))
	})

	t.Run("salts differ per hash", func(t *testing.T) {
		a, err := hashPassword("secret123")
		require.NoError(t, err)
		b, err := hashPassword("secret123")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("malformed stored hash rejected", func(t *testing.T) {
		assert.False(t, verifyPassword("secret123", "not-a-valid-hash"))
		assert.False(t, verifyPassword("secret123", "!!$!!"))
	})
}

func TestSignup(t *testing.T) {
	t.Run("registers new shop", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		mock.ExpectQuery(`SELECT identifier FROM shops`).
			WithArgs("shop@example.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(`INSERT INTO shops`).
			WithArgs("shop@example.com", "Pagar General Store", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		body := `{"identifier": "Shop@Example.com", "shopName": "Pagar General Store", "password": "secret123"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var resp AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "shop@example.com", resp.Shop.Identifier)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate identifier conflicts", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		mock.ExpectQuery(`SELECT identifier FROM shops`).
			WithArgs("shop@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"identifier"}).AddRow("shop@example.com"))

		body := `{"identifier": "shop@example.com", "shopName": "Pagar General Store", "password": "secret123"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		body := `{"identifier": "shop@example.com", "shopName": "Shop", "password": "secret123", "role": "admin"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		body := `{"identifier": "shop@example.com", "shopName": "Shop", "password": "abc"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Signup(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		hashed, err := hashPassword("secret123")
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT identifier, name, password_hash FROM shops`).
			WithArgs("shop@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"identifier", "name", "password_hash"}).
				AddRow("shop@example.com", "Pagar General Store", hashed))

		body := `{"identifier": "shop@example.com", "password": "secret123"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "Pagar General Store", resp.Shop.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password unauthorized", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		hashed, err := hashPassword("secret123")
		require.NoError(t, err)

		mock.ExpectQuery(`SELECT identifier, name, password_hash FROM shops`).
			WithArgs("shop@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"identifier", "name", "password_hash"}).
				AddRow("shop@example.com", "Pagar General Store", hashed))

		body := `{"identifier": "shop@example.com", "password": "wrong-pass"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown shop unauthorized", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		service := NewAuthService(db, nil)

		mock.ExpectQuery(`SELECT identifier, name, password_hash FROM shops`).
			WithArgs("ghost@example.com").
			WillReturnError(sql.ErrNoRows)

		body := `{"identifier": "ghost@example.com", "password": "secret123"}`
		req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLogout(t *testing.T) {
	t.Run("blacklists presented token", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewAuthService(nil, redisClient)

		redisMock.ExpectSet("blacklist:some-jwt-token", "1", time.Hour).SetVal("OK")

		req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer some-jwt-token")
		w := httptest.NewRecorder()

		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("succeeds without token", func(t *testing.T) {
		service := NewAuthService(nil, nil)

		req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
		w := httptest.NewRecorder()

		service.Logout(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
