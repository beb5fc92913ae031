package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
}

// SignupRequest represents the shop registration payload
// @Description Shop registration request structure
type SignupRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=120" example:"shop@example.com"` // Email or mobile number
	ShopName   string `json:"shopName" validate:"required,min=2,max=60" example:"Pagar General Store"` // Shop display name
	Password   string `json:"password" validate:"required,min=6" example:"password123"`                // Password
}

// LoginRequest represents the login payload
// @Description Login request structure
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required" example:"shop@example.com"` // Email or mobile number
	Password   string `json:"password" validate:"required,min=6" example:"password123"`  // Password
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string   `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Shop  ShopInfo `json:"shop"`                                                    // Shop information
}

// ShopInfo represents the authenticated shop
// @Description Shop structure
type ShopInfo struct {
	Identifier string `json:"identifier" example:"shop@example.com"` // Shop identifier
	Name       string `json:"name" example:"Pagar General Store"`    // Shop display name
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
	}
}

// Signup handles shop registration
// @Summary Register a new shop
// @Description Register a shop with an email or mobile identifier and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 201 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Identifier already registered"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/signup [post]
func (s *AuthService) Signup(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Signup attempt from IP: %s", r.RemoteAddr)

	req, ok := decodeAuthRequest[SignupRequest](w, r, s.validator)
	if !ok {
		return
	}

	identifier := strings.TrimSpace(strings.ToLower(req.Identifier))

	var existing string
	err := s.db.QueryRow("SELECT identifier FROM shops WHERE identifier = $1", identifier).Scan(&existing)
	if err == nil {
		log.Printf("[AUTH] Signup rejected, identifier already registered: %s", identifier)
		SendErrorResponse(w, "Email or mobile already registered. Please log in.", http.StatusConflict, nil)
		return
	}
	if err != sql.ErrNoRows {
		log.Printf("[AUTH] Signup lookup failed for %s: %v", identifier, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", identifier, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	_, err = s.db.Exec("INSERT INTO shops (identifier, name, password_hash, created_at) VALUES ($1, $2, $3, NOW())",
		identifier, strings.TrimSpace(req.ShopName), hashedPassword)
	if err != nil {
		log.Printf("[AUTH] Shop creation failed for %s: %v", identifier, err)
		SendErrorResponse(w, "Failed to create shop", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(identifier)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for %s: %v", identifier, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Shop registered successfully: %s", identifier)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{
		Token: token,
		Shop:  ShopInfo{Identifier: identifier, Name: strings.TrimSpace(req.ShopName)},
	})
}

// Login handles shop authentication
// @Summary Login shop
// @Description Authenticate a shop with identifier and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	req, ok := decodeAuthRequest[LoginRequest](w, r, s.validator)
	if !ok {
		return
	}

	identifier := strings.TrimSpace(strings.ToLower(req.Identifier))

	var shop ShopInfo
	var hashedPassword string
	err := s.db.QueryRow("SELECT identifier, name, password_hash FROM shops WHERE identifier = $1",
		identifier).Scan(&shop.Identifier, &shop.Name, &hashedPassword)
	if err != nil {
		log.Printf("[AUTH] Shop not found for identifier: %s", identifier)
		SendErrorResponse(w, "Invalid email/mobile or password", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for shop: %s", identifier)
		SendErrorResponse(w, "Invalid email/mobile or password", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(shop.Identifier)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for %s: %v", identifier, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Login successful for shop %s", identifier)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, Shop: shop})
}

// Logout handles shop logout
// @Summary Logout shop
// @Description Logout shop and blacklist the presented token
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			// Blacklist token until its expiration
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// decodeAuthRequest reads a single strict JSON object into T and validates it.
func decodeAuthRequest[T any](w http.ResponseWriter, r *http.Request, v *validator.Validate) (T, bool) {
	var req T

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Invalid request body: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return req, false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return req, false
	}

	if err := v.Struct(&req); err != nil {
		log.Printf("[AUTH] Validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return req, false
	}

	return req, true
}

func generateJWT(shopIdentifier string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"shop_identifier": shopIdentifier,
		"exp":             time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
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

func verifyPassword(password, hashedPassword string) bool {
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
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
