package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rohanpagar58/daily-ledger-app/internal/ledger"
	"github.com/rohanpagar58/daily-ledger-app/internal/middleware"
	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

type BankService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
}

// BankRequest represents the bank create/edit payload
// @Description Bank request structure
type BankRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=60" example:"State Bank"` // Bank name, unique per shop
	OpeningBalance float64 `json:"openingBalance" validate:"gte=0" example:"1000.00"`          // Non-negative opening balance
}

// BalanceResponse is the date-aware available balance for a bank
// @Description Balance response structure
type BalanceResponse struct {
	Balance float64 `json:"balance" example:"1500.00"` // Available balance at the requested date
}

func NewBankService(db *sql.DB, engine *ledger.Engine) *BankService {
	return &BankService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// ListBanks returns every bank belonging to the authenticated shop
// @Summary List banks
// @Description List all banks for the authenticated shop
// @Tags banks
// @Produce json
// @Success 200 {object} map[string]interface{} "Banks"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /banks [get]
func (s *BankService) ListBanks(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)

	banks, err := s.fetchBanks(shop)
	if err != nil {
		log.Printf("[BANK] Failed to list banks for shop %s: %v", shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"banks": banks,
		"count": len(banks),
	})
}

// CreateBank registers a new bank for the shop
// @Summary Create bank
// @Description Create a bank with a unique name and non-negative opening balance
// @Tags banks
// @Accept json
// @Produce json
// @Param request body BankRequest true "Bank request"
// @Success 201 {object} models.Bank "Bank created"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Bank name already exists"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /banks [post]
func (s *BankService) CreateBank(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)

	req, ok := s.decodeBankRequest(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		SendErrorResponse(w, "Enter a valid bank name", http.StatusBadRequest, nil)
		return
	}

	taken, err := s.nameTaken(shop, name, "")
	if err != nil {
		log.Printf("[BANK] Duplicate check failed for shop %s: %v", shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	if taken {
		SendErrorResponse(w, "Bank name already exists", http.StatusConflict, nil)
		return
	}

	bank := models.Bank{
		ID:             uuid.New().String(),
		ShopIdentifier: shop,
		Name:           name,
		OpeningBalance: req.OpeningBalance,
		CreatedAt:      time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO banks (id, shop_identifier, name, opening_balance, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		bank.ID, bank.ShopIdentifier, bank.Name, bank.OpeningBalance, bank.CreatedAt)
	if err != nil {
		log.Printf("[BANK] Failed to create bank for shop %s: %v", shop, err)
		SendErrorResponse(w, "Failed to add bank.", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BANK] Bank %q created for shop %s", bank.Name, shop)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bank)
}

// UpdateBank edits a bank's name or opening balance. Changing the opening
// balance invalidates the entire balance chain, so a full recalculation runs
// afterwards.
// @Summary Update bank
// @Description Edit a bank's name or opening balance and rebuild its balance chain
// @Tags banks
// @Accept json
// @Produce json
// @Param bankID path string true "Bank ID"
// @Param request body BankRequest true "Bank request"
// @Success 200 {object} models.Bank "Bank updated"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 404 {object} ErrorResponse "Bank not found"
// @Failure 409 {object} ErrorResponse "Bank name already exists"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /banks/{bankID} [put]
func (s *BankService) UpdateBank(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	bankID := chi.URLParam(r, "bankID")

	bank, err := s.fetchBank(shop, bankID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Bank not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[BANK] Failed to load bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	req, ok := s.decodeBankRequest(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		SendErrorResponse(w, "Enter a valid bank name", http.StatusBadRequest, nil)
		return
	}

	taken, err := s.nameTaken(shop, name, bankID)
	if err != nil {
		log.Printf("[BANK] Duplicate check failed for shop %s: %v", shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	if taken {
		SendErrorResponse(w, "Bank name already exists", http.StatusConflict, nil)
		return
	}

	// Entries carry the bank name redundantly for reporting, so a rename has
	// to touch them too.
	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[BANK] Failed to begin update for bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE banks SET name = $1, opening_balance = $2 WHERE id = $3 AND shop_identifier = $4",
		name, req.OpeningBalance, bankID, shop); err != nil {
		log.Printf("[BANK] Failed to update bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	if _, err := tx.Exec("UPDATE entries SET bank_name = $1 WHERE bank_id = $2 AND shop_identifier = $3",
		name, bankID, shop); err != nil {
		log.Printf("[BANK] Failed to rename entries for bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[BANK] Failed to commit update for bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	// The whole chain hangs off the opening balance, so rebuild from the top.
	if err := s.engine.Recalculate(shop, bankID, ""); err != nil {
		log.Printf("[BANK] Recalculation failed after bank %s update: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	bank.Name = name
	bank.OpeningBalance = req.OpeningBalance

	log.Printf("[BANK] Bank %s updated for shop %s", bankID, shop)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bank)
}

// DeleteBank removes a bank and every entry posted against it
// @Summary Delete bank
// @Description Delete a bank, cascading to all of its entries
// @Tags banks
// @Produce json
// @Param bankID path string true "Bank ID"
// @Success 200 {object} map[string]string "Bank deleted"
// @Failure 404 {object} ErrorResponse "Bank not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /banks/{bankID} [delete]
func (s *BankService) DeleteBank(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	bankID := chi.URLParam(r, "bankID")

	// Entries cascade via the bank_id foreign key.
	res, err := s.db.Exec("DELETE FROM banks WHERE id = $1 AND shop_identifier = $2", bankID, shop)
	if err != nil {
		log.Printf("[BANK] Failed to delete bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		SendErrorResponse(w, "Bank not found", http.StatusNotFound, nil)
		return
	}

	log.Printf("[BANK] Bank %s deleted for shop %s", bankID, shop)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Bank deleted"})
}

// BankBalance returns the available balance for a bank as of a date
// @Summary Date-aware bank balance
// @Description Resolve the available balance for a bank at or before a business date
// @Tags banks
// @Produce json
// @Param bankID path string true "Bank ID"
// @Param date query string false "Business date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} BalanceResponse "Balance"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /banks/{bankID}/balance [get]
func (s *BankService) BankBalance(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	bankID := chi.URLParam(r, "bankID")

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(ledger.DateLayout)
	}

	w.Header().Set("Content-Type", "application/json")

	bank, err := s.fetchBank(shop, bankID)
	if err == sql.ErrNoRows {
		// Unknown bank reports zero rather than erroring, matching the
		// entry form's live balance lookup.
		json.NewEncoder(w).Encode(BalanceResponse{Balance: 0})
		return
	}
	if err != nil {
		log.Printf("[BANK] Failed to load bank %s for balance: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	balance, err := s.engine.ResolveOpeningBalance(bank, date)
	if err != nil {
		log.Printf("[BANK] Balance resolution failed for bank %s: %v", bankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	json.NewEncoder(w).Encode(BalanceResponse{Balance: balance})
}

func (s *BankService) decodeBankRequest(w http.ResponseWriter, r *http.Request) (BankRequest, bool) {
	var req BankRequest

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return req, false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return req, false
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return req, false
	}

	return req, true
}

func (s *BankService) nameTaken(shop, name, excludeID string) (bool, error) {
	var id string
	var err error
	if excludeID == "" {
		err = s.db.QueryRow(
			"SELECT id FROM banks WHERE shop_identifier = $1 AND LOWER(name) = LOWER($2)",
			shop, name).Scan(&id)
	} else {
		err = s.db.QueryRow(
			"SELECT id FROM banks WHERE shop_identifier = $1 AND LOWER(name) = LOWER($2) AND id != $3",
			shop, name, excludeID).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *BankService) fetchBank(shop, bankID string) (*models.Bank, error) {
	bank := &models.Bank{}
	err := s.db.QueryRow(`
		SELECT id, shop_identifier, name, opening_balance, created_at
		FROM banks
		WHERE id = $1 AND shop_identifier = $2`,
		bankID, shop).Scan(
		&bank.ID, &bank.ShopIdentifier, &bank.Name, &bank.OpeningBalance, &bank.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return bank, nil
}

func (s *BankService) fetchBanks(shop string) ([]models.Bank, error) {
	rows, err := s.db.Query(`
		SELECT id, shop_identifier, name, opening_balance, created_at
		FROM banks
		WHERE shop_identifier = $1
		ORDER BY created_at`,
		shop)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	banks := []models.Bank{}
	for rows.Next() {
		var bank models.Bank
		if err := rows.Scan(&bank.ID, &bank.ShopIdentifier, &bank.Name, &bank.OpeningBalance, &bank.CreatedAt); err != nil {
			return nil, err
		}
		banks = append(banks, bank)
	}
	return banks, rows.Err()
}
