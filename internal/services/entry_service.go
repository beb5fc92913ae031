package services

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rohanpagar58/daily-ledger-app/internal/ledger"
	"github.com/rohanpagar58/daily-ledger-app/internal/middleware"
	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

type EntryService struct {
	db        *sql.DB
	engine    *ledger.Engine
	validator *ValidationHelper
}

// CreateEntryRequest represents the entry creation payload
// @Description Entry creation request structure
type CreateEntryRequest struct {
	BankID   string  `json:"bankId" validate:"required,uuid4" example:"7b0d1b6e-8a1c-4f2e-9b3a-0c8d2f1e4a5b"` // Target bank
	Date     string  `json:"date" validate:"required,datetime=2006-01-02" example:"2025-07-14"`               // Business date
	Credited float64 `json:"credited" validate:"gte=0" example:"500.00"`                                      // Credited amount
	Debited  float64 `json:"debited" validate:"gte=0" example:"0"`                                            // Debited amount
}

// AmendEntryRequest represents the same-day entry edit payload
// @Description Entry edit request structure
type AmendEntryRequest struct {
	Credited float64 `json:"credited" validate:"gte=0" example:"0"`     // Credited amount
	Debited  float64 `json:"debited" validate:"gte=0" example:"200.00"` // Debited amount
}

var (
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
)

func NewEntryService(db *sql.DB, engine *ledger.Engine) *EntryService {
	return &EntryService{
		db:        db,
		engine:    engine,
		validator: NewValidationHelper(),
	}
}

// ListEntries returns the shop's entries, newest first
// @Summary List entries
// @Description List all entries for the authenticated shop, newest first
// @Tags entries
// @Produce json
// @Param bankId query string false "Filter by bank ID"
// @Success 200 {object} map[string]interface{} "Entries"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /entries [get]
func (s *EntryService) ListEntries(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	bankID := r.URL.Query().Get("bankId")

	query := `
		SELECT ` + entrySelectColumns + `
		FROM entries
		WHERE shop_identifier = $1`
	args := []interface{}{shop}
	if bankID != "" {
		query += " AND bank_id = $2"
		args = append(args, bankID)
	}
	query += " ORDER BY entry_at DESC, created_at DESC"

	entries, err := s.queryEntries(query, args...)
	if err != nil {
		log.Printf("[ENTRY] Failed to list entries for shop %s: %v", shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// CreateEntry posts a credit or debit against a bank
// @Summary Create entry
// @Description Post a credit or debit entry; a debit exceeding the available balance is refused
// @Tags entries
// @Accept json
// @Produce json
// @Param request body CreateEntryRequest true "Entry request"
// @Success 201 {object} models.Entry "Entry created"
// @Failure 400 {object} ErrorResponse "Invalid request or insufficient balance"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /entries [post]
func (s *EntryService) CreateEntry(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)

	var req CreateEntryRequest
	if !s.decodeEntryRequest(w, r, &req) {
		return
	}

	if req.Credited > 0 && req.Debited > 0 {
		SendErrorResponse(w, "Enter either credited or debited amount, not both", http.StatusBadRequest, nil)
		return
	}
	if req.Credited == 0 && req.Debited == 0 {
		SendErrorResponse(w, "Please enter credited or debited amount", http.StatusBadRequest, nil)
		return
	}

	bank, err := s.fetchBank(shop, req.BankID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Invalid bank selection", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		log.Printf("[ENTRY] Failed to load bank %s: %v", req.BankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	opening, err := s.engine.ResolveOpeningBalance(bank, req.Date)
	if err != nil {
		log.Printf("[ENTRY] Balance resolution failed for bank %s: %v", req.BankID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	// A debit can never take the chain below zero, so refuse before writing.
	if req.Debited > opening {
		SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
		return
	}

	now := time.Now()
	entry := models.Entry{
		ID:               uuid.New().String(),
		BankID:           bank.ID,
		BankName:         bank.Name,
		ShopIdentifier:   shop,
		Date:             req.Date,
		Time:             now.Format(ledger.TimeLayout),
		Credited:         req.Credited,
		Debited:          req.Debited,
		OpeningBalance:   opening,
		RemainingBalance: opening + req.Credited - req.Debited,
		CreatedAt:        now,
	}
	entry.EntryAt = ledger.EntryTime(entry.Date, entry.Time)

	_, err = s.db.Exec(`
		INSERT INTO entries (id, bank_id, bank_name, shop_identifier, entry_date, entry_time,
		                     entry_at, credited, debited, opening_balance, remaining_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.BankID, entry.BankName, entry.ShopIdentifier, entry.Date, entry.Time,
		entry.EntryAt, entry.Credited, entry.Debited, entry.OpeningBalance, entry.RemainingBalance, entry.CreatedAt)
	if err != nil {
		log.Printf("[ENTRY] Failed to insert entry for bank %s: %v", bank.ID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	// A backdated entry leaves every later entry stale, so recalculate the
	// chain from the entry's date forward. The insert itself has committed;
	// a failed recalculation self-heals on the next one.
	if err := s.engine.Recalculate(shop, bank.ID, req.Date); err != nil {
		log.Printf("[ENTRY] Recalculation failed after insert for bank %s: %v", bank.ID, err)
	}

	log.Printf("[ENTRY] Entry %s created for bank %s on %s", entry.ID, bank.ID, entry.Date)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// AmendEntry edits a same-day entry's amounts
// @Summary Amend entry
// @Description Edit a same-day entry's credited/debited amounts and rebuild the chain
// @Tags entries
// @Accept json
// @Produce json
// @Param entryID path string true "Entry ID"
// @Param request body AmendEntryRequest true "Amend request"
// @Success 200 {object} map[string]string "Entry updated"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 403 {object} ErrorResponse "Editing past entries is not allowed"
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /entries/{entryID} [put]
func (s *EntryService) AmendEntry(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	entryID := chi.URLParam(r, "entryID")

	entry, err := s.fetchEntry(shop, entryID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Entry not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ENTRY] Failed to load entry %s: %v", entryID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	// Corrections are restricted to the current business day to bound the
	// blast radius of ad-hoc edits.
	if entry.Date != time.Now().Format(ledger.DateLayout) {
		SendErrorResponse(w, "Editing past entries is not allowed", http.StatusForbidden, nil)
		return
	}

	var req AmendEntryRequest
	if !s.decodeEntryRequest(w, r, &req) {
		return
	}
	if req.Credited > 0 && req.Debited > 0 {
		SendErrorResponse(w, "Enter either credited or debited amount, not both", http.StatusBadRequest, nil)
		return
	}

	_, err = s.db.Exec("UPDATE entries SET credited = $1, debited = $2 WHERE id = $3 AND shop_identifier = $4",
		req.Credited, req.Debited, entryID, shop)
	if err != nil {
		log.Printf("[ENTRY] Failed to update entry %s: %v", entryID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	if err := s.engine.Recalculate(shop, entry.BankID, entry.Date); err != nil {
		log.Printf("[ENTRY] Recalculation failed after amending entry %s: %v", entryID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ENTRY] Entry %s amended for bank %s", entryID, entry.BankID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Entry updated"})
}

// DeleteEntry removes a same-day entry
// @Summary Delete entry
// @Description Delete a same-day entry and rebuild the chain from its date
// @Tags entries
// @Produce json
// @Param entryID path string true "Entry ID"
// @Success 200 {object} map[string]string "Entry deleted"
// @Failure 403 {object} ErrorResponse "Deleting past entries is not allowed"
// @Failure 404 {object} ErrorResponse "Entry not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /entries/{entryID} [delete]
func (s *EntryService) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	entryID := chi.URLParam(r, "entryID")

	entry, err := s.fetchEntry(shop, entryID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Entry not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ENTRY] Failed to load entry %s: %v", entryID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	if entry.Date != time.Now().Format(ledger.DateLayout) {
		SendErrorResponse(w, "Deleting past entries is not allowed", http.StatusForbidden, nil)
		return
	}

	if _, err := s.db.Exec("DELETE FROM entries WHERE id = $1 AND shop_identifier = $2", entryID, shop); err != nil {
		log.Printf("[ENTRY] Failed to delete entry %s: %v", entryID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	if err := s.engine.Recalculate(shop, entry.BankID, entry.Date); err != nil {
		log.Printf("[ENTRY] Recalculation failed after deleting entry %s: %v", entryID, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ENTRY] Entry %s deleted for bank %s", entryID, entry.BankID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Entry deleted"})
}

// DeletePeriod wipes all entries in a month or year
// @Summary Bulk delete entries
// @Description Delete all entries in a month (YYYY-MM) or year (YYYY), optionally for one bank, then rebuild every affected chain
// @Tags entries
// @Produce json
// @Param month query string false "Month to wipe (YYYY-MM)"
// @Param year query string false "Year to wipe (YYYY)"
// @Param bankId query string false "Restrict the wipe to one bank"
// @Success 200 {object} map[string]interface{} "Entries deleted"
// @Failure 400 {object} ErrorResponse "Invalid period"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /entries/period [delete]
func (s *EntryService) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	month := r.URL.Query().Get("month")
	year := r.URL.Query().Get("year")
	bankID := r.URL.Query().Get("bankId")

	var prefix string
	switch {
	case month != "" && monthPattern.MatchString(month):
		prefix = month
	case year != "" && yearPattern.MatchString(year):
		prefix = year
	default:
		SendErrorResponse(w, "Provide month=YYYY-MM or year=YYYY", http.StatusBadRequest, nil)
		return
	}

	// Everything dated after the wiped range goes stale too, so record each
	// affected bank's earliest wiped date before deleting.
	affected, err := s.affectedBanks(shop, prefix, bankID)
	if err != nil {
		log.Printf("[ENTRY] Failed to scope period delete for shop %s: %v", shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	query := "DELETE FROM entries WHERE shop_identifier = $1 AND entry_date LIKE $2"
	args := []interface{}{shop, prefix + "%"}
	if bankID != "" {
		query += " AND bank_id = $3"
		args = append(args, bankID)
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		log.Printf("[ENTRY] Period delete failed for shop %s: %v", shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	deleted, _ := res.RowsAffected()

	for affectedBankID, fromDate := range affected {
		if err := s.engine.Recalculate(shop, affectedBankID, fromDate); err != nil {
			log.Printf("[ENTRY] Recalculation failed after period delete for bank %s: %v", affectedBankID, err)
		}
	}

	log.Printf("[ENTRY] Period %q wiped for shop %s, %d entries deleted, %d banks recalculated",
		prefix, shop, deleted, len(affected))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Entries deleted",
		"deleted": deleted,
	})
}

const entrySelectColumns = `id, bank_id, bank_name, shop_identifier, entry_date, entry_time,
		       entry_at, credited, debited, opening_balance, remaining_balance, created_at`

func (s *EntryService) decodeEntryRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := s.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}

	return true
}

func (s *EntryService) fetchBank(shop, bankID string) (*models.Bank, error) {
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

func (s *EntryService) fetchEntry(shop, entryID string) (*models.Entry, error) {
	row := s.db.QueryRow(`
		SELECT `+entrySelectColumns+`
		FROM entries
		WHERE id = $1 AND shop_identifier = $2`,
		entryID, shop)

	var entry models.Entry
	var entryAt sql.NullTime
	err := row.Scan(
		&entry.ID, &entry.BankID, &entry.BankName, &entry.ShopIdentifier, &entry.Date, &entry.Time,
		&entryAt, &entry.Credited, &entry.Debited, &entry.OpeningBalance, &entry.RemainingBalance, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if entryAt.Valid {
		entry.EntryAt = entryAt.Time
	}
	return &entry, nil
}

func (s *EntryService) queryEntries(query string, args ...interface{}) ([]models.Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var entry models.Entry
		var entryAt sql.NullTime
		err := rows.Scan(
			&entry.ID, &entry.BankID, &entry.BankName, &entry.ShopIdentifier, &entry.Date, &entry.Time,
			&entryAt, &entry.Credited, &entry.Debited, &entry.OpeningBalance, &entry.RemainingBalance, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if entryAt.Valid {
			entry.EntryAt = entryAt.Time
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// affectedBanks maps each bank with entries in the wiped period to the
// earliest date being removed, which is where its recalculation must start.
func (s *EntryService) affectedBanks(shop, prefix, bankID string) (map[string]string, error) {
	query := `
		SELECT bank_id, MIN(entry_date)
		FROM entries
		WHERE shop_identifier = $1 AND entry_date LIKE $2`
	args := []interface{}{shop, prefix + "%"}
	if bankID != "" {
		query += " AND bank_id = $3"
		args = append(args, bankID)
	}
	query += " GROUP BY bank_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	affected := map[string]string{}
	for rows.Next() {
		var id, minDate string
		if err := rows.Scan(&id, &minDate); err != nil {
			return nil, err
		}
		affected[id] = minDate
	}
	return affected, rows.Err()
}
