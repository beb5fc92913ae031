package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rohanpagar58/daily-ledger-app/internal/ledger"
	"github.com/rohanpagar58/daily-ledger-app/internal/middleware"
	"github.com/rohanpagar58/daily-ledger-app/internal/models"
)

type ReportService struct {
	db *sql.DB
}

// BankSummary is the per-bank aggregate inside a report
// @Description Per-bank report row
type BankSummary struct {
	Bank           string  `json:"bank" example:"State Bank"`        // Bank name
	TotalCredit    float64 `json:"totalCredit" example:"1500.00"`    // Credits in range
	TotalDebit     float64 `json:"totalDebit" example:"200.00"`      // Debits in range
	ClosingBalance float64 `json:"closingBalance" example:"2300.00"` // Remaining balance of the latest entry
}

// Report is the aggregate over a date range
// @Description Aggregate report structure
type Report struct {
	TotalCredit    float64  `json:"totalCredit" example:"1500.00"`     // Total credited
	TotalDebit     float64  `json:"totalDebit" example:"200.00"`       // Total debited
	MostUsedBank   string   `json:"mostUsedBank" example:"State Bank"` // Bank with the highest turnover
	TopBanks       []string `json:"topBanks"`                          // Top three banks by turnover
	HighestAmount  float64  `json:"highestAmount" example:"500.00"`    // Largest single entry amount
	HighestBank    string   `json:"highestBank" example:"State Bank"`  // Bank of the largest entry
	ClosingBalance float64  `json:"closingBalance" example:"2300.00"`  // Sum of per-bank closing balances
}

func NewReportService(db *sql.DB) *ReportService {
	return &ReportService{db: db}
}

// RangeReport returns entries and the aggregate report for a custom range
// @Summary Custom range report
// @Description Entries and aggregates between two dates (inclusive)
// @Tags reports
// @Produce json
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 400 {object} ErrorResponse "Missing range"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/range [get]
func (s *ReportService) RangeReport(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	if start == "" || end == "" {
		SendErrorResponse(w, "Provide start and end dates", http.StatusBadRequest, nil)
		return
	}

	s.respondWithRange(w, shop, start, end, true)
}

// DailyReport returns the aggregate report for one business date
// @Summary Daily report
// @Description Entries and aggregates for a single date
// @Tags reports
// @Produce json
// @Param date query string true "Business date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 400 {object} ErrorResponse "Missing date"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/daily [get]
func (s *ReportService) DailyReport(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	date := r.URL.Query().Get("date")

	if date == "" {
		SendErrorResponse(w, "Provide a report date", http.StatusBadRequest, nil)
		return
	}

	s.respondWithRange(w, shop, date, date, true)
}

// WeeklyReport returns the aggregate report for the current week
// @Summary Weekly report
// @Description Entries and aggregates from Monday of the current week through today
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/weekly [get]
func (s *ReportService) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)

	today := time.Now()
	weekday := int(today.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started six days back
	}
	monday := today.AddDate(0, 0, -(weekday - 1))

	s.respondWithRange(w, shop, monday.Format(ledger.DateLayout), today.Format(ledger.DateLayout), false)
}

// MonthlyReport returns the aggregate report for one month
// @Summary Monthly report
// @Description Entries and aggregates for a month (YYYY-MM)
// @Tags reports
// @Produce json
// @Param month query string true "Report month (YYYY-MM)"
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 400 {object} ErrorResponse "Missing month"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/monthly [get]
func (s *ReportService) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	month := r.URL.Query().Get("month")

	if !monthPattern.MatchString(month) {
		SendErrorResponse(w, "Provide month=YYYY-MM", http.StatusBadRequest, nil)
		return
	}

	s.respondWithPrefix(w, shop, month)
}

// YearlyReport returns the aggregate report for one year
// @Summary Yearly report
// @Description Entries and aggregates for a year (YYYY)
// @Tags reports
// @Produce json
// @Param year query string true "Report year (YYYY)"
// @Success 200 {object} map[string]interface{} "Report"
// @Failure 400 {object} ErrorResponse "Missing year"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/yearly [get]
func (s *ReportService) YearlyReport(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	year := r.URL.Query().Get("year")

	if !yearPattern.MatchString(year) {
		SendErrorResponse(w, "Provide year=YYYY", http.StatusBadRequest, nil)
		return
	}

	s.respondWithPrefix(w, shop, year)
}

// ExportReport streams the range report as a spreadsheet
// @Summary Export report
// @Description Download the report for a date range as an XLSX workbook
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD)"
// @Success 200 {file} binary "Workbook"
// @Failure 400 {object} ErrorResponse "Missing range"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/export [get]
func (s *ReportService) ExportReport(w http.ResponseWriter, r *http.Request) {
	shop := middleware.ShopIdentifier(r)
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	if start == "" || end == "" {
		SendErrorResponse(w, "Provide start and end dates", http.StatusBadRequest, nil)
		return
	}

	entries, err := s.fetchRange(shop, start, end)
	if err != nil {
		log.Printf("[REPORT] Failed to load range %s..%s for shop %s: %v", start, end, shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}

	report, bankWise := BuildReport(entries)

	payload, err := reportXLSX(start, end, report, bankWise)
	if err != nil {
		log.Printf("[REPORT] Failed to render workbook for shop %s: %v", shop, err)
		SendErrorResponse(w, "Failed to render report", http.StatusInternalServerError, nil)
		return
	}

	filename := fmt.Sprintf("ledger-report-%s-to-%s.xlsx", start, end)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(payload)
}

// BuildReport aggregates entries into the report summary and per-bank rows.
// Each bank's closing balance is the remaining balance of its latest entry by
// entry datetime; per-bank rows are sorted by name, top banks by turnover.
func BuildReport(entries []models.Entry) (Report, []BankSummary) {
	report := Report{MostUsedBank: "N/A", HighestBank: "N/A", TopBanks: []string{}}

	type bankAgg struct {
		credit, debit, close float64
		at                   time.Time
	}
	summary := map[string]*bankAgg{}

	for _, e := range entries {
		report.TotalCredit += e.Credited
		report.TotalDebit += e.Debited

		at := ledger.EntryTime(e.Date, e.Time)
		agg, ok := summary[e.BankName]
		if !ok {
			agg = &bankAgg{close: e.RemainingBalance, at: at}
			summary[e.BankName] = agg
		}
		agg.credit += e.Credited
		agg.debit += e.Debited
		if !at.Before(agg.at) {
			agg.close = e.RemainingBalance
			agg.at = at
		}

		amt := e.Credited
		if e.Debited > amt {
			amt = e.Debited
		}
		if amt >= report.HighestAmount {
			report.HighestAmount = amt
			report.HighestBank = e.BankName
		}
	}

	bankWise := make([]BankSummary, 0, len(summary))
	for name, agg := range summary {
		bankWise = append(bankWise, BankSummary{
			Bank:           name,
			TotalCredit:    agg.credit,
			TotalDebit:     agg.debit,
			ClosingBalance: agg.close,
		})
		report.ClosingBalance += agg.close
	}
	sort.Slice(bankWise, func(i, j int) bool {
		return strings.ToLower(bankWise[i].Bank) < strings.ToLower(bankWise[j].Bank)
	})

	top := make([]BankSummary, len(bankWise))
	copy(top, bankWise)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].TotalCredit+top[i].TotalDebit > top[j].TotalCredit+top[j].TotalDebit
	})
	if len(top) > 0 {
		report.MostUsedBank = top[0].Bank
	}
	for i := 0; i < len(top) && i < 3; i++ {
		report.TopBanks = append(report.TopBanks, top[i].Bank)
	}

	return report, bankWise
}

func (s *ReportService) respondWithRange(w http.ResponseWriter, shop, start, end string, includeEntries bool) {
	entries, err := s.fetchRange(shop, start, end)
	if err != nil {
		log.Printf("[REPORT] Failed to load range %s..%s for shop %s: %v", start, end, shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	s.respond(w, entries, start, end, includeEntries)
}

func (s *ReportService) respondWithPrefix(w http.ResponseWriter, shop, prefix string) {
	entries, err := s.queryEntries(`
		SELECT `+entrySelectColumns+`
		FROM entries
		WHERE shop_identifier = $1 AND entry_date LIKE $2`,
		shop, prefix+"%")
	if err != nil {
		log.Printf("[REPORT] Failed to load period %s for shop %s: %v", prefix, shop, err)
		SendErrorResponse(w, "Database error occurred. Please try again.", http.StatusInternalServerError, nil)
		return
	}
	s.respond(w, entries, prefix, prefix, false)
}

func (s *ReportService) respond(w http.ResponseWriter, entries []models.Entry, start, end string, includeEntries bool) {
	report, bankWise := BuildReport(entries)

	payload := map[string]interface{}{
		"report":   report,
		"bankWise": bankWise,
		"start":    start,
		"end":      end,
	}
	if includeEntries {
		// Newest first for display, mirroring the entry listing.
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Date != entries[j].Date {
				return entries[i].Date > entries[j].Date
			}
			return entries[i].Time > entries[j].Time
		})
		payload["entries"] = entries
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *ReportService) fetchRange(shop, start, end string) ([]models.Entry, error) {
	return s.queryEntries(`
		SELECT `+entrySelectColumns+`
		FROM entries
		WHERE shop_identifier = $1 AND entry_date >= $2 AND entry_date <= $3`,
		shop, start, end)
}

func (s *ReportService) queryEntries(query string, args ...interface{}) ([]models.Entry, error) {
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

// reportXLSX renders the aggregate report and per-bank rows as a workbook.
func reportXLSX(start, end string, report Report, bankWise []BankSummary) ([]byte, error) {
	xlsx := excelize.NewFile()
	sheet := xlsx.GetSheetName(xlsx.GetActiveSheetIndex())

	_ = xlsx.SetColWidth(sheet, "A", "A", 30)
	_ = xlsx.SetColWidth(sheet, "B", "D", 16)

	bold, _ := xlsx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	row := 1
	setRow := func(values ...interface{}) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = xlsx.SetCellValue(sheet, cell, v)
		}
		row++
	}

	setRow(fmt.Sprintf("Ledger Report %s to %s", start, end))
	_ = xlsx.SetCellStyle(sheet, "A1", "A1", bold)
	row++

	setRow("Bank", "Total Credit", "Total Debit", "Closing Balance")
	_ = xlsx.SetCellStyle(sheet, fmt.Sprintf("A%d", row-1), fmt.Sprintf("D%d", row-1), bold)
	for _, b := range bankWise {
		setRow(b.Bank, b.TotalCredit, b.TotalDebit, b.ClosingBalance)
	}
	row++

	setRow("Total Credit", report.TotalCredit)
	setRow("Total Debit", report.TotalDebit)
	setRow("Closing Balance", report.ClosingBalance)
	setRow("Most Used Bank", report.MostUsedBank)
	setRow("Highest Amount", report.HighestAmount)
	setRow("Highest Bank", report.HighestBank)
	setRow("Top Banks", strings.Join(report.TopBanks, ", "))

	buf, err := xlsx.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
