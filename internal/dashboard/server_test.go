package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Tenant{}, &models.Unit{}, &models.KilometerLog{}, &models.FuelCharge{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedFleet(t *testing.T, db *gorm.DB) (models.Unit, models.Unit) {
	t.Helper()
	u1 := models.Unit{TenantID: 1, UnitNumber: "U-01", OperatorName: "Pedro", Active: true}
	u2 := models.Unit{TenantID: 1, UnitNumber: "U-02", OperatorName: "María", Active: false}
	other := models.Unit{TenantID: 2, UnitNumber: "X-01", OperatorName: "Ana", Active: true}
	for _, u := range []*models.Unit{&u1, &u2, &other} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed unit: %v", err)
		}
	}
	return u1, u2
}

func doGET(t *testing.T, db *gorm.DB, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	router := NewRouter(db)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w, body
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnits_TenantScoped(t *testing.T) {
	db := openTestDB(t)
	seedFleet(t, db)

	w, body := doGET(t, db, "/api/tenants/1/units")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	units := body["units"].([]any)
	if len(units) != 2 {
		t.Fatalf("units = %d, want the tenant's two", len(units))
	}
	first := units[0].(map[string]any)
	if first["unit_number"] != "U-01" || first["active"] != true {
		t.Errorf("first unit = %+v, want active units ordered first", first)
	}
}

func TestUnits_BadTenantID(t *testing.T) {
	db := openTestDB(t)
	w, _ := doGET(t, db, "/api/tenants/abc/units")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestKilometers_Filtered(t *testing.T) {
	db := openTestDB(t)
	u1, _ := seedFleet(t, db)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	entries := []models.KilometerLog{
		{TenantID: 1, UnitID: u1.ID, LogDate: day, LogType: models.LogTypeShiftStart, Kilometers: 100, LogTime: day.Add(7 * time.Hour)},
		{TenantID: 1, UnitID: u1.ID, LogDate: day, LogType: models.LogTypeShiftEnd, Kilometers: 250, LogTime: day.Add(19 * time.Hour)},
		{TenantID: 1, UnitID: u1.ID, LogDate: day.AddDate(0, 0, 1), LogType: models.LogTypeShiftStart, Kilometers: 260, LogTime: day.Add(31 * time.Hour)},
	}
	for i := range entries {
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}

	_, body := doGET(t, db, "/api/tenants/1/kilometers?date=2026-03-14")
	if got := len(body["kilometers"].([]any)); got != 2 {
		t.Errorf("date filter rows = %d, want 2", got)
	}

	_, body = doGET(t, db, "/api/tenants/1/kilometers?date=2026-03-14&type=SHIFT_END")
	rows := body["kilometers"].([]any)
	if len(rows) != 1 {
		t.Fatalf("type filter rows = %d, want 1", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["kilometers"].(float64) != 250 || row["unit_number"] != "U-01" {
		t.Errorf("row = %+v", row)
	}

	w, _ := doGET(t, db, "/api/tenants/1/kilometers?type=LUNCH")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown type", w.Code)
	}
	w, _ = doGET(t, db, "/api/tenants/1/kilometers?date=14/03/2026")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed date", w.Code)
	}
}

func TestCharges_StatusFilterAndPendingTotals(t *testing.T) {
	db := openTestDB(t)
	u1, _ := seedFleet(t, db)

	now := time.Now().UTC()
	charges := []models.FuelCharge{
		{TenantID: 1, UnitID: u1.ID, Liters: 40, Amount: 900, FuelType: models.FuelTypeGas, RecordDate: now, PaymentStatus: models.PaymentPending},
		{TenantID: 1, UnitID: u1.ID, Liters: 60, Amount: 1500, FuelType: models.FuelTypeDiesel, RecordDate: now, PaymentStatus: models.PaymentPaid},
		{TenantID: 2, UnitID: 99, Liters: 10, Amount: 200, FuelType: models.FuelTypeGas, RecordDate: now, PaymentStatus: models.PaymentPending},
	}
	for i := range charges {
		if err := db.Create(&charges[i]).Error; err != nil {
			t.Fatalf("seed charge: %v", err)
		}
	}

	_, body := doGET(t, db, "/api/tenants/1/charges")
	if got := len(body["charges"].([]any)); got != 2 {
		t.Errorf("rows = %d, want the tenant's two charges", got)
	}
	if body["pending_count"].(float64) != 1 || body["pending_amount"].(float64) != 900 {
		t.Errorf("pending = %v / %v, want 1 / 900", body["pending_count"], body["pending_amount"])
	}

	_, body = doGET(t, db, "/api/tenants/1/charges?status=pending")
	rows := body["charges"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["payment_status"] != models.PaymentPending {
		t.Errorf("pending filter rows = %+v", rows)
	}

	w, _ := doGET(t, db, "/api/tenants/1/charges?status=gratis")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown status", w.Code)
	}
}

func TestMarkPaid(t *testing.T) {
	db := openTestDB(t)
	u1, _ := seedFleet(t, db)
	charge := models.FuelCharge{TenantID: 1, UnitID: u1.ID, Liters: 40, Amount: 900,
		FuelType: models.FuelTypeGas, RecordDate: time.Now().UTC(), PaymentStatus: models.PaymentPending}
	if err := db.Create(&charge).Error; err != nil {
		t.Fatalf("seed charge: %v", err)
	}

	router := NewRouter(db)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/charges/%d/pay", charge.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got models.FuelCharge
	db.First(&got, charge.ID)
	if got.PaymentStatus != models.PaymentPaid {
		t.Errorf("payment status = %q, want paid", got.PaymentStatus)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/charges/999/pay", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing charge", w.Code)
	}
}

func TestSSE_SendsConnectedEvent(t *testing.T) {
	db := openTestDB(t)
	router := NewRouter(db)

	// A pre-cancelled context makes the handler emit the connected event
	// and return instead of entering its poll loop.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/tenants/1/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "event: connected") {
		t.Errorf("body = %q, want the connected event", w.Body.String())
	}
}

func TestSSE_BadTenantID(t *testing.T) {
	db := openTestDB(t)
	w, _ := doGET(t, db, "/api/tenants/abc/events")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// The event feed must never leak another tenant's readings.
func TestSSE_ReadingsTenantScoped(t *testing.T) {
	db := openTestDB(t)
	u1, _ := seedFleet(t, db)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	entries := []models.KilometerLog{
		{TenantID: 2, UnitID: 99, LogDate: day, LogType: models.LogTypeShiftStart, Kilometers: 500, LogTime: day.Add(6 * time.Hour)},
		{TenantID: 1, UnitID: u1.ID, LogDate: day, LogType: models.LogTypeShiftStart, Kilometers: 100, LogTime: day.Add(7 * time.Hour)},
		{TenantID: 1, UnitID: u1.ID, LogDate: day, LogType: models.LogTypeShiftEnd, Kilometers: 250, LogTime: day.Add(19 * time.Hour), Omitted: true},
		{TenantID: 2, UnitID: 99, LogDate: day, LogType: models.LogTypeShiftEnd, Kilometers: 900, LogTime: day.Add(20 * time.Hour)},
	}
	for i := range entries {
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}

	// The high-water mark only counts the tenant's own rows.
	if got := latestReadingID(db, 1); got != entries[2].ID {
		t.Errorf("latestReadingID(1) = %d, want %d", got, entries[2].ID)
	}
	if got := latestReadingID(db, 3); got != 0 {
		t.Errorf("latestReadingID(3) = %d, want 0 for an unseeded tenant", got)
	}

	got := readingsSince(db, 1, 0)
	if len(got) != 1 {
		t.Fatalf("readings = %d, want only the tenant's non-omitted row", len(got))
	}
	if got[0].TenantID != 1 || got[0].Kilometers != 100 {
		t.Errorf("reading = %+v, want the tenant-1 shift start", got[0])
	}

	if got := readingsSince(db, 2, entries[0].ID); len(got) != 1 || got[0].Kilometers != 900 {
		t.Errorf("tenant-2 readings above high-water mark = %+v, want the later entry only", got)
	}
}
