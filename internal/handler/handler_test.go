package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"student-deals-admin-api/internal/cache"
	"student-deals-admin-api/internal/database"
	"student-deals-admin-api/internal/features"
	"student-deals-admin-api/internal/middleware"
	"student-deals-admin-api/internal/models"
	"student-deals-admin-api/internal/service"
)

const testSecret = "test-admin-secret"

type statsEnvelope struct {
	Success bool                  `json:"success"`
	Data    models.DashboardStats `json:"data"`
	Error   string                `json:"error"`
}

type studentEnvelope struct {
	Success bool                     `json:"success"`
	Data    models.StudentAdminStats `json:"data"`
	Error   string                   `json:"error"`
}

func setupTestHandler(t *testing.T, opts Options) (*Handler, *database.DB) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test_handler.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := service.NewService(db, nil)
	return NewHandlerWithOptions(svc, opts), db
}

func setupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth([]byte(testSecret), middleware.DefaultAdminCookieName))
		r.Get("/stats", h.GetDashboardStats)
		r.Get("/students/{student_id}/stats", h.GetStudentAdminStats)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

func sessionCookie(t *testing.T, role string) *http.Cookie {
	t.Helper()

	claims := middleware.AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign session token: %v", err)
	}

	return &http.Cookie{Name: middleware.DefaultAdminCookieName, Value: signed}
}

func TestHealthCheck(t *testing.T) {
	h, _ := setupTestHandler(t, Options{})
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	if rr.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rr.Body.String())
	}
}

func TestGetDashboardStats_NoSession(t *testing.T) {
	h, _ := setupTestHandler(t, Options{})
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}

	var response models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}

	if response.Success {
		t.Error("Expected success=false")
	}
	if response.Error != "unauthorized" {
		t.Errorf("Expected 'unauthorized', got '%s'", response.Error)
	}
}

func TestGetDashboardStats_NonAdminSession(t *testing.T) {
	h, _ := setupTestHandler(t, Options{})
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	req.AddCookie(sessionCookie(t, "student"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestGetDashboardStats_TamperedToken(t *testing.T) {
	h, _ := setupTestHandler(t, Options{})
	r := setupRouter(h)

	cookie := sessionCookie(t, "admin")
	cookie.Value += "x"

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func seedDashboardFixture(t *testing.T, db *database.DB) {
	t.Helper()

	now := time.Now()
	threeDaysAgo := now.Add(-3 * 24 * time.Hour)

	students := []string{
		models.StudentStatusVerified,
		models.StudentStatusPending,
		models.StudentStatusSuspended,
	}
	for _, status := range students {
		if err := db.InsertStudent(models.Student{
			ID: uuid.New().String(), FullName: "S", Email: "s@x.edu", Status: status,
		}); err != nil {
			t.Fatalf("Failed to seed student: %v", err)
		}
	}

	if err := db.InsertMerchant(models.Merchant{
		ID: uuid.New().String(), Name: "Cafe", Status: models.MerchantStatusApproved,
	}); err != nil {
		t.Fatalf("Failed to seed merchant: %v", err)
	}

	if err := db.InsertOffer(models.Offer{
		ID: uuid.New().String(), MerchantID: uuid.New().String(), Title: "Deal",
		Status: models.OfferStatusActive,
	}); err != nil {
		t.Fatalf("Failed to seed offer: %v", err)
	}

	txns := []models.Transaction{
		{ID: uuid.New().String(), StudentID: "s1", MerchantID: "m1", OfferID: "o1",
			FinalAmount: 100, DiscountAmount: 20, RedeemedAt: &now},
		{ID: uuid.New().String(), StudentID: "s1", MerchantID: "m1", OfferID: "o1",
			FinalAmount: 50, DiscountAmount: 5, RedeemedAt: &threeDaysAgo},
		{ID: uuid.New().String(), StudentID: "s1", MerchantID: "m1", OfferID: "o1",
			DiscountAmount: 10},
	}
	for _, txn := range txns {
		if err := db.InsertTransaction(txn); err != nil {
			t.Fatalf("Failed to seed transaction: %v", err)
		}
	}
}

func TestGetDashboardStats_Success(t *testing.T) {
	h, db := setupTestHandler(t, Options{})
	r := setupRouter(h)

	seedDashboardFixture(t, db)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	req.AddCookie(sessionCookie(t, "admin"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var response statsEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if !response.Success {
		t.Fatalf("Expected success=true, got error: %s", response.Error)
	}

	stats := response.Data
	if stats.TotalStudents != 3 || stats.VerifiedStudents != 1 || stats.PendingStudents != 1 {
		t.Errorf("Unexpected student counts: %+v", stats)
	}
	if stats.TotalTransactions != 3 || stats.TodayTransactions != 1 || stats.WeekTransactions != 2 {
		t.Errorf("Unexpected transaction counts: %+v", stats)
	}
	if stats.TotalRevenue != 150 || stats.TotalSavings != 35 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.TodayRevenue != 100 || stats.TodaySavings != 20 {
		t.Errorf("Unexpected today totals: %+v", stats)
	}
}

func TestGetDashboardStats_CacheServesRepeatRequests(t *testing.T) {
	flags := features.NewManager()
	flags.Register(features.FeatureCacheEnabled, true, "")
	statsCache := cache.NewStatsCache(cache.NewInMemoryCache(), time.Minute)

	h, db := setupTestHandler(t, Options{StatsCache: statsCache, Flags: flags})
	r := setupRouter(h)

	seedDashboardFixture(t, db)

	req := httptest.NewRequest("GET", "/admin/stats", nil)
	req.AddCookie(sessionCookie(t, "admin"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("First request failed: %d. Body: %s", rr.Code, rr.Body.String())
	}

	// New data after the first read; the cached aggregate must still be served
	// until the TTL expires or it is explicitly invalidated.
	if err := db.InsertStudent(models.Student{
		ID: uuid.New().String(), FullName: "New", Email: "n@x.edu",
		Status: models.StudentStatusVerified,
	}); err != nil {
		t.Fatalf("Failed to insert student: %v", err)
	}

	req2 := httptest.NewRequest("GET", "/admin/stats", nil)
	req2.AddCookie(sessionCookie(t, "admin"))
	rr2 := httptest.NewRecorder()
	r.ServeHTTP(rr2, req2)

	var response statsEnvelope
	if err := json.Unmarshal(rr2.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Data.TotalStudents != 3 {
		t.Errorf("Expected cached count 3, got %d", response.Data.TotalStudents)
	}

	// After invalidation the fresh count is visible.
	if err := statsCache.Invalidate(req2.Context()); err != nil {
		t.Fatalf("Failed to invalidate cache: %v", err)
	}

	req3 := httptest.NewRequest("GET", "/admin/stats", nil)
	req3.AddCookie(sessionCookie(t, "admin"))
	rr3 := httptest.NewRecorder()
	r.ServeHTTP(rr3, req3)

	if err := json.Unmarshal(rr3.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Data.TotalStudents != 4 {
		t.Errorf("Expected fresh count 4, got %d", response.Data.TotalStudents)
	}
}

func TestGetStudentAdminStats_Success(t *testing.T) {
	h, db := setupTestHandler(t, Options{})
	r := setupRouter(h)

	studentID := uuid.New().String()
	brandID := uuid.New().String()
	onlineOfferID := uuid.New().String()

	if err := db.InsertStudent(models.Student{
		ID: studentID, FullName: "Asha Patel", Email: "asha@example.edu",
		CollegeID: "CLG-2209", Status: models.StudentStatusVerified,
	}); err != nil {
		t.Fatalf("Failed to insert student: %v", err)
	}
	if err := db.InsertOnlineBrand(brandID, "StreamCo"); err != nil {
		t.Fatalf("Failed to insert brand: %v", err)
	}
	if err := db.InsertOnlineOffer(onlineOfferID, brandID, "Student plan"); err != nil {
		t.Fatalf("Failed to insert online offer: %v", err)
	}
	created := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	if err := db.InsertOnlineRedemption(models.OnlineRedemption{
		ID: uuid.New().String(), StudentID: studentID,
		OnlineBrandID: brandID, OnlineOfferID: onlineOfferID,
		CodeUsed: "STU-50", Status: "revealed", CreatedAt: created,
	}); err != nil {
		t.Fatalf("Failed to insert redemption: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin/students/"+studentID+"/stats", nil)
	req.AddCookie(sessionCookie(t, "admin"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var response studentEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Data.Student.FullName != "Asha Patel" {
		t.Errorf("Expected 'Asha Patel', got '%s'", response.Data.Student.FullName)
	}

	if len(response.Data.OnlineRedemptions) != 1 {
		t.Fatalf("Expected 1 online redemption, got %d", len(response.Data.OnlineRedemptions))
	}
	// reveal was never recorded: falls back to created_at
	if !response.Data.OnlineRedemptions[0].RevealedAt.Equal(created) {
		t.Errorf("Expected revealedAt %v, got %v", created, response.Data.OnlineRedemptions[0].RevealedAt)
	}

	// wire format is camelCase
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to unmarshal raw response: %v", err)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw["data"], &data); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
	for _, key := range []string{"student", "offlineTransactions", "onlineRedemptions", "stats"} {
		if _, ok := data[key]; !ok {
			t.Errorf("Expected key '%s' in response data", key)
		}
	}
	var studentRaw map[string]json.RawMessage
	if err := json.Unmarshal(data["student"], &studentRaw); err != nil {
		t.Fatalf("Failed to unmarshal student: %v", err)
	}
	if _, ok := studentRaw["collegeId"]; !ok {
		t.Error("Expected camelCase 'collegeId' in student payload")
	}
	if _, ok := studentRaw["college_id"]; ok {
		t.Error("snake_case 'college_id' must not leak into the response")
	}
}

func TestGetStudentAdminStats_NotFound(t *testing.T) {
	h, _ := setupTestHandler(t, Options{})
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/admin/students/"+uuid.New().String()+"/stats", nil)
	req.AddCookie(sessionCookie(t, "admin"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var response models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}

	if response.Success {
		t.Error("Expected success=false")
	}
	if response.Error != "student not found" {
		t.Errorf("Expected 'student not found', got '%s'", response.Error)
	}
}

func TestGetStudentAdminStats_EmptyStudentID(t *testing.T) {
	h, _ := setupTestHandler(t, Options{})
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/admin/students//stats", nil)
	req.AddCookie(sessionCookie(t, "admin"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code == http.StatusOK {
		t.Error("Expected error for empty student_id")
	}
}
