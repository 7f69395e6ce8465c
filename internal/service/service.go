package service

import (
	"context"
	"errors"
	"log"
	"math"
	"strconv"
	"sync"
	"time"

	"student-deals-admin-api/internal/database"
	"student-deals-admin-api/internal/events"
	"student-deals-admin-api/internal/models"
	"student-deals-admin-api/internal/validation"
)

// statsTimeout bounds a single dashboard aggregation. The underlying store
// imposes no timeout of its own, so a hanging read would otherwise block the
// request indefinitely.
const statsTimeout = 10 * time.Second

// ErrStudentNotFound is returned when the requested student does not exist.
var ErrStudentNotFound = errors.New("student not found")

// errStatsUnavailable is the single opaque failure for the dashboard
// aggregation. No partial stats are ever returned.
var errStatsUnavailable = errors.New("failed to load dashboard statistics")

// errStudentUpstream is the opaque message for a failed snapshot read. The
// dashboard treats it as "service unavailable" rather than branching on it.
var errStudentUpstream = errors.New("database error or permissions missing")

// Store is the read surface the admin service needs from the data store.
type Store interface {
	ListStudentStatuses(ctx context.Context) ([]string, error)
	ListMerchantStatuses(ctx context.Context) ([]string, error)
	ListOfferStatuses(ctx context.Context) ([]string, error)
	ListTransactionRows(ctx context.Context) ([]database.TransactionRow, error)
	GetStudentSnapshot(ctx context.Context, studentID string) (*database.StudentSnapshot, error)
}

// Service provides the admin read operations: the dashboard aggregation and
// the per-student detail resolution.
type Service struct {
	store  Store
	events *events.Manager
}

// NewService creates a new service instance.
func NewService(store Store, ev *events.Manager) *Service {
	return &Service{store: store, events: ev}
}

// ComputeDashboardStats issues the four bulk reads concurrently and reduces
// them into the dashboard aggregate. If any read fails the whole operation
// fails; there is no partial response and no retry.
func (s *Service) ComputeDashboardStats(ctx context.Context) (stats models.DashboardStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dashboard aggregation panicked: %v", r)
			stats = models.DashboardStats{}
			err = errStatsUnavailable
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	var (
		studentStatuses  []string
		merchantStatuses []string
		offerStatuses    []string
		transactions     []database.TransactionRow
	)

	// Fan out the four independent reads; none depends on another.
	readErrs := make([]error, 4)
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		studentStatuses, readErrs[0] = s.store.ListStudentStatuses(ctx)
	}()
	go func() {
		defer wg.Done()
		merchantStatuses, readErrs[1] = s.store.ListMerchantStatuses(ctx)
	}()
	go func() {
		defer wg.Done()
		offerStatuses, readErrs[2] = s.store.ListOfferStatuses(ctx)
	}()
	go func() {
		defer wg.Done()
		transactions, readErrs[3] = s.store.ListTransactionRows(ctx)
	}()
	wg.Wait()

	for _, readErr := range readErrs {
		if readErr != nil {
			log.Printf("dashboard aggregation read failed: %v", readErr)
			return models.DashboardStats{}, errStatsUnavailable
		}
	}

	stats.TotalStudents, stats.VerifiedStudents, stats.PendingStudents =
		countByStatus(studentStatuses, models.StudentStatusVerified, models.StudentStatusPending)
	stats.TotalMerchants, stats.ApprovedMerchants, stats.PendingMerchants =
		countByStatus(merchantStatuses, models.MerchantStatusApproved, models.MerchantStatusPending)
	totalOffers, activeOffers, _ := countByStatus(offerStatuses, models.OfferStatusActive, "")
	stats.TotalOffers = totalOffers
	stats.ActiveOffers = activeOffers

	txn := reduceTransactions(transactions, time.Now())
	stats.TotalTransactions = txn.totalCount
	stats.TodayTransactions = txn.todayCount
	stats.WeekTransactions = txn.weekCount
	stats.TotalRevenue = roundAmount(txn.totalRevenue)
	stats.TotalSavings = roundAmount(txn.totalSavings)
	stats.TodayRevenue = roundAmount(txn.todayRevenue)
	stats.TodaySavings = roundAmount(txn.todaySavings)

	if s.events != nil {
		s.events.PublishStatsComputed(ctx, stats)
	}

	return stats, nil
}

// GetStudentAdminStats resolves a student together with both redemption
// histories through a single snapshot read and normalizes the result for the
// dashboard.
func (s *Service) GetStudentAdminStats(ctx context.Context, studentID string) (models.StudentAdminStats, error) {
	studentID = validation.SanitizeString(studentID)
	if err := validation.ValidateStudentID(studentID); err != nil {
		return models.StudentAdminStats{}, err
	}

	snapshot, err := s.store.GetStudentSnapshot(ctx, studentID)
	if errors.Is(err, database.ErrNotFound) {
		return models.StudentAdminStats{}, ErrStudentNotFound
	}
	if err != nil {
		log.Printf("student snapshot read failed for %s: %v", studentID, err)
		return models.StudentAdminStats{}, errStudentUpstream
	}

	result := normalizeSnapshot(snapshot)

	if s.events != nil {
		s.events.PublishStudentStatsViewed(ctx, studentID)
	}

	return result, nil
}

// countByStatus makes a single pass over statuses, counting the total and
// the two named statuses. Anything else (e.g. suspended, rejected) counts
// toward the total only.
func countByStatus(statuses []string, first, second string) (total, firstCount, secondCount int) {
	for _, status := range statuses {
		total++
		switch status {
		case first:
			firstCount++
		case second:
			if second != "" {
				secondCount++
			}
		}
	}
	return total, firstCount, secondCount
}

type transactionStats struct {
	totalCount   int
	todayCount   int
	weekCount    int
	totalRevenue float64
	totalSavings float64
	todayRevenue float64
	todaySavings float64
}

// reduceTransactions accumulates revenue/savings and time buckets in one
// linear pass. The today and week windows are checked independently: a
// transaction redeemed today counts in both, which is the intended overlap.
// A nil RedeemedAt contributes to the all-time totals only.
func reduceTransactions(rows []database.TransactionRow, now time.Time) transactionStats {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	var st transactionStats
	for _, row := range rows {
		final := amountOf(row.FinalAmount)
		discount := amountOf(row.DiscountAmount)

		st.totalCount++
		st.totalRevenue += final
		st.totalSavings += discount

		if row.RedeemedAt == nil {
			continue
		}
		redeemedAt := *row.RedeemedAt

		if !redeemedAt.Before(startOfToday) {
			st.todayCount++
			st.todayRevenue += final
			st.todaySavings += discount
		}
		if !redeemedAt.Before(weekAgo) {
			st.weekCount++
		}
	}

	return st
}

// amountOf coerces a raw monetary value. Missing or non-numeric amounts
// contribute 0 to a sum, never NaN.
func amountOf(v interface{}) float64 {
	switch value := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0
		}
		return value
	case int64:
		return float64(value)
	case int:
		return float64(value)
	case []byte:
		return parseAmount(string(value))
	case string:
		return parseAmount(value)
	default:
		return 0
	}
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// roundAmount rounds to the nearest whole currency unit. Rounding happens
// only here, at the response boundary, never mid-accumulation.
func roundAmount(v float64) int64 {
	return int64(math.Round(v))
}

// normalizeSnapshot maps the store's snake_case rows into the camelCase
// shapes the dashboard consumes. The mapping is total and explicit: fields
// without an entry here are dropped, not passed through.
func normalizeSnapshot(snapshot *database.StudentSnapshot) models.StudentAdminStats {
	student := models.StudentDetail{
		ID:               snapshot.Student.ID,
		FullName:         snapshot.Student.FullName,
		Email:            snapshot.Student.Email,
		CollegeID:        snapshot.Student.CollegeID,
		College:          snapshot.Student.College.String,
		City:             snapshot.Student.City.String,
		State:            snapshot.Student.State.String,
		Gender:           snapshot.Student.Gender.String,
		DateOfBirth:      snapshot.Student.DateOfBirth.String,
		ProfileImageURL:  snapshot.Student.ProfileImageURL.String,
		Status:           snapshot.Student.Status,
		TotalSavings:     snapshot.Student.TotalSavings,
		TotalRedemptions: snapshot.Student.TotalRedemptions,
	}

	offline := make([]models.OfflineTransactionDetail, 0, len(snapshot.OfflineTransactions))
	for _, row := range snapshot.OfflineTransactions {
		offline = append(offline, models.OfflineTransactionDetail{
			ID:             row.ID,
			MerchantName:   row.MerchantName.String,
			OfferTitle:     row.OfferTitle.String,
			FinalAmount:    amountOf(row.FinalAmount),
			DiscountAmount: amountOf(row.DiscountAmount),
			RedeemedAt:     row.RedeemedAt,
		})
	}

	online := make([]models.OnlineRedemptionDetail, 0, len(snapshot.OnlineRedemptions))
	for _, row := range snapshot.OnlineRedemptions {
		brandName := row.BrandName.String
		if !row.BrandName.Valid || brandName == "" {
			// orphaned brand reference
			brandName = "Unknown Brand"
		}

		// Legacy rows recorded no separate reveal event; fall back to creation.
		revealedAt := row.RevealedAt
		if revealedAt == nil {
			revealedAt = row.CreatedAt
		}
		var revealed time.Time
		if revealedAt != nil {
			revealed = *revealedAt
		}

		online = append(online, models.OnlineRedemptionDetail{
			ID:         row.ID,
			BrandName:  brandName,
			OfferTitle: row.OfferTitle.String,
			CodeUsed:   row.CodeUsed,
			Status:     row.Status,
			RevealedAt: revealed,
		})
	}

	return models.StudentAdminStats{
		Student:             student,
		OfflineTransactions: offline,
		OnlineRedemptions:   online,
		Stats: models.StudentStatsSummary{
			TotalSavings:     snapshot.Stats.TotalSavings,
			TotalRedemptions: snapshot.Stats.TotalRedemptions,
			OfflineCount:     snapshot.Stats.OfflineCount,
			OnlineCount:      snapshot.Stats.OnlineCount,
		},
	}
}
