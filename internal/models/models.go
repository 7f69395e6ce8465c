package models

import "time"

// Student lifecycle statuses.
const (
	StudentStatusPending   = "pending"
	StudentStatusVerified  = "verified"
	StudentStatusSuspended = "suspended"
)

// Merchant lifecycle statuses.
const (
	MerchantStatusPending  = "pending"
	MerchantStatusApproved = "approved"
	MerchantStatusRejected = "rejected"
)

// Offer statuses.
const (
	OfferStatusActive   = "active"
	OfferStatusInactive = "inactive"
)

// Student is a marketplace student account. The admin API only reads these;
// they are created and mutated by the onboarding and redemption flows.
type Student struct {
	ID               string     `json:"id"`
	FullName         string     `json:"full_name"`
	Email            string     `json:"email"`
	CollegeID        string     `json:"college_id"` // institution-issued id
	College          string     `json:"college"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Gender           string     `json:"gender"`
	DateOfBirth      string     `json:"date_of_birth"`
	ProfileImageURL  string     `json:"profile_image_url"`
	Status           string     `json:"status"`
	TotalSavings     float64    `json:"total_savings"`
	TotalRedemptions int        `json:"total_redemptions"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// Merchant is a marketplace merchant account.
type Merchant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Offer is an in-store discount offer published by a merchant.
type Offer struct {
	ID            string  `json:"id"`
	MerchantID    string  `json:"merchant_id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	DiscountType  string  `json:"discount_type"` // "percent" or "flat"
	DiscountValue float64 `json:"discount_value"`
}

// Transaction is an in-person redemption of an offer by a student.
// RedeemedAt may be nil for legacy rows that predate redemption timestamps.
type Transaction struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	MerchantID     string     `json:"merchant_id"`
	OfferID        string     `json:"offer_id"`
	FinalAmount    float64    `json:"final_amount"`
	DiscountAmount float64    `json:"discount_amount"`
	RedeemedAt     *time.Time `json:"redeemed_at"`
}

// OnlineRedemption is a code reveal against an online brand offer.
type OnlineRedemption struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	OnlineBrandID string     `json:"online_brand_id"`
	OnlineOfferID string     `json:"online_offer_id"`
	CodeUsed      string     `json:"code_used"`
	Status        string     `json:"status"`
	RevealedAt    *time.Time `json:"revealed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DashboardStats is the admin dashboard aggregate. Monetary fields are
// rounded to whole currency units at the response boundary.
type DashboardStats struct {
	TotalStudents     int   `json:"totalStudents"`
	VerifiedStudents  int   `json:"verifiedStudents"`
	PendingStudents   int   `json:"pendingStudents"`
	TotalMerchants    int   `json:"totalMerchants"`
	ApprovedMerchants int   `json:"approvedMerchants"`
	PendingMerchants  int   `json:"pendingMerchants"`
	TotalOffers       int   `json:"totalOffers"`
	ActiveOffers      int   `json:"activeOffers"`
	TotalTransactions int   `json:"totalTransactions"`
	TodayTransactions int   `json:"todayTransactions"`
	WeekTransactions  int   `json:"weekTransactions"`
	TotalRevenue      int64 `json:"totalRevenue"`
	TotalSavings      int64 `json:"totalSavings"`
	TodayRevenue      int64 `json:"todayRevenue"`
	TodaySavings      int64 `json:"todaySavings"`
}

// StudentDetail is the normalized (camelCase) student record returned to the
// admin dashboard. Every field maps to an explicit store column; anything not
// listed here is dropped during normalization.
type StudentDetail struct {
	ID               string  `json:"id"`
	FullName         string  `json:"fullName"`
	Email            string  `json:"email"`
	CollegeID        string  `json:"collegeId"`
	College          string  `json:"college"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Gender           string  `json:"gender"`
	DateOfBirth      string  `json:"dateOfBirth"`
	ProfileImageURL  string  `json:"profileImageUrl"`
	Status           string  `json:"status"`
	TotalSavings     float64 `json:"totalSavings"`
	TotalRedemptions int     `json:"totalRedemptions"`
}

// OfflineTransactionDetail is a normalized in-person redemption with merchant
// and offer display fields joined in.
type OfflineTransactionDetail struct {
	ID             string     `json:"id"`
	MerchantName   string     `json:"merchantName"`
	OfferTitle     string     `json:"offerTitle"`
	FinalAmount    float64    `json:"finalAmount"`
	DiscountAmount float64    `json:"discountAmount"`
	RedeemedAt     *time.Time `json:"redeemedAt"`
}

// OnlineRedemptionDetail is a normalized code reveal with brand and offer
// display fields joined in.
type OnlineRedemptionDetail struct {
	ID         string    `json:"id"`
	BrandName  string    `json:"brandName"`
	OfferTitle string    `json:"offerTitle"`
	CodeUsed   string    `json:"codeUsed"`
	Status     string    `json:"status"`
	RevealedAt time.Time `json:"revealedAt"`
}

// StudentStatsSummary is the precomputed stats block of the student snapshot.
type StudentStatsSummary struct {
	TotalSavings     float64 `json:"totalSavings"`
	TotalRedemptions int     `json:"totalRedemptions"`
	OfflineCount     int     `json:"offlineCount"`
	OnlineCount      int     `json:"onlineCount"`
}

// StudentAdminStats is the full student detail payload.
type StudentAdminStats struct {
	Student             StudentDetail              `json:"student"`
	OfflineTransactions []OfflineTransactionDetail `json:"offlineTransactions"`
	OnlineRedemptions   []OnlineRedemptionDetail   `json:"onlineRedemptions"`
	Stats               StudentStatsSummary        `json:"stats"`
}

// SuccessResponse is the uniform success envelope.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
