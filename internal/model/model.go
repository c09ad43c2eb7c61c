// Package model содержит доменные сущности клуба участников.
package model

import "time"

// MemberStatus описывает статус членства участника.
type MemberStatus string

const (
	MemberStatusPendingPayment  MemberStatus = "pending_payment"
	MemberStatusPendingApproval MemberStatus = "pending_approval"
	MemberStatusApproved        MemberStatus = "approved"
	MemberStatusDisapproved     MemberStatus = "disapproved"
)

// Valid сообщает, является ли значение допустимым статусом участника.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberStatusPendingPayment, MemberStatusPendingApproval, MemberStatusApproved, MemberStatusDisapproved:
		return true
	}
	return false
}

// Member представляет зарегистрированного участника и его подписку.
type Member struct {
	ID              string       `json:"id"`
	Phone           string       `json:"phone"`
	PasswordHash    []byte       `json:"-"`
	Prefix          string       `json:"prefix"`
	Name            string       `json:"name"`
	Status          MemberStatus `json:"status"`
	MembershipStart *time.Time   `json:"membershipStart"`
	MembershipEnd   *time.Time   `json:"membershipEnd"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// MemberUpdate содержит частичное изменение участника. Nil-поля не изменяются.
// ClearMembership обнуляет обе даты членства.
type MemberUpdate struct {
	Phone           *string
	Prefix          *string
	Name            *string
	Status          *MemberStatus
	MembershipStart *time.Time
	MembershipEnd   *time.Time
	ClearMembership bool
}

// Admin представляет администратора консоли.
type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaymentStatus описывает статус проверки платежа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusVerified PaymentStatus = "verified"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment описывает одну попытку оплаты членства.
type Payment struct {
	ID         string        `json:"id"`
	MemberID   string        `json:"memberId"`
	Amount     int64         `json:"amount"`
	SlipRef    *string       `json:"slipRef"`
	Status     PaymentStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	VerifiedAt *time.Time    `json:"verifiedAt"`
	VerifiedBy *string       `json:"verifiedBy"`
}

// Gift описывает позицию каталога подарков. MonthlyQuota == nil означает отсутствие лимита.
type Gift struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Details      string `json:"details"`
	ImageURL     string `json:"imageUrl"`
	Active       bool   `json:"active"`
	MonthlyQuota *int   `json:"monthlyQuota"`
}

// GiftUpdate содержит частичное изменение подарка.
// ClearQuota снимает месячный лимит.
type GiftUpdate struct {
	Name         *string
	Description  *string
	Details      *string
	ImageURL     *string
	Active       *bool
	MonthlyQuota *int
	ClearQuota   bool
}

// GiftWithQuota дополняет подарок использованием квоты в текущем месяце.
type GiftWithQuota struct {
	Gift
	UsedThisMonth  int  `json:"usedThisMonth"`
	RemainingQuota *int `json:"remainingQuota"`
}

// DeliveryStatus описывает статус доставки подарка.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusShipped    DeliveryStatus = "shipped"
	DeliveryStatusSent       DeliveryStatus = "sent"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
)

// Valid сообщает, является ли значение допустимым статусом доставки.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusProcessing, DeliveryStatusShipped, DeliveryStatusSent, DeliveryStatusDelivered:
		return true
	}
	return false
}

// DeliveryAddress содержит адрес доставки подарка.
type DeliveryAddress struct {
	DeliveryName  string  `json:"deliveryName"`
	DeliveryPhone string  `json:"deliveryPhone"`
	HouseNumber   string  `json:"houseNumber"`
	MooSoi        *string `json:"mooSoi"`
	Street        *string `json:"street"`
	Subdistrict   string  `json:"subdistrict"`
	District      string  `json:"district"`
	Province      string  `json:"province"`
	PostalCode    string  `json:"postalCode"`
}

// GiftDelivery описывает заявку участника на подарок.
type GiftDelivery struct {
	ID       string `json:"id"`
	MemberID string `json:"memberId"`
	GiftID   string `json:"giftId"`
	DeliveryAddress
	DeliveryDate   time.Time      `json:"deliveryDate"`
	Status         DeliveryStatus `json:"status"`
	TrackingNumber *string        `json:"trackingNumber"`
	TrackingURL    *string        `json:"trackingUrl"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// DeliveryUpdate содержит изменения доставки, вносимые администратором.
type DeliveryUpdate struct {
	Status         *DeliveryStatus
	TrackingNumber *string
	TrackingURL    *string
}

// ClaimSnapshot содержит согласованный срез состояния, на основании которого принимается решение о выдаче подарка.
type ClaimSnapshot struct {
	Member        Member
	Gift          Gift
	Deliveries    []GiftDelivery
	UsedThisMonth int
}

// Event описывает запланированную онлайн-трансляцию.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	EventDate   time.Time `json:"eventDate"`
	Platform    string    `json:"platform"`
	EventURL    string    `json:"eventUrl"`
	ReplayURL   *string   `json:"replayUrl"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EventUpdate содержит частичное изменение события.
type EventUpdate struct {
	Title       *string
	Description *string
	EventDate   *time.Time
	Platform    *string
	EventURL    *string
	ReplayURL   *string
	Active      *bool
}

// ReviewStatus описывает статус модерации отзыва.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Review описывает отзыв участника.
type Review struct {
	ID         string       `json:"id"`
	MemberID   string       `json:"memberId"`
	Rating     int          `json:"rating"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Pros       *string      `json:"pros"`
	Cons       *string      `json:"cons"`
	Status     ReviewStatus `json:"status"`
	Helpful    int          `json:"helpful"`
	NotHelpful int          `json:"notHelpful"`
	CreatedAt  time.Time    `json:"createdAt"`
	ApprovedAt *time.Time   `json:"approvedAt"`
}

// SiteSettings содержит настройки сайта. Хранится одной строкой.
type SiteSettings struct {
	MembershipPrice int64     `json:"membershipPrice"`
	BankName        string    `json:"bankName"`
	BankAccount     string    `json:"bankAccount"`
	BankAccountName string    `json:"bankAccountName"`
	LineURL         string    `json:"lineUrl"`
	UpdatedAt       time.Time `json:"updatedAt"`
	UpdatedBy       *string   `json:"updatedBy"`
}

// DashboardStats содержит сводку для панели администратора.
type DashboardStats struct {
	TotalUsers       int     `json:"totalUsers"`
	ActiveMembers    int     `json:"activeMembers"`
	PendingApprovals int     `json:"pendingApprovals"`
	ExpiringSoon     int     `json:"expiringSoon"`
	UpcomingEvents   int     `json:"upcomingEvents"`
	TotalReviews     int     `json:"totalReviews"`
	AverageRating    float64 `json:"averageRating"`
	GiftsDelivered   int     `json:"giftsDelivered"`
	TotalPayments    int     `json:"totalPayments"`
	VerifiedPayments int     `json:"verifiedPayments"`
	PendingPayments  int     `json:"pendingPayments"`
}
