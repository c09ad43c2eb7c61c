// Package service реализует бизнес-логику клуба участников.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/memberclub/internal/metrics"
	"github.com/mmeshcher/memberclub/internal/model"
)

var (
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput возвращается, если входные данные не прошли проверку.
	ErrInvalidInput = errors.New("invalid input")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateAdmin(ctx context.Context, a *model.Admin) error
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
	GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error)

	CreateMember(ctx context.Context, m *model.Member) error
	GetMember(ctx context.Context, id string) (*model.Member, error)
	GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	UpdateMember(ctx context.Context, id string, mutate func(*model.Member) error) (*model.Member, error)
	UpdateMemberPassword(ctx context.Context, id string, passwordHash []byte) error

	SubmitPayment(ctx context.Context, p *model.Payment,
		advance func(model.MemberStatus) (model.MemberStatus, bool)) (*model.Member, error)
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	ListPayments(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error)
	ListPaymentsByMember(ctx context.Context, memberID string) ([]model.Payment, error)
	ProcessPayment(ctx context.Context, id string, decision model.PaymentStatus,
		adminID string, now time.Time, onVerified func(*model.Member)) (*model.Payment, error)

	CreateGift(ctx context.Context, g *model.Gift) error
	GetGift(ctx context.Context, id string) (*model.Gift, error)
	ListGifts(ctx context.Context) ([]model.Gift, error)
	UpdateGift(ctx context.Context, id string, mutate func(*model.Gift) error) (*model.Gift, error)

	CountDeliveriesInRange(ctx context.Context, giftID string, from, to time.Time) (int, error)
	ClaimGift(ctx context.Context, d *model.GiftDelivery, from, to time.Time, decide func(model.ClaimSnapshot) error) error
	ListDeliveriesByMember(ctx context.Context, memberID string) ([]model.GiftDelivery, error)
	ListDeliveries(ctx context.Context) ([]model.GiftDelivery, error)
	UpdateDelivery(ctx context.Context, id string, mutate func(*model.GiftDelivery) error) (*model.GiftDelivery, error)

	CreateEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context, activeOnly bool) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	CreateReview(ctx context.Context, rv *model.Review) error
	ListReviews(ctx context.Context, status model.ReviewStatus) ([]model.Review, error)
	UpdateReview(ctx context.Context, id string, mutate func(*model.Review) error) (*model.Review, error)
	MarkReviewHelpful(ctx context.Context, id string, helpful bool) error

	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	UpsertSiteSettings(ctx context.Context, s *model.SiteSettings) error
}

// Service содержит бизнес-логику клуба участников.
type Service struct {
	repo            Repository
	metrics         *metrics.Metrics
	membershipPrice int64
	now             func() time.Time
	newID           func() string
}

// NewService создаёт новый сервис. membershipPrice используется, пока настройки сайта не сохранены.
func NewService(repo Repository, m *metrics.Metrics, membershipPrice int64) *Service {
	return &Service{
		repo:            repo,
		metrics:         m,
		membershipPrice: membershipPrice,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
