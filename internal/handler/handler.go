// Package handler содержит HTTP-обработчики API клуба участников.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/memberclub/internal/claim"
	"github.com/mmeshcher/memberclub/internal/membership"
	"github.com/mmeshcher/memberclub/internal/metrics"
	"github.com/mmeshcher/memberclub/internal/middleware"
	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/repository"
	"github.com/mmeshcher/memberclub/internal/service"
	"github.com/mmeshcher/memberclub/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterMember(ctx context.Context, reg service.Registration) (*model.Member, error)
	AuthenticateMember(ctx context.Context, phone, password string) (*model.Member, error)
	AuthenticateAdmin(ctx context.Context, username, password string) (*model.Admin, error)
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
	ResetMemberPassword(ctx context.Context, memberID string) (string, error)

	GetMember(ctx context.Context, id string) (*model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
	UpdateProfile(ctx context.Context, memberID string, upd model.MemberUpdate) (*model.Member, error)
	UpdateMember(ctx context.Context, id string, upd model.MemberUpdate) (*model.Member, error)

	SubmitPayment(ctx context.Context, memberID string, amount int64, slipRef string) (*model.Payment, error)
	ListMemberPayments(ctx context.Context, memberID string) ([]model.Payment, error)
	ListPayments(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error)
	VerifyPayment(ctx context.Context, paymentID string, decision model.PaymentStatus, adminID string) (*model.Payment, error)

	ListMemberGifts(ctx context.Context) ([]model.GiftWithQuota, error)
	GiftCatalog(ctx context.Context) ([]model.GiftWithQuota, error)
	CreateGift(ctx context.Context, g model.Gift) (*model.Gift, error)
	UpdateGift(ctx context.Context, id string, upd model.GiftUpdate) (*model.Gift, error)
	ClaimGift(ctx context.Context, memberID string, req service.ClaimRequest) (*model.GiftDelivery, error)
	ListMemberDeliveries(ctx context.Context, memberID string) ([]model.GiftDelivery, error)
	ListDeliveries(ctx context.Context) ([]model.GiftDelivery, error)
	UpdateDelivery(ctx context.Context, id string, upd model.DeliveryUpdate) (*model.GiftDelivery, error)

	ListEvents(ctx context.Context, activeOnly bool) ([]model.Event, error)
	CreateEvent(ctx context.Context, e model.Event) (*model.Event, error)
	UpdateEvent(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	SubmitReview(ctx context.Context, memberID string, rv model.Review) (*model.Review, error)
	ListReviews(ctx context.Context, status model.ReviewStatus) ([]model.Review, error)
	ModerateReview(ctx context.Context, id string, status model.ReviewStatus) (*model.Review, error)
	MarkReviewHelpful(ctx context.Context, id string, helpful bool) error

	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	UpdateSiteSettings(ctx context.Context, adminID string, settings model.SiteSettings) (*model.SiteSettings, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Handler реализует HTTP-обработчики API клуба участников.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Metrics
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, m *metrics.Metrics) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        m,
	}
}

// Типы ошибок в теле ответа.
const (
	kindNotApproved      = "not_approved"
	kindAlreadyClaimed   = "already_claimed"
	kindGiftInactive     = "gift_inactive"
	kindQuotaExhausted   = "quota_exhausted"
	kindAlreadyProcessed = "already_processed"
	kindNotFound         = "not_found"
	kindInvalidInput     = "invalid_input"
	kindConflict         = "conflict"
	kindUnauthorized     = "unauthorized"
	kindInternal         = "internal"
)

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// classify сопоставляет ошибку с HTTP-статусом и типом ошибки. Неизвестные ошибки считаются внутренними.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, claim.ErrNotApproved):
		return http.StatusForbidden, kindNotApproved
	case errors.Is(err, claim.ErrAlreadyClaimed):
		return http.StatusConflict, kindAlreadyClaimed
	case errors.Is(err, claim.ErrGiftInactive):
		return http.StatusConflict, kindGiftInactive
	case errors.Is(err, claim.ErrQuotaExhausted):
		return http.StatusConflict, kindQuotaExhausted
	case errors.Is(err, membership.ErrAlreadyProcessed):
		return http.StatusConflict, kindAlreadyProcessed
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, membership.ErrInvalidDecision),
		errors.Is(err, validation.ErrInvalidAddress):
		return http.StatusBadRequest, kindInvalidInput
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, kindUnauthorized
	case errors.Is(err, repository.ErrMemberExists),
		errors.Is(err, repository.ErrAdminExists):
		return http.StatusConflict, kindConflict
	case errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrAdminNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrGiftNotFound),
		errors.Is(err, repository.ErrDeliveryNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrReviewNotFound):
		return http.StatusNotFound, kindNotFound
	}
	return http.StatusInternalServerError, kindInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

// writeError отвечает клиенту по ошибке сервиса. Ожидаемые отказы логируются на уровне Info,
// внутренние ошибки на уровне Error и не раскрывают подробностей клиенту.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, kind := classify(err)
	if kind == kindInternal {
		h.logger.Error(op+" error", zap.Error(err))
		writeErrorKind(w, status, kind, http.StatusText(status))
		return
	}

	h.logger.Info(op+" denied", zap.String("kind", kind), zap.Error(err))
	writeErrorKind(w, status, kind, err.Error())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "malformed JSON body")
		return false
	}
	return true
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// nullable различает отсутствующее поле, явный null и значение.
type nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if strings.TrimSpace(string(b)) == "null" {
		n.Value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// Null сообщает, что поле было передано явным null.
func (n nullable[T]) Null() bool {
	return n.Set && n.Value == nil
}

const dateLayout = "2006-01-02"

// parseDate принимает дату в формате YYYY-MM-DD или RFC 3339.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (h *Handler) memberID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.MemberIDFromContext(r.Context())
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, kindUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return id, ok
}

func (h *Handler) adminID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		writeErrorKind(w, http.StatusUnauthorized, kindUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return id, ok
}
