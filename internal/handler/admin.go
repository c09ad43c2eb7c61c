package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/memberclub/internal/middleware"
	"github.com/mmeshcher/memberclub/internal/model"
)

type memberUpdateRequest struct {
	Phone           *string             `json:"phone"`
	Prefix          *string             `json:"prefix"`
	Name            *string             `json:"name"`
	Status          *model.MemberStatus `json:"status"`
	MembershipStart nullable[time.Time] `json:"membershipStart"`
	MembershipEnd   nullable[time.Time] `json:"membershipEnd"`
}

type verifyPaymentRequest struct {
	Status model.PaymentStatus `json:"status"`
}

type giftRequest struct {
	Name         *string       `json:"name"`
	Description  *string       `json:"description"`
	Details      *string       `json:"details"`
	ImageURL     *string       `json:"imageUrl"`
	Active       *bool         `json:"active"`
	MonthlyQuota nullable[int] `json:"monthlyQuota"`
}

type deliveryUpdateRequest struct {
	Status         *model.DeliveryStatus `json:"status"`
	TrackingNumber *string               `json:"trackingNumber"`
	TrackingURL    *string               `json:"trackingUrl"`
}

type eventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	EventDate   *time.Time `json:"eventDate"`
	Platform    *string    `json:"platform"`
	EventURL    *string    `json:"eventUrl"`
	ReplayURL   *string    `json:"replayUrl"`
	Active      *bool      `json:"active"`
}

type moderateReviewRequest struct {
	Status model.ReviewStatus `json:"status"`
}

type resetPasswordResponse struct {
	Password string `json:"password"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ListMembers возвращает всех участников.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, "list members", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(members))
}

// GetMember возвращает участника по идентификатору.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get member", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMember применяет изменение администратора к участнику.
// Явный null в обеих датах членства очищает период.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req memberUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	upd := model.MemberUpdate{
		Phone:           req.Phone,
		Prefix:          req.Prefix,
		Name:            req.Name,
		Status:          req.Status,
		MembershipStart: req.MembershipStart.Value,
		MembershipEnd:   req.MembershipEnd.Value,
		ClearMembership: req.MembershipStart.Null() && req.MembershipEnd.Null(),
	}

	m, err := h.service.UpdateMember(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		h.writeError(w, "update member", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ResetMemberPassword задаёт участнику новый случайный пароль и возвращает его.
func (h *Handler) ResetMemberPassword(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "id")

	password, err := h.service.ResetMemberPassword(r.Context(), memberID)
	if err != nil {
		h.writeError(w, "reset member password", err)
		return
	}

	adminID, _ := middleware.AdminIDFromContext(r.Context())
	h.logger.Info("member password reset", zap.String("member_id", memberID), zap.String("admin_id", adminID))
	writeJSON(w, http.StatusOK, resetPasswordResponse{Password: password})
}

// ListPayments возвращает платежи. По умолчанию только ожидающие проверки; status=all возвращает все.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	status := model.PaymentStatus(r.URL.Query().Get("status"))
	switch status {
	case "":
		status = model.PaymentStatusPending
	case "all":
		status = ""
	case model.PaymentStatusPending, model.PaymentStatusVerified, model.PaymentStatusRejected:
	default:
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "unknown payment status")
		return
	}

	payments, err := h.service.ListPayments(r.Context(), status)
	if err != nil {
		h.writeError(w, "list payments", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(payments))
}

// VerifyPayment подтверждает или отклоняет платёж.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.adminID(w, r)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	paymentID := chi.URLParam(r, "id")
	p, err := h.service.VerifyPayment(r.Context(), paymentID, req.Status, adminID)
	if err != nil {
		h.writeError(w, "verify payment", err)
		return
	}

	h.logger.Info("payment processed",
		zap.String("payment_id", paymentID),
		zap.String("decision", string(p.Status)),
		zap.String("admin_id", adminID),
	)
	writeJSON(w, http.StatusOK, p)
}

// GiftCatalog возвращает весь каталог подарков с использованием квоты.
func (h *Handler) GiftCatalog(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.service.GiftCatalog(r.Context())
	if err != nil {
		h.writeError(w, "gift catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(gifts))
}

// CreateGift добавляет подарок в каталог. Без поля active подарок создаётся активным.
func (h *Handler) CreateGift(w http.ResponseWriter, r *http.Request) {
	var req giftRequest
	if !h.decode(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	g, err := h.service.CreateGift(r.Context(), model.Gift{
		Name:         deref(req.Name),
		Description:  deref(req.Description),
		Details:      deref(req.Details),
		ImageURL:     deref(req.ImageURL),
		Active:       active,
		MonthlyQuota: req.MonthlyQuota.Value,
	})
	if err != nil {
		h.writeError(w, "create gift", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// UpdateGift изменяет подарок. monthlyQuota: null снимает лимит.
func (h *Handler) UpdateGift(w http.ResponseWriter, r *http.Request) {
	var req giftRequest
	if !h.decode(w, r, &req) {
		return
	}

	g, err := h.service.UpdateGift(r.Context(), chi.URLParam(r, "id"), model.GiftUpdate{
		Name:         req.Name,
		Description:  req.Description,
		Details:      req.Details,
		ImageURL:     req.ImageURL,
		Active:       req.Active,
		MonthlyQuota: req.MonthlyQuota.Value,
		ClearQuota:   req.MonthlyQuota.Null(),
	})
	if err != nil {
		h.writeError(w, "update gift", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ListDeliveries возвращает все заявки на подарки.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.service.ListDeliveries(r.Context())
	if err != nil {
		h.writeError(w, "list deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(deliveries))
}

// UpdateDelivery изменяет статус и данные отслеживания заявки.
func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	d, err := h.service.UpdateDelivery(r.Context(), chi.URLParam(r, "id"), model.DeliveryUpdate{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
	})
	if err != nil {
		h.writeError(w, "update delivery", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListEvents возвращает все события, включая скрытые.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context(), false)
	if err != nil {
		h.writeError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(events))
}

// CreateEvent создаёт событие. Без поля active событие создаётся активным.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	e, err := h.service.CreateEvent(r.Context(), model.Event{
		Title:       deref(req.Title),
		Description: req.Description,
		EventDate:   deref(req.EventDate),
		Platform:    deref(req.Platform),
		EventURL:    deref(req.EventURL),
		ReplayURL:   req.ReplayURL,
		Active:      active,
	})
	if err != nil {
		h.writeError(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEvent изменяет событие.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !h.decode(w, r, &req) {
		return
	}

	e, err := h.service.UpdateEvent(r.Context(), chi.URLParam(r, "id"), model.EventUpdate{
		Title:       req.Title,
		Description: req.Description,
		EventDate:   req.EventDate,
		Platform:    req.Platform,
		EventURL:    req.EventURL,
		ReplayURL:   req.ReplayURL,
		Active:      req.Active,
	})
	if err != nil {
		h.writeError(w, "update event", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEvent удаляет событие.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReviews возвращает отзывы с фильтром по статусу.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	status := model.ReviewStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.ReviewStatusPending, model.ReviewStatusApproved, model.ReviewStatusRejected:
	default:
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "unknown review status")
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), status)
	if err != nil {
		h.writeError(w, "list reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(reviews))
}

// ModerateReview одобряет или отклоняет отзыв.
func (h *Handler) ModerateReview(w http.ResponseWriter, r *http.Request) {
	var req moderateReviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	rv, err := h.service.ModerateReview(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, "moderate review", err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

// GetSettings возвращает настройки сайта целиком.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetSiteSettings(r.Context())
	if err != nil {
		h.writeError(w, "get site settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings сохраняет настройки сайта.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.adminID(w, r)
	if !ok {
		return
	}

	var req publicSettings
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.service.UpdateSiteSettings(r.Context(), adminID, model.SiteSettings{
		MembershipPrice: req.MembershipPrice,
		BankName:        req.BankName,
		BankAccount:     req.BankAccount,
		BankAccountName: req.BankAccountName,
		LineURL:         req.LineURL,
	})
	if err != nil {
		h.writeError(w, "update site settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DashboardStats возвращает сводку для панели администратора.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		h.writeError(w, "dashboard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
