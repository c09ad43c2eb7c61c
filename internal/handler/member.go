package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/service"
)

type profileRequest struct {
	Phone  *string `json:"phone"`
	Prefix *string `json:"prefix"`
	Name   *string `json:"name"`
}

type claimGiftRequest struct {
	GiftID string `json:"giftId"`
	model.DeliveryAddress
	DeliveryDate string `json:"deliveryDate"`
}

type paymentRequest struct {
	Amount  int64  `json:"amount"`
	SlipRef string `json:"slipRef"`
}

type reviewRequest struct {
	Rating  int     `json:"rating"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Pros    *string `json:"pros"`
	Cons    *string `json:"cons"`
}

type helpfulRequest struct {
	Helpful bool `json:"helpful"`
}

type publicSettings struct {
	MembershipPrice int64  `json:"membershipPrice"`
	BankName        string `json:"bankName"`
	BankAccount     string `json:"bankAccount"`
	BankAccountName string `json:"bankAccountName"`
	LineURL         string `json:"lineUrl"`
}

// GetProfile возвращает профиль участника.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	h.Me(w, r)
}

// UpdateProfile изменяет имя, обращение и телефон участника.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, err := h.service.UpdateProfile(r.Context(), memberID, model.MemberUpdate{
		Phone:  req.Phone,
		Prefix: req.Prefix,
		Name:   req.Name,
	})
	if err != nil {
		h.writeError(w, "update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListGifts возвращает активные подарки с остатком месячной квоты.
func (h *Handler) ListGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.service.ListMemberGifts(r.Context())
	if err != nil {
		h.writeError(w, "list gifts", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(gifts))
}

// ClaimGift принимает заявку участника на подарок.
func (h *Handler) ClaimGift(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	var req claimGiftRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.GiftID == "" {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "giftId is required")
		return
	}
	deliveryDate, ok := parseDate(req.DeliveryDate)
	if !ok {
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, "deliveryDate must be YYYY-MM-DD")
		return
	}

	d, err := h.service.ClaimGift(r.Context(), memberID, service.ClaimRequest{
		GiftID:       req.GiftID,
		Address:      req.DeliveryAddress,
		DeliveryDate: deliveryDate,
	})
	if err != nil {
		h.writeError(w, "claim gift", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListMyDeliveries возвращает заявки участника на подарки.
func (h *Handler) ListMyDeliveries(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	deliveries, err := h.service.ListMemberDeliveries(r.Context(), memberID)
	if err != nil {
		h.writeError(w, "list member deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(deliveries))
}

// ListMemberEvents возвращает активные события.
func (h *Handler) ListMemberEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListEvents(r.Context(), true)
	if err != nil {
		h.writeError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(events))
}

// SubmitReview принимает отзыв участника на модерацию.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	rv, err := h.service.SubmitReview(r.Context(), memberID, model.Review{
		Rating:  req.Rating,
		Title:   req.Title,
		Content: req.Content,
		Pros:    req.Pros,
		Cons:    req.Cons,
	})
	if err != nil {
		h.writeError(w, "submit review", err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// ListApprovedReviews возвращает одобренные отзывы.
func (h *Handler) ListApprovedReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListReviews(r.Context(), model.ReviewStatusApproved)
	if err != nil {
		h.writeError(w, "list reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(reviews))
}

// MarkReviewHelpful учитывает оценку полезности отзыва.
func (h *Handler) MarkReviewHelpful(w http.ResponseWriter, r *http.Request) {
	var req helpfulRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.MarkReviewHelpful(r.Context(), chi.URLParam(r, "id"), req.Helpful); err != nil {
		h.writeError(w, "mark review helpful", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePayment сохраняет платёж участника.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.SubmitPayment(r.Context(), memberID, req.Amount, req.SlipRef)
	if err != nil {
		h.writeError(w, "submit payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListMyPayments возвращает платежи участника.
func (h *Handler) ListMyPayments(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListMemberPayments(r.Context(), memberID)
	if err != nil {
		h.writeError(w, "list member payments", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(payments))
}

// GetPublicSettings возвращает публичную часть настроек сайта.
func (h *Handler) GetPublicSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetSiteSettings(r.Context())
	if err != nil {
		h.writeError(w, "get site settings", err)
		return
	}

	writeJSON(w, http.StatusOK, publicSettings{
		MembershipPrice: s.MembershipPrice,
		BankName:        s.BankName,
		BankAccount:     s.BankAccount,
		BankAccountName: s.BankAccountName,
		LineURL:         s.LineURL,
	})
}
