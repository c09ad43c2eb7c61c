package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret", time.Hour)

	return NewHandler(svc, logger, auth, metrics.New())
}

func newMemoryService(t *testing.T) *service.Service {
	t.Helper()

	svc := service.NewService(repository.NewMemoryRepository(), nil, 499)
	_, err := svc.EnsureAdmin(context.Background(), "admin", "admin-pass")
	require.NoError(t, err)
	return svc
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		c.cookies = cookies
	}
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func assertKind(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()

	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, kind, body.Kind)
}

func TestRegister_SetsSession(t *testing.T) {
	h := newTestHandler(t, newMemoryService(t))
	c := &client{t: t, handler: h.SetupRouter()}

	rec := c.do(http.MethodPost, "/api/auth/register", registerRequest{
		Phone:    "0812345678",
		Password: "secret1",
		Name:     "Somchai",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	m := decodeBody[model.Member](t, rec)
	assert.Equal(t, model.MemberStatusPendingPayment, m.Status)

	rec = c.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "0812345678", me["phone"])
	assert.NotContains(t, me, "passwordHash")

	other := &client{t: t, handler: c.handler}
	rec = other.do(http.MethodPost, "/api/auth/register", registerRequest{
		Phone:    "0812345678",
		Password: "secret1",
		Name:     "Dup",
	})
	assertKind(t, rec, http.StatusConflict, kindConflict)

	rec = other.do(http.MethodPost, "/api/auth/register", registerRequest{Phone: "12", Password: "secret1", Name: "x"})
	assertKind(t, rec, http.StatusBadRequest, kindInvalidInput)
}

func TestLogin_UnauthorizedOnBadPassword(t *testing.T) {
	h := newTestHandler(t, newMemoryService(t))
	c := &client{t: t, handler: h.SetupRouter()}

	rec := c.do(http.MethodPost, "/api/auth/register", registerRequest{Phone: "0812345678", Password: "secret1", Name: "A"})
	require.Equal(t, http.StatusCreated, rec.Code)

	anon := &client{t: t, handler: c.handler}
	rec = anon.do(http.MethodPost, "/api/auth/login", loginRequest{Phone: "0812345678", Password: "nope"})
	assertKind(t, rec, http.StatusUnauthorized, kindUnauthorized)

	rec = anon.do(http.MethodPost, "/api/auth/login", loginRequest{Phone: "0812345678", Password: "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutes_RequireMatchingSession(t *testing.T) {
	h := newTestHandler(t, newMemoryService(t))
	router := h.SetupRouter()

	anon := &client{t: t, handler: router}
	assertKind(t, anon.do(http.MethodGet, "/api/member/gifts", nil), http.StatusUnauthorized, kindUnauthorized)
	assertKind(t, anon.do(http.MethodGet, "/api/admin/members", nil), http.StatusUnauthorized, kindUnauthorized)

	member := &client{t: t, handler: router}
	rec := member.do(http.MethodPost, "/api/auth/register", registerRequest{Phone: "0812345678", Password: "secret1", Name: "A"})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, http.StatusOK, member.do(http.MethodGet, "/api/member/gifts", nil).Code)
	assertKind(t, member.do(http.MethodGet, "/api/admin/members", nil), http.StatusUnauthorized, kindUnauthorized)
}

func TestMembershipAndClaimFlow(t *testing.T) {
	h := newTestHandler(t, newMemoryService(t))
	router := h.SetupRouter()

	admin := &client{t: t, handler: router}
	rec := admin.do(http.MethodPost, "/api/admin/auth/login", adminLoginRequest{Username: "admin", Password: "admin-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = admin.do(http.MethodPost, "/api/admin/gifts", map[string]any{"name": "Tote bag", "monthlyQuota": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	gift := decodeBody[model.Gift](t, rec)
	require.True(t, gift.Active)

	claimBody := map[string]any{
		"giftId":        gift.ID,
		"deliveryName":  "Somchai",
		"deliveryPhone": "0812345678",
		"houseNumber":   "1",
		"subdistrict":   "Silom",
		"district":      "Bang Rak",
		"province":      "Bangkok",
		"postalCode":    "10500",
		"deliveryDate":  "2025-03-20",
	}

	members := make([]*client, 2)
	for i := range members {
		members[i] = &client{t: t, handler: router}
		rec = members[i].do(http.MethodPost, "/api/auth/register", registerRequest{
			Phone:    fmt.Sprintf("081234567%d", i),
			Password: "secret1",
			Name:     fmt.Sprintf("Member %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		assertKind(t, members[i].do(http.MethodPost, "/api/member/gift-delivery", claimBody), http.StatusForbidden, kindNotApproved)

		rec = members[i].do(http.MethodPost, "/api/payment/create", paymentRequest{Amount: 499, SlipRef: "slip"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		payment := decodeBody[model.Payment](t, rec)

		rec = members[i].do(http.MethodGet, "/api/auth/me", nil)
		assert.Equal(t, model.MemberStatusPendingApproval, decodeBody[model.Member](t, rec).Status)

		path := "/api/admin/payments/" + payment.ID + "/verify"
		rec = admin.do(http.MethodPut, path, verifyPaymentRequest{Status: model.PaymentStatusVerified})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assertKind(t, admin.do(http.MethodPut, path, verifyPaymentRequest{Status: model.PaymentStatusVerified}),
			http.StatusConflict, kindAlreadyProcessed)

		rec = members[i].do(http.MethodGet, "/api/auth/me", nil)
		m := decodeBody[model.Member](t, rec)
		assert.Equal(t, model.MemberStatusApproved, m.Status)
		require.NotNil(t, m.MembershipStart)
		require.NotNil(t, m.MembershipEnd)
		assert.WithinDuration(t, m.MembershipStart.AddDate(0, 0, membership.PeriodDays), *m.MembershipEnd, time.Hour)
	}

	rec = members[0].do(http.MethodPost, "/api/member/gift-delivery", claimBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assertKind(t, members[0].do(http.MethodPost, "/api/member/gift-delivery", claimBody), http.StatusConflict, kindAlreadyClaimed)
	assertKind(t, members[1].do(http.MethodPost, "/api/member/gift-delivery", claimBody), http.StatusConflict, kindQuotaExhausted)

	rec = members[1].do(http.MethodGet, "/api/member/gifts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gifts := decodeBody[[]model.GiftWithQuota](t, rec)
	require.Len(t, gifts, 1)
	require.NotNil(t, gifts[0].RemainingQuota)
	assert.Equal(t, 0, *gifts[0].RemainingQuota)

	rec = admin.do(http.MethodPut, "/api/admin/gifts/"+gift.ID, map[string]any{"monthlyQuota": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decodeBody[model.Gift](t, rec).MonthlyQuota)

	rec = members[1].do(http.MethodPost, "/api/member/gift-delivery", claimBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = admin.do(http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[model.DashboardStats](t, rec)
	assert.Equal(t, 2, stats.ActiveMembers)
	assert.Equal(t, 2, stats.VerifiedPayments)
}

func TestClaimGift_BadDeliveryDate(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/member/gift-delivery",
		bytes.NewBufferString(`{"giftId":"g1","deliveryDate":"tomorrow"}`))
	req = req.WithContext(middleware.WithMemberID(req.Context(), "m1"))
	rec := httptest.NewRecorder()

	h.ClaimGift(rec, req)

	assertKind(t, rec, http.StatusBadRequest, kindInvalidInput)
}

// stubService реализует только методы, нужные конкретному тесту; остальные вызовы паникуют.
type stubService struct {
	Service

	paymentsStatus model.PaymentStatus
	paymentsErr    error

	giftUpdate model.GiftUpdate

	memberUpdate model.MemberUpdate
}

func (s *stubService) ListPayments(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	s.paymentsStatus = status
	return nil, s.paymentsErr
}

func (s *stubService) UpdateGift(ctx context.Context, id string, upd model.GiftUpdate) (*model.Gift, error) {
	s.giftUpdate = upd
	return &model.Gift{ID: id}, nil
}

func (s *stubService) UpdateMember(ctx context.Context, id string, upd model.MemberUpdate) (*model.Member, error) {
	s.memberUpdate = upd
	return &model.Member{ID: id}, nil
}

func adminRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	return req.WithContext(middleware.WithAdminID(req.Context(), "admin-1"))
}

func TestListPayments_StatusFilter(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus model.PaymentStatus
		wantCode   int
	}{
		{query: "", wantStatus: model.PaymentStatusPending, wantCode: http.StatusOK},
		{query: "?status=all", wantStatus: "", wantCode: http.StatusOK},
		{query: "?status=verified", wantStatus: model.PaymentStatusVerified, wantCode: http.StatusOK},
		{query: "?status=bogus", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &stubService{}
			h := newTestHandler(t, svc)

			rec := httptest.NewRecorder()
			h.ListPayments(rec, adminRequest(http.MethodGet, "/api/admin/payments"+tt.query, ""))

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantStatus, svc.paymentsStatus)
				assert.JSONEq(t, `[]`, rec.Body.String())
			}
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	svc := &stubService{paymentsErr: errors.New("connection refused to 10.0.0.5")}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.ListPayments(rec, adminRequest(http.MethodGet, "/api/admin/payments", ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"kind":"internal","message":"Internal Server Error"}`, rec.Body.String())
}

func TestUpdateGift_QuotaNullability(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantClear bool
		wantQuota *int
	}{
		{name: "absent", body: `{"name":"x"}`},
		{name: "explicit null", body: `{"monthlyQuota":null}`, wantClear: true},
		{name: "value", body: `{"monthlyQuota":7}`, wantQuota: func() *int { v := 7; return &v }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			h := newTestHandler(t, svc)

			rec := httptest.NewRecorder()
			h.UpdateGift(rec, adminRequest(http.MethodPut, "/api/admin/gifts/g1", tt.body))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantClear, svc.giftUpdate.ClearQuota)
			assert.Equal(t, tt.wantQuota, svc.giftUpdate.MonthlyQuota)
		})
	}
}

func TestUpdateMember_ClearMembership(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.UpdateMember(rec, adminRequest(http.MethodPut, "/api/admin/members/m1",
		`{"status":"disapproved","membershipStart":null,"membershipEnd":null}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.memberUpdate.ClearMembership)
	require.NotNil(t, svc.memberUpdate.Status)
	assert.Equal(t, model.MemberStatusDisapproved, *svc.memberUpdate.Status)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{claim.ErrNotApproved, http.StatusForbidden, kindNotApproved},
		{claim.ErrAlreadyClaimed, http.StatusConflict, kindAlreadyClaimed},
		{claim.ErrGiftInactive, http.StatusConflict, kindGiftInactive},
		{claim.ErrQuotaExhausted, http.StatusConflict, kindQuotaExhausted},
		{membership.ErrAlreadyProcessed, http.StatusConflict, kindAlreadyProcessed},
		{membership.ErrInvalidDecision, http.StatusBadRequest, kindInvalidInput},
		{fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest, kindInvalidInput},
		{validation.ErrInvalidAddress, http.StatusBadRequest, kindInvalidInput},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, kindUnauthorized},
		{repository.ErrMemberExists, http.StatusConflict, kindConflict},
		{repository.ErrPaymentNotFound, http.StatusNotFound, kindNotFound},
		{repository.ErrGiftNotFound, http.StatusNotFound, kindNotFound},
		{fmt.Errorf("wrapped: %w", repository.ErrEventNotFound), http.StatusNotFound, kindNotFound},
		{errors.New("boom"), http.StatusInternalServerError, kindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.err.Error(), func(t *testing.T) {
			status, kind := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, newMemoryService(t))
	c := &client{t: t, handler: h.SetupRouter()}

	rec := c.do(http.MethodPost, "/api/auth/login", loginRequest{Phone: "0899999999", Password: "secret1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `memberclub_http_requests_total{method="POST",route="/api/auth/login",status="401"} 1`)
}

func gunzipBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer zr.Close()

	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func TestRouter_GzipResponses(t *testing.T) {
	h := newTestHandler(t, newMemoryService(t))
	router := h.SetupRouter()

	t.Run("metrics compressed once", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := gunzipBody(t, rec)
		assert.Contains(t, body, "# HELP memberclub_gift_claims_total")
	})

	t.Run("json error compressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/member/gifts", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"kind":"unauthorized","message":"Unauthorized"}`, gunzipBody(t, rec))
	})

	t.Run("logout without body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Zero(t, rec.Body.Len())
	})
}
