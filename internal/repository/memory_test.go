package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/quota"
)

var errDenied = errors.New("denied")

func seedMember(t *testing.T, r *MemoryRepository, id string, status model.MemberStatus) {
	t.Helper()
	require.NoError(t, r.CreateMember(context.Background(), &model.Member{
		ID:        id,
		Phone:     "08" + id,
		Name:      id,
		Status:    status,
		CreatedAt: time.Now(),
	}))
}

func TestMemoryRepository_CreateMemberDuplicatePhone(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, r.CreateMember(ctx, &model.Member{ID: "a", Phone: "0812345678"}))
	err := r.CreateMember(ctx, &model.Member{ID: "b", Phone: "0812345678"})
	assert.ErrorIs(t, err, ErrMemberExists)

	_, err = r.GetMember(ctx, "missing")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestMemoryRepository_UpdateMemberRollsBackOnError(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedMember(t, r, "m1", model.MemberStatusPendingPayment)

	_, err := r.UpdateMember(ctx, "m1", func(m *model.Member) error {
		m.Status = model.MemberStatusApproved
		return errDenied
	})
	require.ErrorIs(t, err, errDenied)

	m, err := r.GetMember(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusPendingPayment, m.Status)
}

func TestMemoryRepository_ProcessPaymentOnlyOnce(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seedMember(t, r, "m1", model.MemberStatusPendingApproval)

	_, err := r.SubmitPayment(ctx, &model.Payment{ID: "p1", MemberID: "m1", Amount: 499, Status: model.PaymentStatusPending},
		func(s model.MemberStatus) (model.MemberStatus, bool) { return s, false })
	require.NoError(t, err)

	calls := 0
	onVerified := func(m *model.Member) {
		calls++
		m.Status = model.MemberStatusApproved
	}

	p, err := r.ProcessPayment(ctx, "p1", model.PaymentStatusVerified, "admin", time.Now(), onVerified)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusVerified, p.Status)
	require.NotNil(t, p.VerifiedBy)
	assert.Equal(t, "admin", *p.VerifiedBy)

	_, err = r.ProcessPayment(ctx, "p1", model.PaymentStatusVerified, "admin", time.Now(), onVerified)
	assert.ErrorIs(t, err, ErrPaymentProcessed)
	assert.Equal(t, 1, calls)

	_, err = r.ProcessPayment(ctx, "missing", model.PaymentStatusRejected, "admin", time.Now(), onVerified)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestMemoryRepository_ClaimGiftConcurrentQuota(t *testing.T) {
	const n = 20

	r := NewMemoryRepository()
	ctx := context.Background()
	quota := 1
	require.NoError(t, r.CreateGift(ctx, &model.Gift{ID: "g1", Active: true, MonthlyQuota: &quota}))
	for i := 0; i < n; i++ {
		seedMember(t, r, fmt.Sprintf("m%02d", i), model.MemberStatusApproved)
	}

	now := time.Now()
	from, to := now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)

	decide := func(s model.ClaimSnapshot) error {
		if s.Gift.MonthlyQuota != nil && s.UsedThisMonth >= *s.Gift.MonthlyQuota {
			return errDenied
		}
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		denied  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := r.ClaimGift(ctx, &model.GiftDelivery{
				ID:        fmt.Sprintf("d%02d", i),
				MemberID:  fmt.Sprintf("m%02d", i),
				GiftID:    "g1",
				CreatedAt: now,
			}, from, to, decide)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else if errors.Is(err, errDenied) {
				denied++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, denied)

	used, err := r.CountDeliveriesInRange(ctx, "g1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestMemoryRepository_CountDeliveriesHalfOpenRange(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	from := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	r.deliveries["a"] = model.GiftDelivery{ID: "a", GiftID: "g", CreatedAt: from.Add(-time.Second)}
	r.deliveries["b"] = model.GiftDelivery{ID: "b", GiftID: "g", CreatedAt: from}
	r.deliveries["c"] = model.GiftDelivery{ID: "c", GiftID: "g", CreatedAt: to.Add(-time.Second)}
	r.deliveries["d"] = model.GiftDelivery{ID: "d", GiftID: "g", CreatedAt: to}
	r.deliveries["e"] = model.GiftDelivery{ID: "e", GiftID: "other", CreatedAt: from}

	n, err := r.CountDeliveriesInRange(ctx, "g", from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryRepository_SiteSettingsUpsert(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	_, err := r.GetSiteSettings(ctx)
	assert.ErrorIs(t, err, ErrSettingsNotFound)

	require.NoError(t, r.UpsertSiteSettings(ctx, &model.SiteSettings{MembershipPrice: 499}))
	require.NoError(t, r.UpsertSiteSettings(ctx, &model.SiteSettings{MembershipPrice: 599, LineURL: "https://line.me/x"}))

	s, err := r.GetSiteSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(599), s.MembershipPrice)
	assert.Equal(t, "https://line.me/x", s.LineURL)
}

func TestMemoryRepository_CountDeliveriesMonthBoundary(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	lastSecondOfJan := time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)
	firstSecondOfFeb := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	r.deliveries["jan"] = model.GiftDelivery{ID: "jan", GiftID: "g", CreatedAt: lastSecondOfJan}
	r.deliveries["feb"] = model.GiftDelivery{ID: "feb", GiftID: "g", CreatedAt: firstSecondOfFeb}

	for _, now := range []time.Time{
		time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2025, time.February, 15, 12, 0, 0, 0, time.UTC),
	} {
		from, to := quota.MonthWindow(now)
		n, err := r.CountDeliveriesInRange(ctx, "g", from, to)
		require.NoError(t, err)
		assert.Equal(t, 1, n, now.Month().String())
	}
}
