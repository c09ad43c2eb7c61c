package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/memberclub/internal/model"
)

// MemoryRepository реализует хранилище в памяти для запуска без БД и для тестов.
// Все операции сериализуются одним мьютексом, поэтому ClaimGift и ProcessPayment атомарны.
type MemoryRepository struct {
	mu         sync.Mutex
	admins     map[string]model.Admin
	members    map[string]model.Member
	payments   map[string]model.Payment
	gifts      map[string]model.Gift
	deliveries map[string]model.GiftDelivery
	events     map[string]model.Event
	reviews    map[string]model.Review
	settings   *model.SiteSettings
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		admins:     make(map[string]model.Admin),
		members:    make(map[string]model.Member),
		payments:   make(map[string]model.Payment),
		gifts:      make(map[string]model.Gift),
		deliveries: make(map[string]model.GiftDelivery),
		events:     make(map[string]model.Event),
		reviews:    make(map[string]model.Review),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error { return nil }

// CreateAdmin создаёт администратора.
func (r *MemoryRepository) CreateAdmin(ctx context.Context, a *model.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.admins {
		if existing.Username == a.Username {
			return ErrAdminExists
		}
	}
	r.admins[a.ID] = *a
	return nil
}

// GetAdmin возвращает администратора по идентификатору.
func (r *MemoryRepository) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.admins[id]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return &a, nil
}

// GetAdminByUsername возвращает администратора по логину.
func (r *MemoryRepository) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.admins {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, ErrAdminNotFound
}

func (r *MemoryRepository) phoneTaken(phone, exceptID string) bool {
	for id, m := range r.members {
		if m.Phone == phone && id != exceptID {
			return true
		}
	}
	return false
}

// CreateMember создаёт участника.
func (r *MemoryRepository) CreateMember(ctx context.Context, m *model.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phoneTaken(m.Phone, "") {
		return ErrMemberExists
	}
	r.members[m.ID] = *m
	return nil
}

// GetMember возвращает участника по идентификатору.
func (r *MemoryRepository) GetMember(ctx context.Context, id string) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return &m, nil
}

// GetMemberByPhone возвращает участника по номеру телефона.
func (r *MemoryRepository) GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m.Phone == phone {
			return &m, nil
		}
	}
	return nil, ErrMemberNotFound
}

// ListMembers возвращает всех участников, новые первыми.
func (r *MemoryRepository) ListMembers(ctx context.Context) ([]model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Member, 0, len(r.members))
	for _, m := range r.members {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateMember применяет mutate к копии участника и сохраняет её при успехе.
func (r *MemoryRepository) UpdateMember(ctx context.Context, id string, mutate func(*model.Member) error) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	if err := mutate(&m); err != nil {
		return nil, err
	}
	if r.phoneTaken(m.Phone, id) {
		return nil, ErrMemberExists
	}
	r.members[id] = m
	return &m, nil
}

// UpdateMemberPassword заменяет хеш пароля участника.
func (r *MemoryRepository) UpdateMemberPassword(ctx context.Context, id string, passwordHash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return ErrMemberNotFound
	}
	m.PasswordHash = passwordHash
	r.members[id] = m
	return nil
}

// SubmitPayment сохраняет платёж и переводит статус владельца через advance.
func (r *MemoryRepository) SubmitPayment(ctx context.Context, p *model.Payment,
	advance func(model.MemberStatus) (model.MemberStatus, bool)) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[p.MemberID]
	if !ok {
		return nil, ErrMemberNotFound
	}

	r.payments[p.ID] = *p
	if next, changed := advance(m.Status); changed {
		m.Status = next
		r.members[m.ID] = m
	}
	return &m, nil
}

// GetPayment возвращает платёж по идентификатору.
func (r *MemoryRepository) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) filterPayments(keep func(model.Payment) bool) []model.Payment {
	var res []model.Payment
	for _, p := range r.payments {
		if keep(p) {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

// ListPayments возвращает платежи с указанным статусом или все, если статус пуст.
func (r *MemoryRepository) ListPayments(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterPayments(func(p model.Payment) bool { return status == "" || p.Status == status }), nil
}

// ListPaymentsByMember возвращает платежи участника, новые первыми.
func (r *MemoryRepository) ListPaymentsByMember(ctx context.Context, memberID string) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filterPayments(func(p model.Payment) bool { return p.MemberID == memberID }), nil
}

// ProcessPayment переводит платёж из pending в decision и при подтверждении применяет onVerified к владельцу.
func (r *MemoryRepository) ProcessPayment(ctx context.Context, id string, decision model.PaymentStatus,
	adminID string, now time.Time, onVerified func(*model.Member)) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return nil, ErrPaymentProcessed
	}

	var owner model.Member
	if decision == model.PaymentStatusVerified {
		owner, ok = r.members[p.MemberID]
		if !ok {
			return nil, ErrMemberNotFound
		}
		onVerified(&owner)
		r.members[owner.ID] = owner
	}

	verifiedAt := now
	by := adminID
	p.Status = decision
	p.VerifiedAt = &verifiedAt
	p.VerifiedBy = &by
	r.payments[id] = p
	return &p, nil
}

// CreateGift добавляет подарок в каталог.
func (r *MemoryRepository) CreateGift(ctx context.Context, g *model.Gift) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gifts[g.ID] = *g
	return nil
}

// GetGift возвращает подарок по идентификатору.
func (r *MemoryRepository) GetGift(ctx context.Context, id string) (*model.Gift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.gifts[id]
	if !ok {
		return nil, ErrGiftNotFound
	}
	return &g, nil
}

// ListGifts возвращает весь каталог подарков.
func (r *MemoryRepository) ListGifts(ctx context.Context) ([]model.Gift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Gift, 0, len(r.gifts))
	for _, g := range r.gifts {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// UpdateGift применяет mutate к копии подарка и сохраняет её при успехе.
func (r *MemoryRepository) UpdateGift(ctx context.Context, id string, mutate func(*model.Gift) error) (*model.Gift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.gifts[id]
	if !ok {
		return nil, ErrGiftNotFound
	}
	if err := mutate(&g); err != nil {
		return nil, err
	}
	r.gifts[id] = g
	return &g, nil
}

func (r *MemoryRepository) countDeliveries(giftID string, from, to time.Time) int {
	n := 0
	for _, d := range r.deliveries {
		if d.GiftID == giftID && !d.CreatedAt.Before(from) && d.CreatedAt.Before(to) {
			n++
		}
	}
	return n
}

// CountDeliveriesInRange возвращает число заявок на подарок, созданных в полуинтервале [from, to).
func (r *MemoryRepository) CountDeliveriesInRange(ctx context.Context, giftID string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.countDeliveries(giftID, from, to), nil
}

func (r *MemoryRepository) deliveriesOf(memberID string) []model.GiftDelivery {
	var res []model.GiftDelivery
	for _, d := range r.deliveries {
		if d.MemberID == memberID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res
}

// ClaimGift атомарно принимает решение о выдаче подарка и сохраняет заявку.
func (r *MemoryRepository) ClaimGift(ctx context.Context, d *model.GiftDelivery, from, to time.Time,
	decide func(model.ClaimSnapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[d.MemberID]
	if !ok {
		return ErrMemberNotFound
	}
	g, ok := r.gifts[d.GiftID]
	if !ok {
		return ErrGiftNotFound
	}

	snapshot := model.ClaimSnapshot{
		Member:        m,
		Gift:          g,
		Deliveries:    r.deliveriesOf(d.MemberID),
		UsedThisMonth: r.countDeliveries(d.GiftID, from, to),
	}
	if err := decide(snapshot); err != nil {
		return err
	}
	if len(snapshot.Deliveries) > 0 {
		return ErrDeliveryExists
	}

	r.deliveries[d.ID] = *d
	return nil
}

// ListDeliveriesByMember возвращает заявки участника.
func (r *MemoryRepository) ListDeliveriesByMember(ctx context.Context, memberID string) ([]model.GiftDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deliveriesOf(memberID), nil
}

// ListDeliveries возвращает все заявки на подарки, новые первыми.
func (r *MemoryRepository) ListDeliveries(ctx context.Context) ([]model.GiftDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.GiftDelivery, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateDelivery применяет mutate к копии заявки и сохраняет её при успехе.
func (r *MemoryRepository) UpdateDelivery(ctx context.Context, id string, mutate func(*model.GiftDelivery) error) (*model.GiftDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deliveries[id]
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	if err := mutate(&d); err != nil {
		return nil, err
	}
	r.deliveries[id] = d
	return &d, nil
}

// CreateEvent сохраняет событие.
func (r *MemoryRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[e.ID] = *e
	return nil
}

// ListEvents возвращает события, начиная с самых поздних.
func (r *MemoryRepository) ListEvents(ctx context.Context, activeOnly bool) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Event
	for _, e := range r.events {
		if activeOnly && !e.Active {
			continue
		}
		res = append(res, e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EventDate.After(res[j].EventDate) })
	return res, nil
}

// UpdateEvent применяет mutate к копии события и сохраняет её при успехе.
func (r *MemoryRepository) UpdateEvent(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if err := mutate(&e); err != nil {
		return nil, err
	}
	r.events[id] = e
	return &e, nil
}

// DeleteEvent удаляет событие.
func (r *MemoryRepository) DeleteEvent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(r.events, id)
	return nil
}

// CreateReview сохраняет отзыв.
func (r *MemoryRepository) CreateReview(ctx context.Context, rv *model.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reviews[rv.ID] = *rv
	return nil
}

// ListReviews возвращает отзывы с указанным статусом или все, если статус пуст.
func (r *MemoryRepository) ListReviews(ctx context.Context, status model.ReviewStatus) ([]model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Review
	for _, rv := range r.reviews {
		if status == "" || rv.Status == status {
			res = append(res, rv)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateReview применяет mutate к копии отзыва и сохраняет её при успехе.
func (r *MemoryRepository) UpdateReview(ctx context.Context, id string, mutate func(*model.Review) error) (*model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rv, ok := r.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	if err := mutate(&rv); err != nil {
		return nil, err
	}
	r.reviews[id] = rv
	return &rv, nil
}

// MarkReviewHelpful увеличивает счётчик полезности отзыва.
func (r *MemoryRepository) MarkReviewHelpful(ctx context.Context, id string, helpful bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rv, ok := r.reviews[id]
	if !ok {
		return ErrReviewNotFound
	}
	if helpful {
		rv.Helpful++
	} else {
		rv.NotHelpful++
	}
	r.reviews[id] = rv
	return nil
}

// GetSiteSettings возвращает настройки сайта.
func (r *MemoryRepository) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings == nil {
		return nil, ErrSettingsNotFound
	}
	s := *r.settings
	return &s, nil
}

// UpsertSiteSettings сохраняет настройки сайта.
func (r *MemoryRepository) UpsertSiteSettings(ctx context.Context, s *model.SiteSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *s
	r.settings = &stored
	return nil
}
