package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/config"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/errors"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceName: "test",
		Features: config.FeatureFlags{
			EnableCartCaching: true,
			EnableEvents:      true,
			RatingTransport:   config.RatingTransportHTTP,
		},
	}
}

// memCartStore backs both the cart and the order fakes so checkout sees the
// same lines the cart service wrote.
type memCartStore struct {
	mu     sync.Mutex
	lines  map[uuid.UUID]*models.CartLine
	orders []*models.Order
	seq    int
}

func newMemCartStore() *memCartStore {
	return &memCartStore{lines: make(map[uuid.UUID]*models.CartLine)}
}

func copyLine(l *models.CartLine) *models.CartLine {
	c := *l
	return &c
}

func (m *memCartStore) userLines(userID string) []*models.CartLine {
	var out []*models.CartLine
	for _, l := range m.lines {
		if l.UserID == userID {
			out = append(out, copyLine(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type fakeCartRepo struct {
	*memCartStore
	listCalls int
}

var _ repository.CartRepository = (*fakeCartRepo)(nil)

func (r *fakeCartRepo) ListByUser(_ context.Context, userID string) ([]*models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	return r.userLines(userID), nil
}

func (r *fakeCartRepo) FindByUserAndService(_ context.Context, userID string, serviceID uuid.UUID) (*models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if l.UserID == userID && l.ServiceID == serviceID {
			return copyLine(l), nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *fakeCartRepo) IncrementQuantity(_ context.Context, userID string, lineID uuid.UUID, delta int) (*models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[lineID]
	if !ok || l.UserID != userID {
		return nil, errors.ErrNotFound
	}
	l.Quantity += delta
	return copyLine(l), nil
}

func (r *fakeCartRepo) Upsert(_ context.Context, line *models.CartLine) (*models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if l.UserID == line.UserID && l.ServiceID == line.ServiceID {
			l.Quantity += line.Quantity
			return copyLine(l), nil
		}
	}
	// Keep insertion order stable even when the clock does not move.
	r.seq++
	stored := copyLine(line)
	stored.CreatedAt = stored.CreatedAt.Add(time.Duration(r.seq) * time.Millisecond)
	r.lines[stored.ID] = stored
	return copyLine(stored), nil
}

func (r *fakeCartRepo) UpdateQuantity(_ context.Context, userID string, lineID uuid.UUID, quantity int) (*models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[lineID]
	if !ok || l.UserID != userID {
		return nil, errors.ErrNotFound
	}
	l.Quantity = quantity
	return copyLine(l), nil
}

func (r *fakeCartRepo) Delete(_ context.Context, userID string, lineID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[lineID]
	if !ok || l.UserID != userID {
		return errors.ErrNotFound
	}
	delete(r.lines, lineID)
	return nil
}

func (r *fakeCartRepo) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.lines {
		if l.UserID == userID {
			delete(r.lines, id)
		}
	}
	return nil
}

func (r *fakeCartRepo) Total(_ context.Context, userID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CartTotal(r.userLines(userID)), nil
}

type fakeOrderRepo struct {
	*memCartStore
}

var _ repository.OrderRepository = (*fakeOrderRepo)(nil)

func (r *fakeOrderRepo) Checkout(_ context.Context, userID string, build repository.OrderBuilder) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := r.userLines(userID)
	if len(lines) == 0 {
		return nil, errors.ErrInvalidState
	}
	order, err := build(lines)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		delete(r.lines, l.ID)
	}
	r.orders = append(r.orders, order)
	return order, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		if r.orders[i].UserID == userID {
			out = append(out, r.orders[i])
		}
	}
	return out, nil
}

type fakeCartCache struct {
	mu       sync.Mutex
	entries  map[string][]*models.CartLine
	versions map[string]int64
	deletes  int
}

func newFakeCartCache() *fakeCartCache {
	return &fakeCartCache{
		entries:  make(map[string][]*models.CartLine),
		versions: make(map[string]int64),
	}
}

func (c *fakeCartCache) Get(_ context.Context, userID string) ([]*models.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines, ok := c.entries[userID]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return lines, nil
}

func (c *fakeCartCache) Version(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *fakeCartCache) Set(_ context.Context, userID string, version int64, lines []*models.CartLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return repository.ErrCacheStale
	}
	c.entries[userID] = lines
	return nil
}

func (c *fakeCartCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	c.versions[userID]++
	delete(c.entries, userID)
	return nil
}

type mockCatalogClient struct {
	mock.Mock
}

func (m *mockCatalogClient) FetchItemSnapshot(ctx context.Context, serviceID uuid.UUID) (*models.ItemSnapshot, bool) {
	args := m.Called(ctx, serviceID)
	snapshot, _ := args.Get(0).(*models.ItemSnapshot)
	return snapshot, args.Bool(1)
}

type mockOrderPublisher struct {
	mock.Mock
}

func (m *mockOrderPublisher) PublishOrderCompleted(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

type mockRatingNotifier struct {
	mock.Mock
}

func (m *mockRatingNotifier) NotifyRating(ctx context.Context, review *models.Review) error {
	return m.Called(ctx, review).Error(0)
}

type mockReviewPublisher struct {
	mock.Mock
}

func (m *mockReviewPublisher) PublishReviewCreated(ctx context.Context, review *models.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *mockReviewPublisher) PublishReviewUpdated(ctx context.Context, review *models.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *mockReviewPublisher) PublishReviewDeleted(ctx context.Context, review *models.Review) error {
	return m.Called(ctx, review).Error(0)
}

type fakeReviewRepo struct {
	mu      sync.Mutex
	reviews map[uuid.UUID]*models.Review
}

var _ repository.ReviewRepository = (*fakeReviewRepo)(nil)

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: make(map[uuid.UUID]*models.Review)}
}

func (r *fakeReviewRepo) Create(_ context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.ServiceID == review.ServiceID && existing.UserID == review.UserID {
			return errors.ErrConflict
		}
	}
	c := *review
	r.reviews[review.ID] = &c
	return nil
}

func (r *fakeReviewRepo) Exists(_ context.Context, serviceID uuid.UUID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.ServiceID == serviceID && existing.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c := *review
	return &c, nil
}

func (r *fakeReviewRepo) list(match func(*models.Review) bool) []*models.Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Review
	for _, review := range r.reviews {
		if match(review) {
			c := *review
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeReviewRepo) ListByService(_ context.Context, serviceID uuid.UUID) ([]*models.Review, error) {
	return r.list(func(rv *models.Review) bool { return rv.ServiceID == serviceID }), nil
}

func (r *fakeReviewRepo) ListByUser(_ context.Context, userID string) ([]*models.Review, error) {
	return r.list(func(rv *models.Review) bool { return rv.UserID == userID }), nil
}

func (r *fakeReviewRepo) Update(_ context.Context, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[review.ID]; !ok {
		return errors.ErrNotFound
	}
	c := *review
	r.reviews[review.ID] = &c
	return nil
}

func (r *fakeReviewRepo) Delete(_ context.Context, id uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok || review.UserID != userID {
		return errors.ErrNotFound
	}
	delete(r.reviews, id)
	return nil
}

func (r *fakeReviewRepo) Stats(_ context.Context, serviceID uuid.UUID) (*models.ReviewStats, error) {
	reviews := r.list(func(rv *models.Review) bool { return rv.ServiceID == serviceID })
	stats := &models.ReviewStats{ServiceID: serviceID.String()}
	counts := make(map[int]int64)
	sum := 0
	for _, rv := range reviews {
		counts[rv.Rating]++
		sum += rv.Rating
	}
	for stars, n := range counts {
		stats.SetStarCount(stars, n)
	}
	stats.TotalReviews = int64(len(reviews))
	if len(reviews) > 0 {
		stats.AverageRating = float64(sum) / float64(len(reviews))
	}
	return stats, nil
}

type fakeCatalogRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.CatalogItem
	questions map[uuid.UUID]*models.Question
}

var _ repository.CatalogRepository = (*fakeCatalogRepo)(nil)

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		items:     make(map[uuid.UUID]*models.CatalogItem),
		questions: make(map[uuid.UUID]*models.Question),
	}
}

func (r *fakeCatalogRepo) all(match func(*models.CatalogItem) bool) []*models.CatalogItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CatalogItem
	for _, item := range r.items {
		if match(item) {
			c := *item
			out = append(out, &c)
		}
	}
	return out
}

func (r *fakeCatalogRepo) List(_ context.Context) ([]*models.CatalogItem, error) {
	return r.all(func(*models.CatalogItem) bool { return true }), nil
}

func (r *fakeCatalogRepo) Search(_ context.Context, term string) ([]*models.CatalogItem, error) {
	return r.all(func(i *models.CatalogItem) bool { return i.Name == term }), nil
}

func (r *fakeCatalogRepo) GetByID(_ context.Context, id uuid.UUID) (*models.CatalogItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c := *item
	return &c, nil
}

func (r *fakeCatalogRepo) ListByProvider(_ context.Context, providerID string) ([]*models.CatalogItem, error) {
	return r.all(func(i *models.CatalogItem) bool { return i.ProviderID == providerID }), nil
}

func (r *fakeCatalogRepo) ListByCategory(_ context.Context, category string) ([]*models.CatalogItem, error) {
	return r.all(func(i *models.CatalogItem) bool { return i.Category != nil && *i.Category == category }), nil
}

func (r *fakeCatalogRepo) Create(_ context.Context, item *models.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *item
	r.items[item.ID] = &c
	return nil
}

func (r *fakeCatalogRepo) Update(_ context.Context, item *models.CatalogItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok || stored.ProviderID != item.ProviderID {
		return errors.ErrNotFound
	}
	c := *item
	if c.Images == nil {
		c.Images = stored.Images
	}
	r.items[item.ID] = &c
	return nil
}

func (r *fakeCatalogRepo) Delete(_ context.Context, id uuid.UUID, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[id]
	if !ok || stored.ProviderID != providerID {
		return errors.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeCatalogRepo) UpdateRating(_ context.Context, id uuid.UUID, fold repository.RatingFold) (decimal.Decimal, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return decimal.Zero, 0, errors.ErrNotFound
	}
	item.Rating, item.RatingCount = fold(item.Rating, item.RatingCount)
	return item.Rating, item.RatingCount, nil
}

func (r *fakeCatalogRepo) AddQuestion(_ context.Context, q *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[q.ServiceID]; !ok {
		return errors.ErrNotFound
	}
	c := *q
	r.questions[q.ID] = &c
	return nil
}

func (r *fakeCatalogRepo) GetQuestion(_ context.Context, id uuid.UUID) (*models.Question, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, "", errors.ErrNotFound
	}
	c := *q
	return &c, r.items[q.ServiceID].ProviderID, nil
}

func (r *fakeCatalogRepo) AnswerQuestion(_ context.Context, q *models.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[q.ID]; !ok {
		return errors.ErrNotFound
	}
	c := *q
	r.questions[q.ID] = &c
	return nil
}

type fakeEnricher struct {
	country *models.CountryInfo
	weather *models.WeatherInfo
	delay   time.Duration
}

func (e *fakeEnricher) CountryInfo(ctx context.Context, _ string) *models.CountryInfo {
	if !e.wait(ctx) {
		return nil
	}
	return e.country
}

func (e *fakeEnricher) WeatherInfo(ctx context.Context, _, _ string) *models.WeatherInfo {
	if !e.wait(ctx) {
		return nil
	}
	return e.weather
}

func (e *fakeEnricher) wait(ctx context.Context) bool {
	if e.delay == 0 {
		return true
	}
	select {
	case <-time.After(e.delay):
		return true
	case <-ctx.Done():
		return false
	}
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.UserProfile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]*models.UserProfile)}
}

func (r *fakeProfileRepo) GetBySubject(_ context.Context, subjectID string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[subjectID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakeProfileRepo) GetByUsername(_ context.Context, username string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Username == username {
			c := *p
			return &c, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *fakeProfileRepo) Save(_ context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.profiles[profile.SubjectID]; ok {
		profile.ID = existing.ID
	} else {
		profile.ID = uuid.New()
	}
	c := *profile
	r.profiles[profile.SubjectID] = &c
	return profile, nil
}

func (r *fakeProfileRepo) DeleteBySubject(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, subjectID)
	return nil
}
