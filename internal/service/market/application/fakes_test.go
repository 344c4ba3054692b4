package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"agrinexus/internal/service/market/domain"
)

type memCards struct {
	mu   sync.Mutex
	byID map[string]*domain.MarketCard
}

func newMemCards() *memCards { return &memCards{byID: map[string]*domain.MarketCard{}} }

func (m *memCards) Create(_ context.Context, c *domain.MarketCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCards) FindByID(_ context.Context, id string) (*domain.MarketCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCards) Update(_ context.Context, c *domain.MarketCard, readAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[c.ID]
	if !ok || !cur.UpdatedAt.Equal(readAt) {
		return domain.ErrCardModified
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCards) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memCards) List(_ context.Context, q domain.CardQuery) ([]*domain.MarketCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.MarketCard
	for _, c := range m.byID {
		if q.CardType != "" && c.CardType != q.CardType {
			continue
		}
		if q.ActiveOnly && !c.IsActive {
			continue
		}
		if q.CropName != "" && c.CropName != q.CropName {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CropName < out[j].CropName })
	return out, nil
}

type memListings struct {
	mu   sync.Mutex
	byID map[string]*domain.ProduceListing
	// afterFind 在 FindByID 返回前执行，用来模拟读写之间的并发修改
	afterFind func(id string)
}

func newMemListings() *memListings { return &memListings{byID: map[string]*domain.ProduceListing{}} }

func (m *memListings) Create(_ context.Context, l *domain.ProduceListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *memListings) FindByID(_ context.Context, id string) (*domain.ProduceListing, error) {
	m.mu.Lock()
	l, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	hook := m.afterFind
	m.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (m *memListings) setStatus(id string, status domain.ListingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = status
}

func (m *memListings) Update(_ context.Context, l *domain.ProduceListing, expected domain.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[l.ID]
	if !ok || cur.Status != expected {
		return domain.ErrListingClosed
	}
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *memListings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memListings) List(_ context.Context, q domain.ListingQuery) ([]*domain.ProduceListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ProduceListing
	for _, l := range m.byID {
		if q.Status != "" && l.Status != q.Status {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CropName < out[j].CropName })
	return out, nil
}

func (m *memListings) ExpireBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.byID {
		if l.Status == domain.ListingActive && l.CreatedAt.Before(cutoff) {
			l.Status = domain.ListingExpired
			n++
		}
	}
	return n, nil
}

type fakeImages struct {
	keys         []string
	contentTypes []string
	err          error
}

func (f *fakeImages) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.contentTypes = append(f.contentTypes, contentType)
	return "https://cdn.example.test/" + key, nil
}
