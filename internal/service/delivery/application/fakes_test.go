package application

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

// steps 记录副作用的发生顺序
type steps struct {
	mu  sync.Mutex
	log []string
}

func (s *steps) add(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, v)
}

func (s *steps) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

type memRequests struct {
	mu    sync.Mutex
	byID  map[string]*domain.DeliveryRequest
	steps *steps
	lists int
	// afterList 在读出结果之后、返回之前调用，用来插入并发写
	afterList func()
}

func newMemRequests(st *steps) *memRequests {
	return &memRequests{byID: map[string]*domain.DeliveryRequest{}, steps: st}
}

func (m *memRequests) Create(_ context.Context, r *domain.DeliveryRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.byID[r.ID] = &cp
	m.steps.add("create")
	return nil
}

func (m *memRequests) FindByID(_ context.Context, id string) (*domain.DeliveryRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRequests) list(match func(*domain.DeliveryRequest) bool, status domain.Status) []*domain.DeliveryRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var out []*domain.DeliveryRequest
	for _, r := range m.byID {
		if match(r) && (status == "" || r.Status == status) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memRequests) ListByBuyer(_ context.Context, buyerID string, status domain.Status) ([]*domain.DeliveryRequest, error) {
	out := m.list(func(r *domain.DeliveryRequest) bool { return r.BuyerID == buyerID }, status)
	m.runAfterList()
	return out, nil
}

func (m *memRequests) ListBySeller(_ context.Context, sellerID string, status domain.Status) ([]*domain.DeliveryRequest, error) {
	out := m.list(func(r *domain.DeliveryRequest) bool { return r.SellerID == sellerID }, status)
	m.runAfterList()
	return out, nil
}

func (m *memRequests) runAfterList() {
	m.mu.Lock()
	hook := m.afterList
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (m *memRequests) UpdateStatus(_ context.Context, r *domain.DeliveryRequest, expected domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[r.ID]
	if !ok {
		return domain.ErrRequestNotFound
	}
	if cur.Status != expected {
		return domain.ErrInvalidTransition
	}
	cp := *r
	m.byID[r.ID] = &cp
	m.steps.add("update")
	return nil
}

type memShipments struct {
	mu        sync.Mutex
	byRequest map[string]*domain.DeliveryShipment
	// racer 模拟另一个消费者抢先创建了记录，只生效一次
	racer *domain.DeliveryShipment
}

func newMemShipments() *memShipments {
	return &memShipments{byRequest: map[string]*domain.DeliveryShipment{}}
}

func (m *memShipments) FindByRequestID(_ context.Context, requestID string) (*domain.DeliveryShipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byRequest[requestID]
	if !ok {
		return nil, domain.ErrShipmentNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memShipments) Create(_ context.Context, s *domain.DeliveryShipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.racer != nil {
		m.byRequest[m.racer.DeliveryRequestID] = m.racer
		m.racer = nil
		return domain.ErrShipmentExists
	}
	if _, ok := m.byRequest[s.DeliveryRequestID]; ok {
		return domain.ErrShipmentExists
	}
	cp := *s
	m.byRequest[s.DeliveryRequestID] = &cp
	return nil
}

func (m *memShipments) Update(_ context.Context, s *domain.DeliveryShipment, expected domain.ShipmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byRequest[s.DeliveryRequestID]
	if !ok {
		return domain.ErrShipmentNotFound
	}
	if cur.Status != expected {
		return domain.ErrInvalidTransition
	}
	cp := *s
	m.byRequest[s.DeliveryRequestID] = &cp
	return nil
}

type fakeCatalog map[string]*port.CardSnapshot

func (f fakeCatalog) GetCard(_ context.Context, id string) (*port.CardSnapshot, error) {
	c, ok := f[id]
	if !ok {
		return nil, domain.ErrCardNotFound
	}
	return c, nil
}

// memGuard 非阻塞，已持有时返回 ErrMutationInFlight
type memGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemGuard() *memGuard { return &memGuard{held: map[string]bool{}} }

func (g *memGuard) Acquire(_ context.Context, id string) (port.ReleaseFunc, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[id] {
		return nil, domain.ErrMutationInFlight
	}
	g.held[id] = true
	return func(context.Context) {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, id)
	}, nil
}

func (g *memGuard) isHeld(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held[id]
}

type memCache struct {
	mu          sync.Mutex
	entries     map[string][]*domain.DeliveryRequest
	generations map[string]int64
	steps       *steps
}

func newMemCache(st *steps) *memCache {
	return &memCache{
		entries:     map[string][]*domain.DeliveryRequest{},
		generations: map[string]int64{},
		steps:       st,
	}
}

func cacheKey(role port.Role, user string, status domain.Status) string {
	return string(role) + ":" + user + ":" + string(status)
}

func (c *memCache) Get(_ context.Context, role port.Role, user string, status domain.Status) ([]*domain.DeliveryRequest, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.entries[cacheKey(role, user, status)]
	return list, ok, nil
}

func (c *memCache) Generation(_ context.Context, role port.Role, user string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[string(role)+":"+user], nil
}

func (c *memCache) Set(_ context.Context, role port.Role, user string, status domain.Status, gen int64, list []*domain.DeliveryRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[string(role)+":"+user] != gen {
		return nil
	}
	c.entries[cacheKey(role, user, status)] = list
	return nil
}

func (c *memCache) Invalidate(_ context.Context, buyerID, sellerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, owner := range []string{string(port.RoleBuyer) + ":" + buyerID, string(port.RoleSeller) + ":" + sellerID} {
		c.generations[owner]++
		prefix := owner + ":"
		for k := range c.entries {
			if strings.HasPrefix(k, prefix) {
				delete(c.entries, k)
			}
		}
	}
	c.steps.add("invalidate")
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.DeliveryRequestEvent
	steps  *steps
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, evt domain.DeliveryRequestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps.add("publish")
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) last() domain.DeliveryRequestEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

var errBrokerDown = errors.New("kafka: broker not available")
