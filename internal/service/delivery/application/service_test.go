package application

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

var (
	seller   = auth.Principal{UserID: "farmer-1", Roles: []string{auth.RoleFarmer}}
	buyer    = auth.Principal{UserID: "buyer-1", Roles: []string{auth.RoleBuyer}}
	stranger = auth.Principal{UserID: "buyer-2", Roles: []string{auth.RoleBuyer}}
)

type fixture struct {
	svc       *DeliveryService
	requests  *memRequests
	shipments *memShipments
	guard     *memGuard
	cache     *memCache
	publisher *fakePublisher
	steps     *steps
	settings  Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := &steps{}
	fx := &fixture{
		requests:  newMemRequests(st),
		shipments: newMemShipments(),
		guard:     newMemGuard(),
		cache:     newMemCache(st),
		publisher: &fakePublisher{steps: st},
		steps:     st,
		settings:  Settings{EnableQuantityWarning: true},
	}
	catalog := fakeCatalog{
		"card-1": {ID: "card-1", OwnerID: "farmer-1", CropName: "Tomato", Unit: "kg", AvailableQuantity: 80, IsActive: true},
		"card-2": {ID: "card-2", OwnerID: "farmer-1", CropName: "Onion", Unit: "kg", AvailableQuantity: 10, IsActive: false},
	}
	fx.svc = NewDeliveryService(Deps{
		Requests:  fx.requests,
		Shipments: fx.shipments,
		Catalog:   catalog,
		Guard:     fx.guard,
		Cache:     fx.cache,
		Publisher: fx.publisher,
		Settings:  func() Settings { return fx.settings },
		Tracer:    noop.NewTracerProvider().Tracer("test"),
	})
	return fx
}

func validInput() *CreateRequestInput {
	return &CreateRequestInput{
		MarketCardID: "card-1", RequestedQuantity: 20, RequestedPrice: 24,
		DeliveryAddress: "APMC Yard, Pune", BuyerNotes: "morning delivery",
	}
}

func (fx *fixture) create(t *testing.T) *RequestResponse {
	t.Helper()
	resp, err := fx.svc.CreateRequest(context.Background(), buyer, validInput())
	require.NoError(t, err)
	return resp.Request
}

func TestCreateRequest(t *testing.T) {
	fx := newFixture(t)
	resp, err := fx.svc.CreateRequest(context.Background(), buyer, validInput())
	require.NoError(t, err)

	r := resp.Request
	assert.Equal(t, domain.StatusPending, r.Status)
	assert.Equal(t, "buyer-1", r.BuyerID)
	assert.Equal(t, "farmer-1", r.SellerID)
	assert.Empty(t, resp.Warnings)

	evt := fx.publisher.last()
	assert.Equal(t, domain.EventCreated, evt.Type)
	assert.Equal(t, r.ID, evt.RequestID)
	assert.Equal(t, domain.StatusPending, evt.NewStatus)
	assert.Equal(t, []string{"create", "invalidate", "publish"}, fx.steps.all())
}

func TestCreateRequest_QuantityWarning(t *testing.T) {
	fx := newFixture(t)
	in := validInput()
	in.RequestedQuantity = 120

	resp, err := fx.svc.CreateRequest(context.Background(), buyer, in)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.WarningQuantityExceedsAvailable}, resp.Warnings)

	fx.settings.EnableQuantityWarning = false
	resp, err = fx.svc.CreateRequest(context.Background(), buyer, in)
	require.NoError(t, err)
	assert.Empty(t, resp.Warnings)
}

func TestCreateRequest_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		actor auth.Principal
		edit  func(*CreateRequestInput)
		want  error
	}{
		{"unknown card", buyer, func(in *CreateRequestInput) { in.MarketCardID = "nope" }, domain.ErrCardNotFound},
		{"inactive card", buyer, func(in *CreateRequestInput) { in.MarketCardID = "card-2" }, domain.ErrCardInactive},
		{"own card", seller, func(*CreateRequestInput) {}, domain.ErrOwnCard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t)
			in := validInput()
			tc.edit(in)
			_, err := fx.svc.CreateRequest(context.Background(), tc.actor, in)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, fx.steps.all())
		})
	}
}

func TestTransition_SideEffectOrder(t *testing.T) {
	fx := newFixture(t)
	r := fx.create(t)
	fx.steps.log = nil

	resp, err := fx.svc.Accept(context.Background(), seller, r.ID, "can deliver Friday")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, resp.Status)
	assert.Equal(t, "can deliver Friday", resp.SellerNotes)
	require.NotNil(t, resp.RespondedAt)

	assert.Equal(t, []string{"update", "invalidate", "publish"}, fx.steps.all())
	evt := fx.publisher.last()
	assert.Equal(t, domain.EventStatusChanged, evt.Type)
	assert.Equal(t, domain.StatusPending, evt.OldStatus)
	assert.Equal(t, domain.StatusAccepted, evt.NewStatus)
	assert.False(t, fx.guard.isHeld(r.ID))
}

func TestTransition_FullLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	r := fx.create(t)
	_, err := fx.svc.Accept(ctx, seller, r.ID, "")
	require.NoError(t, err)
	done, err := fx.svc.Complete(ctx, seller, r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	_, err = fx.svc.Cancel(ctx, buyer, r.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransition_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("buyer cannot accept", func(t *testing.T) {
		fx := newFixture(t)
		r := fx.create(t)
		_, err := fx.svc.Accept(ctx, buyer, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrWrongActor)
	})
	t.Run("seller cannot cancel", func(t *testing.T) {
		fx := newFixture(t)
		r := fx.create(t)
		_, err := fx.svc.Cancel(ctx, seller, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrWrongActor)
	})
	t.Run("stranger", func(t *testing.T) {
		fx := newFixture(t)
		r := fx.create(t)
		_, err := fx.svc.Reject(ctx, stranger, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrNotParticipant)
	})
	t.Run("complete from pending", func(t *testing.T) {
		fx := newFixture(t)
		r := fx.create(t)
		_, err := fx.svc.Complete(ctx, seller, r.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
	t.Run("missing request", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Accept(ctx, seller, "missing", "")
		assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	})
}

func TestTransition_GuardHeld(t *testing.T) {
	fx := newFixture(t)
	r := fx.create(t)

	release, err := fx.guard.Acquire(context.Background(), r.ID)
	require.NoError(t, err)

	_, err = fx.svc.Accept(context.Background(), seller, r.ID, "")
	assert.ErrorIs(t, err, domain.ErrMutationInFlight)

	release(context.Background())
	_, err = fx.svc.Accept(context.Background(), seller, r.ID, "")
	assert.NoError(t, err)
}

func TestTransition_PublishFailureKeepsCommit(t *testing.T) {
	fx := newFixture(t)
	r := fx.create(t)
	fx.publisher.err = errBrokerDown

	resp, err := fx.svc.Reject(context.Background(), seller, r.ID, "sold out")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resp.Status)

	stored, err := fx.requests.FindByID(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
}

func TestTransition_ConcurrentOutcomes(t *testing.T) {
	for i := 0; i < 20; i++ {
		fx := newFixture(t)
		r := fx.create(t)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = fx.svc.Accept(context.Background(), seller, r.ID, "")
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = fx.svc.Cancel(context.Background(), buyer, r.ID, "")
		}()
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.True(t, errors.Is(err, domain.ErrMutationInFlight) || errors.Is(err, domain.ErrInvalidTransition), err)
		}
		assert.Equal(t, 1, ok, "pending resolves to exactly one outcome")
	}
}

func TestGetRequest_OnlyParticipants(t *testing.T) {
	fx := newFixture(t)
	r := fx.create(t)

	got, err := fx.svc.GetRequest(context.Background(), seller, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)

	_, err = fx.svc.GetRequest(context.Background(), stranger, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestListRequests_CacheAndInvalidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.create(t)

	list, err := fx.svc.ListSellerRequests(ctx, seller, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = fx.svc.ListSellerRequests(ctx, seller, "")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.requests.lists, "second read is served from cache")

	_, err = fx.svc.Accept(ctx, seller, r.ID, "")
	require.NoError(t, err)

	list, err = fx.svc.ListSellerRequests(ctx, seller, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, list[0].Status)
	assert.Equal(t, 2, fx.requests.lists)

	pending, err := fx.svc.ListBuyerRequests(ctx, buyer, domain.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = fx.svc.ListBuyerRequests(ctx, buyer, "shipped")
	assert.Error(t, err)
}

func TestListRequests_ReadRacingTransitionDoesNotRefillStaleList(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.create(t)

	loaded := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	fx.requests.mu.Lock()
	fx.requests.afterList = func() {
		once.Do(func() {
			close(loaded)
			<-resume
		})
	}
	fx.requests.mu.Unlock()

	// 读者先从库里读到 pending，在回填缓存之前被挂起
	done := make(chan error, 1)
	go func() {
		list, err := fx.svc.ListSellerRequests(ctx, seller, "")
		if err == nil && (len(list) != 1 || list[0].Status != domain.StatusPending) {
			err = errors.New("reader should have loaded the pending row")
		}
		done <- err
	}()
	<-loaded

	// 转换提交、清缓存、发布事件都发生在读者回填之前
	_, err := fx.svc.Accept(ctx, seller, r.ID, "")
	require.NoError(t, err)
	require.Equal(t, domain.EventStatusChanged, fx.publisher.last().Type)

	close(resume)
	require.NoError(t, <-done)

	// 收到事件后重新拉取的客户端必须看到新状态
	list, err := fx.svc.ListSellerRequests(ctx, seller, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusAccepted, list[0].Status)
}

func TestGetShipment(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	r := fx.create(t)

	_, err := fx.svc.GetShipment(ctx, buyer, r.ID)
	assert.ErrorIs(t, err, domain.ErrShipmentNotFound)

	require.NoError(t, fx.shipments.Create(ctx, &domain.DeliveryShipment{
		ID: "sh-1", DeliveryRequestID: r.ID, Status: domain.ShipmentInTransit, LastKnownLocation: "Satara",
	}))
	got, err := fx.svc.GetShipment(ctx, buyer, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShipmentInTransit, got.Status)

	_, err = fx.svc.GetShipment(ctx, stranger, r.ID)
	assert.True(t, errors.Is(err, domain.ErrNotParticipant))
}

var _ port.RequestListCache = (*memCache)(nil)
